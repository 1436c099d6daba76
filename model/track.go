package model

// Track represents a resolved (or partially resolved) playable audio item.
// ID may be empty for entries that have not been through full resolution
// yet; Uploader and Thumbnail are filled in lazily when available.
type Track struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  int    `json:"duration"` // seconds, 0 = unknown
	Uploader  string `json:"uploader,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Resolved reports whether the track carries full metadata. A track coming
// out of a flat playlist listing typically has URL and title only.
func (t Track) Resolved() bool {
	return t.ID != "" && t.Title != ""
}
