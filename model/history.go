package model

// HistoryEntry records one completed play, newest first in storage.
type HistoryEntry struct {
	Timestamp string `json:"timestamp"` // RFC3339 UTC
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  int    `json:"duration"` // seconds
}

// PlaylistBook holds everything one user keeps on disk besides history:
// the anonymous queue and the named collections. The two are an explicit
// tagged pair; earlier versions of the data file stored a bare track array
// which storage migrates into Queue on first load.
type PlaylistBook struct {
	Queue []Track            `json:"queue,omitempty"`
	Named map[string][]Track `json:"named,omitempty"`
}
