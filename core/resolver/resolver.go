package resolver

import (
	"context"
	"os"
	"strings"

	"TgFM/config"
	"TgFM/model"

	"golang.org/x/sync/singleflight"
)

// Resolver turns user-supplied references (URLs, playlist URLs, free-text
// queries) into Track metadata and fetches playable audio files on demand.
type Resolver interface {
	// Search returns up to limit metadata-only results for a query.
	Search(ctx context.Context, query string, limit int) ([]model.Track, error)

	// ResolveOne returns full metadata for a single item.
	ResolveOne(ctx context.Context, url string) (model.Track, error)

	// ResolvePlaylist expands a playlist URL into its tracks, in order.
	ResolvePlaylist(ctx context.Context, url string) ([]model.Track, error)

	// FetchAudio downloads (or reuses from the on-disk cache) the audio for
	// a track, scoped to the owner's download directory. Long-running.
	FetchAudio(ctx context.Context, track model.Track, ownerID int64) (*AudioFile, error)
}

// AudioFile is the caller's handle on a fetched audio asset. Release()
// discards the handle; the underlying cache file stays on disk so a later
// fetch of the same track is free.
type AudioFile struct {
	Path   string
	Size   int64
	Cached bool // true when served from the on-disk cache without a download

	file *os.File
}

// Release closes the caller's handle. The cache entry persists.
func (a *AudioFile) Release() {
	if a.file != nil {
		a.file.Close()
		a.file = nil
	}
}

// downloadFunc performs the actual audio download into outPath. Split out
// so tests can count network hits without a yt-dlp binary.
type downloadFunc func(ctx context.Context, url, outPath string) error

// YoutubeResolver implements Resolver on top of ytsearch (native search)
// and yt-dlp (metadata, playlists, downloads).
type YoutubeResolver struct {
	cfg      *config.Config
	group    singleflight.Group
	download downloadFunc
}

// New creates a YoutubeResolver.
func New(cfg *config.Config) *YoutubeResolver {
	r := &YoutubeResolver{cfg: cfg}
	r.download = r.ytdlpDownload
	return r
}

// IsPlaylistURL reports whether a URL refers to a playlist rather than a
// single item: presence of the playlist list query parameter.
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, "playlist?list=") || strings.Contains(url, "&list=")
}
