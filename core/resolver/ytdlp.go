package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"TgFM/cache"
	"TgFM/logger"
	"TgFM/model"

	"github.com/lrstanley/go-ytdlp"
)

// newCommand returns a yt-dlp command with the baseline flags every
// invocation shares.
func (r *YoutubeResolver) newCommand() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoCheckCertificates()

	if r.cfg.YtdlpPath != "" {
		cmd.SetExecutable(r.cfg.YtdlpPath)
	}
	return cmd
}

// metadataPrint is the tab-separated field template shared by single-item
// and playlist extraction.
const metadataPrint = "%(id)s\t%(title)s\t%(webpage_url)s\t%(duration)s\t%(uploader)s\t%(thumbnail)s"

// ResolveOne returns full metadata for a single video URL.
func (r *YoutubeResolver) ResolveOne(ctx context.Context, url string) (model.Track, error) {
	if track, ok := cache.GetTrack(ctx, url); ok {
		logger.Debug("Track metadata cache hit", logger.String("url", url))
		return track, nil
	}

	res, err := r.newCommand().
		NoPlaylist().
		Print(metadataPrint).
		Run(ctx, "--skip-download", url)
	if err != nil {
		return model.Track{}, &ResolutionError{Ref: url, Err: err}
	}

	tracks := parseMetadataLines(res.Stdout)
	if len(tracks) == 0 {
		return model.Track{}, &ResolutionError{Ref: url, Err: fmt.Errorf("no metadata returned")}
	}

	track := tracks[0]
	if err := cache.PutTrack(ctx, track); err == nil {
		logger.Debug("Cached track metadata", logger.String("url", track.URL))
	}
	return track, nil
}

// ResolvePlaylist expands a playlist URL into its entries, in playlist
// order. Entries come from a flat listing and may lack duration/uploader.
func (r *YoutubeResolver) ResolvePlaylist(ctx context.Context, url string) ([]model.Track, error) {
	res, err := r.newCommand().
		FlatPlaylist().
		Print(metadataPrint).
		Run(ctx, "--skip-download", url)
	if err != nil {
		return nil, &ResolutionError{Ref: url, Err: err}
	}

	tracks := parseMetadataLines(res.Stdout)
	logger.Info("Resolved playlist",
		logger.String("url", url),
		logger.Int("tracks", len(tracks)))
	return tracks, nil
}

// ytdlpSearch is the search fallback: yt-dlp's ytsearchN: pseudo-URL with
// a flat listing.
func (r *YoutubeResolver) ytdlpSearch(ctx context.Context, query string, limit int) ([]model.Track, error) {
	res, err := r.newCommand().
		FlatPlaylist().
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Print(metadataPrint).
		Run(ctx, "--skip-download", fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, &ResolutionError{Ref: query, Err: err}
	}
	return parseMetadataLines(res.Stdout), nil
}

// ytdlpDownload fetches bestaudio and extracts mp3 into outPath. yt-dlp
// appends the final extension itself, so outPath must end in ".%(ext)s".
func (r *YoutubeResolver) ytdlpDownload(ctx context.Context, url, outPath string) error {
	_, err := r.newCommand().
		NoPlaylist().
		NoPart().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality(r.cfg.AudioBitrate).
		Output(outPath).
		Run(ctx, url)
	return err
}

// parseMetadataLines parses the tab-separated --print output into tracks.
// Malformed lines are skipped.
func parseMetadataLines(out string) []model.Track {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	tracks := make([]model.Track, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		if len(parts) < 6 {
			continue
		}
		id, title, pageURL := parts[0], parts[1], parts[2]
		if id == "" || id == "NA" {
			continue
		}
		if title == "" || title == "NA" {
			title = "Unknown"
		}
		if pageURL == "" || pageURL == "NA" {
			pageURL = "https://www.youtube.com/watch?v=" + id
		}

		track := model.Track{
			ID:       id,
			Title:    title,
			URL:      pageURL,
			Duration: parseSeconds(parts[3]),
		}
		if parts[4] != "" && parts[4] != "NA" {
			track.Uploader = parts[4]
		}
		if parts[5] != "" && parts[5] != "NA" {
			track.Thumbnail = parts[5]
		}
		tracks = append(tracks, track)
	}
	return tracks
}

// parseSeconds parses yt-dlp's duration field, which is a (possibly
// fractional) second count or "NA".
func parseSeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f)
	}
	return 0
}

// parseColonDuration parses "3:20" or "1:05:20" style durations into
// seconds, as returned by native search results.
func parseColonDuration(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
