package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"TgFM/core/utils"
	"TgFM/logger"
	"TgFM/model"

	"github.com/google/uuid"
)

// CachePath returns the on-disk location for a track's audio, scoped per
// owner so users cannot interfere with each other's files.
func (r *YoutubeResolver) CachePath(track model.Track, ownerID int64) string {
	dir := filepath.Join(r.cfg.DownloadDir, strconv.FormatInt(ownerID, 10))
	name := fmt.Sprintf("%s_%s.mp3", utils.SanitizeFilename(track.Title), track.ID)
	return filepath.Join(dir, name)
}

// FetchAudio downloads the track's audio as mp3, reusing the on-disk cache
// when present. Concurrent fetches for the same owner and track coalesce
// into a single download; the winner's result is shared.
func (r *YoutubeResolver) FetchAudio(ctx context.Context, track model.Track, ownerID int64) (*AudioFile, error) {
	if !track.Resolved() {
		resolved, err := r.ResolveOne(ctx, track.URL)
		if err != nil {
			return nil, &FetchError{Ref: track.URL, Err: err}
		}
		track = resolved
	}

	key := fmt.Sprintf("%d/%s", ownerID, track.ID)
	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		return r.fetchLocked(ctx, track, ownerID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Coalesced concurrent fetch", logger.String("key", key))
	}

	// Each caller gets its own handle on the shared cache file.
	res := v.(fetchResult)
	audio, err := openAudio(res.path)
	if err != nil {
		return nil, err
	}
	audio.Cached = !res.downloaded || shared
	return audio, nil
}

// fetchResult is what one single-flighted fetch hands to its waiters.
type fetchResult struct {
	path       string
	downloaded bool
}

// fetchLocked does the cache probe and, on a miss, the actual download.
// Runs single-flighted per owner/track key.
func (r *YoutubeResolver) fetchLocked(ctx context.Context, track model.Track, ownerID int64) (fetchResult, error) {
	dest := r.CachePath(track, ownerID)

	if _, err := os.Stat(dest); err == nil {
		logger.Debug("Audio cache hit", logger.String("path", dest))
		return fetchResult{path: dest}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fetchResult{}, &FetchError{Ref: track.URL, Err: err}
	}

	// Download through a unique temp name and rename into place, so a
	// crashed or cancelled download never leaves a corrupt cache entry.
	tmpBase := fmt.Sprintf("%s.%s", track.ID, uuid.NewString())
	tmpTemplate := filepath.Join(filepath.Dir(dest), tmpBase+".%(ext)s")
	tmpFile := filepath.Join(filepath.Dir(dest), tmpBase+".mp3")

	logger.Info("Downloading audio",
		logger.String("url", track.URL),
		logger.Int64("owner", ownerID))

	if err := r.download(ctx, track.URL, tmpTemplate); err != nil {
		os.Remove(tmpFile)
		return fetchResult{}, &FetchError{Ref: track.URL, Err: err}
	}

	if _, err := os.Stat(tmpFile); err != nil {
		return fetchResult{}, &FetchError{Ref: track.URL, Err: fmt.Errorf("download produced no mp3: %w", err)}
	}

	if err := os.Rename(tmpFile, dest); err != nil {
		os.Remove(tmpFile)
		return fetchResult{}, &FetchError{Ref: track.URL, Err: err}
	}

	logger.Info("Audio cached", logger.String("path", dest))
	return fetchResult{path: dest, downloaded: true}, nil
}

// openAudio opens a caller-owned handle on a cached file.
func openAudio(path string) (*AudioFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Ref: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &FetchError{Ref: path, Err: err}
	}
	return &AudioFile{
		Path: path,
		Size: info.Size(),
		file: f,
	}, nil
}

// PurgeCache removes an owner's download directory, or every owner's when
// ownerID is 0. Used by the cachetool subcommand.
func (r *YoutubeResolver) PurgeCache(ownerID int64) error {
	if ownerID == 0 {
		return os.RemoveAll(r.cfg.DownloadDir)
	}
	return os.RemoveAll(filepath.Join(r.cfg.DownloadDir, strconv.FormatInt(ownerID, 10)))
}
