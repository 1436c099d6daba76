package resolver

import (
	"context"
	"fmt"

	"TgFM/cache"
	"TgFM/logger"
	"TgFM/model"

	"github.com/ppalone/ytsearch"
)

// Search returns up to limit metadata-only results. The native ytsearch
// client is tried first because it answers in a fraction of a yt-dlp
// process spawn; yt-dlp's ytsearchN: is the fallback.
func (r *YoutubeResolver) Search(ctx context.Context, query string, limit int) ([]model.Track, error) {
	if limit <= 0 {
		limit = 5
	}

	if tracks, ok := cache.GetSearch(ctx, query, limit); ok {
		logger.Debug("Search cache hit", logger.String("query", query))
		return tracks, nil
	}

	tracks := r.nativeSearch(ctx, query, limit)
	if len(tracks) == 0 {
		var err error
		tracks, err = r.ytdlpSearch(ctx, query, limit)
		if err != nil {
			return nil, err
		}
	}

	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	if len(tracks) > 0 {
		if err := cache.PutSearch(ctx, query, limit, tracks); err == nil {
			logger.Debug("Cached search results",
				logger.String("query", query),
				logger.Int("count", len(tracks)))
		}
	}

	logger.Info("Search finished",
		logger.String("query", query),
		logger.Int("count", len(tracks)))
	return tracks, nil
}

// nativeSearch queries YouTube through ytsearch. Errors degrade to an
// empty result so the caller can fall back.
func (r *YoutubeResolver) nativeSearch(ctx context.Context, query string, limit int) []model.Track {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, query)
	if err != nil {
		logger.Warn("Native search failed, falling back to yt-dlp",
			logger.String("query", query),
			logger.ErrorField(err))
		return nil
	}

	tracks := make([]model.Track, 0, limit)
	seen := make(map[string]bool)
	for _, v := range res.Results {
		if v.VideoID == "" || seen[v.VideoID] {
			continue
		}
		seen[v.VideoID] = true
		tracks = append(tracks, model.Track{
			ID:        v.VideoID,
			Title:     v.Title,
			URL:       "https://www.youtube.com/watch?v=" + v.VideoID,
			Duration:  parseColonDuration(v.Duration),
			Uploader:  v.Channel,
			Thumbnail: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", v.VideoID),
		})
		if len(tracks) == limit {
			break
		}
	}
	return tracks
}
