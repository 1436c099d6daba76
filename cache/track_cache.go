package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TgFM/model"
)

const (
	trackTTL  = 24 * time.Hour
	searchTTL = time.Hour
)

// trackKey generates the Redis key for resolved track metadata.
func trackKey(url string) string {
	return fmt.Sprintf("track:%s", url)
}

// searchKey generates the Redis key for a search result set.
func searchKey(query string, limit int) string {
	return fmt.Sprintf("search:%d:%s", limit, query)
}

// PutTrack stores resolved track metadata keyed by its canonical URL.
func PutTrack(ctx context.Context, track model.Track) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}

	if err := RedisClient.Set(ctx, trackKey(track.URL), data, trackTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache track: %w", err)
	}
	return nil
}

// GetTrack returns cached track metadata for a URL. The second return is
// false on a miss (including when the cache is disabled).
func GetTrack(ctx context.Context, url string) (model.Track, bool) {
	if RedisClient == nil {
		return model.Track{}, false
	}

	data, err := RedisClient.Get(ctx, trackKey(url)).Bytes()
	if err != nil {
		return model.Track{}, false
	}

	var track model.Track
	if err := json.Unmarshal(data, &track); err != nil {
		return model.Track{}, false
	}
	return track, true
}

// PutSearch stores a search result set for a query.
func PutSearch(ctx context.Context, query string, limit int, tracks []model.Track) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	if err := RedisClient.Set(ctx, searchKey(query, limit), data, searchTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache search results: %w", err)
	}
	return nil
}

// GetSearch returns a cached search result set, or false on a miss.
func GetSearch(ctx context.Context, query string, limit int) ([]model.Track, bool) {
	if RedisClient == nil {
		return nil, false
	}

	data, err := RedisClient.Get(ctx, searchKey(query, limit)).Bytes()
	if err != nil {
		// redis.Nil and transport errors are both plain misses here.
		return nil, false
	}

	var tracks []model.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, false
	}
	return tracks, true
}
