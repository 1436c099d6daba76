package storage

import (
	"strconv"
	"time"

	"TgFM/logger"
	"TgFM/model"
)

// RecordPlay appends a completed play to the user's history, newest first,
// capped at 100 entries.
func (s *Store) RecordPlay(userID int64, track model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	entry := model.HistoryEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Title:     track.Title,
		URL:       track.URL,
		Duration:  track.Duration,
	}

	entries := append([]model.HistoryEntry{entry}, s.history[key]...)
	if len(entries) > historyCap {
		entries = entries[:historyCap]
	}
	s.history[key] = entries

	if err := s.saveHistory(); err != nil {
		return err
	}
	logger.Debug("Recorded play",
		logger.Int64("user", userID),
		logger.String("title", track.Title))
	return nil
}

// History returns the user's most recent entries, newest first, up to
// limit (0 means all retained entries).
func (s *Store) History(userID int64, limit int) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	entries := s.history[key]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]model.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}
