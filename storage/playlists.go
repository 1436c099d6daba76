package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"TgFM/logger"
	"TgFM/model"
)

// loadBooks reads playlists.json, migrating the legacy layout where the
// same key held either a bare track array (the anonymous queue) or a
// name→tracks map, into the tagged PlaylistBook form. Caller holds the
// mutex (or is the constructor).
func (s *Store) loadBooks() error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, playlistsFile))
	if os.IsNotExist(err) {
		s.books = make(map[string]*model.PlaylistBook)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read playlists: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse playlists: %w", err)
	}

	books := make(map[string]*model.PlaylistBook, len(raw))
	migrated := false
	for key, value := range raw {
		book, wasLegacy, err := decodeBook(value)
		if err != nil {
			return fmt.Errorf("failed to parse playlists entry for user %s: %w", key, err)
		}
		books[key] = book
		migrated = migrated || wasLegacy
	}
	s.books = books

	if migrated {
		logger.Info("Migrated legacy playlist layout to tagged form")
		if err := s.saveBooks(); err != nil {
			return err
		}
	}
	return nil
}

// decodeBook decodes one user's playlist value in any of its historical
// shapes: bare track array, bare name→tracks map, or the tagged book.
func decodeBook(value json.RawMessage) (*model.PlaylistBook, bool, error) {
	// Legacy shape one: a bare array is the anonymous queue.
	var queue []model.Track
	if err := json.Unmarshal(value, &queue); err == nil {
		return &model.PlaylistBook{Queue: queue}, true, nil
	}

	// The tagged form is an object carrying "queue" and/or "named".
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(value, &probe); err != nil {
		return nil, false, err
	}
	if _, hasQueue := probe["queue"]; hasQueue {
		return unmarshalBook(value)
	}
	if _, hasNamed := probe["named"]; hasNamed {
		return unmarshalBook(value)
	}
	if len(probe) == 0 {
		return &model.PlaylistBook{}, false, nil
	}

	// Legacy shape two: a bare name→tracks map.
	var named map[string][]model.Track
	if err := json.Unmarshal(value, &named); err != nil {
		return nil, false, err
	}
	return &model.PlaylistBook{Named: named}, true, nil
}

func unmarshalBook(value json.RawMessage) (*model.PlaylistBook, bool, error) {
	var book model.PlaylistBook
	if err := json.Unmarshal(value, &book); err != nil {
		return nil, false, err
	}
	return &book, false, nil
}

// book returns the user's playlist book, creating it if absent. Caller
// holds the mutex.
func (s *Store) book(userID int64) *model.PlaylistBook {
	key := strconv.FormatInt(userID, 10)
	b, ok := s.books[key]
	if !ok {
		b = &model.PlaylistBook{}
		s.books[key] = b
	}
	return b
}

// SavePlaylist stores tracks under a name in the user's book, replacing
// any previous playlist of that name.
func (s *Store) SavePlaylist(userID int64, name string, tracks []model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(userID)
	if b.Named == nil {
		b.Named = make(map[string][]model.Track)
	}
	b.Named[name] = append([]model.Track(nil), tracks...)

	if err := s.saveBooks(); err != nil {
		return err
	}
	logger.Info("Saved playlist",
		logger.Int64("user", userID),
		logger.String("name", name),
		logger.Int("tracks", len(tracks)))
	return nil
}

// Playlist returns a named playlist from the user's book.
func (s *Store) Playlist(userID int64, name string) ([]model.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(userID)
	tracks, ok := b.Named[name]
	if !ok {
		return nil, false
	}
	out := make([]model.Track, len(tracks))
	copy(out, tracks)
	return out, true
}

// PlaylistNames lists the user's named playlists, sorted.
func (s *Store) PlaylistNames(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(userID)
	names := make([]string, 0, len(b.Named))
	for name := range b.Named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queue returns the user's anonymous queue (populated by migration from
// the legacy layout, or by SaveQueue).
func (s *Store) Queue(userID int64) []model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(userID)
	out := make([]model.Track, len(b.Queue))
	copy(out, b.Queue)
	return out
}

// SaveQueue persists the user's anonymous queue.
func (s *Store) SaveQueue(userID int64, tracks []model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(userID)
	b.Queue = append([]model.Track(nil), tracks...)
	return s.saveBooks()
}
