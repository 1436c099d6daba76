package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"TgFM/logger"
	"TgFM/model"

	"github.com/fsnotify/fsnotify"
)

const (
	historyFile   = "history.json"
	playlistsFile = "playlists.json"

	// historyCap bounds each user's history, newest first.
	historyCap = 100
)

// Store persists listening history and the per-user playlist book as flat
// JSON files keyed by stringified user id. Writes replace the whole file
// under a mutex; a directory watcher reloads files edited behind the
// process's back.
type Store struct {
	dataDir string

	mu      sync.Mutex
	history map[string][]model.HistoryEntry
	books   map[string]*model.PlaylistBook

	// lastSave (unix nanos) lets the watcher ignore our own writes.
	lastSave atomic.Int64
}

// New creates the data directory if needed and loads both files.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		dataDir: dataDir,
		history: make(map[string][]model.HistoryEntry),
		books:   make(map[string]*model.PlaylistBook),
	}

	if err := s.loadHistory(); err != nil {
		return nil, err
	}
	if err := s.loadBooks(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch reloads data files modified by something other than this process,
// until ctx is cancelled. Errors creating the watcher are returned; later
// watch errors are logged only.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create storage watcher: %w", err)
	}
	if err := watcher.Add(s.dataDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch data directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// Skip the echo of our own save.
				if time.Since(time.Unix(0, s.lastSave.Load())) < time.Second {
					continue
				}
				switch filepath.Base(event.Name) {
				case historyFile:
					logger.Info("Reloading externally modified history file")
					s.mu.Lock()
					if err := s.loadHistory(); err != nil {
						logger.Warn("History reload failed", logger.ErrorField(err))
					}
					s.mu.Unlock()
				case playlistsFile:
					logger.Info("Reloading externally modified playlists file")
					s.mu.Lock()
					if err := s.loadBooks(); err != nil {
						logger.Warn("Playlists reload failed", logger.ErrorField(err))
					}
					s.mu.Unlock()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Storage watcher error", logger.ErrorField(err))
			}
		}
	}()
	return nil
}

// loadHistory reads history.json into memory. A missing file is an empty
// history. Caller holds the mutex (or is the constructor).
func (s *Store) loadHistory() error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, historyFile))
	if os.IsNotExist(err) {
		s.history = make(map[string][]model.HistoryEntry)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	history := make(map[string][]model.HistoryEntry)
	if err := json.Unmarshal(data, &history); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}
	s.history = history
	return nil
}

// saveHistory writes history.json. Caller holds the mutex.
func (s *Store) saveHistory() error {
	data, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	s.lastSave.Store(time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(s.dataDir, historyFile), data, 0644); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// saveBooks writes playlists.json. Caller holds the mutex.
func (s *Store) saveBooks() error {
	data, err := json.MarshalIndent(s.books, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal playlists: %w", err)
	}
	s.lastSave.Store(time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(s.dataDir, playlistsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	return nil
}
