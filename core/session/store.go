package session

import (
	"context"
	"sort"
	"sync"

	"TgFM/config"
	"TgFM/core/resolver"
	"TgFM/logger"
)

// Deps are the collaborators a session works against.
type Deps struct {
	Resolver  resolver.Resolver
	Presenter Presenter
	Recorder  Recorder
	Hub       *Hub
	Cfg       *config.Config
}

// Store is the process-wide registry mapping a user to their single live
// session. Sessions are created lazily on first reference and removed
// only by an explicit Stop.
type Store struct {
	deps Deps

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore creates an empty session registry.
func NewStore(deps Deps) *Store {
	return &Store{
		deps:     deps,
		sessions: make(map[int64]*Session),
	}
}

// GetOrCreate returns the user's live session, creating one atomically if
// none exists. Two simultaneous first references yield the same session.
func (st *Store) GetOrCreate(userID, chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[userID]; ok {
		return s
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		userID:  userID,
		chatID:  chatID,
		store:   st,
		current: -1,
		ctx:     ctx,
		cancel:  cancel,
	}
	st.sessions[userID] = s
	logger.Info("Created session", logger.Int64("user", userID))
	return s
}

// Peek returns the user's session without creating one.
func (st *Store) Peek(userID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[userID]
}

// remove unregisters a session, but only the exact one given: a stale
// session that raced with its own replacement must not evict the
// successor.
func (st *Store) remove(userID int64, s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.sessions[userID] != s {
		return false
	}
	delete(st.sessions, userID)
	return true
}

// isCurrent reports whether s is still the registered session for its
// user. In-flight continuations re-check this after every suspension.
func (st *Store) isCurrent(userID int64, s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[userID] == s
}

// Snapshot is a read-only view of one session for the status server.
type Snapshot struct {
	UserID       int64  `json:"userId"`
	ChatID       int64  `json:"chatId"`
	QueueLen     int    `json:"queueLen"`
	Current      int    `json:"current"` // -1 = no active track
	Paused       bool   `json:"paused"`
	Delivering   bool   `json:"delivering"`
	CurrentTitle string `json:"currentTitle,omitempty"`
}

// Snapshots returns a stable-ordered view of every live session.
func (st *Store) Snapshots() []Snapshot {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].UserID < snaps[j].UserID })
	return snaps
}
