package session

import (
	"context"
	"sync"

	"TgFM/model"
)

// Session is one user's playback state: the ordered queue, the current
// position, the pause flag and the chat message handles the session owns.
// All mutation goes through the transition operations; the delivery loop
// is single-flighted per session.
type Session struct {
	userID int64
	chatID int64
	store  *Store

	mu         sync.Mutex
	queue      []model.Track
	current    int  // index into queue, -1 = no active track
	pending    bool // current track has not been delivered yet
	paused     bool
	stopped    bool
	delivering bool
	nowPlaying *MessageRef
	fetching   *MessageRef
	thumbShown bool
	lastStatus string

	// ctx spans the session's lifetime; Stop cancels it so in-flight
	// fetches and waits unwind.
	ctx    context.Context
	cancel context.CancelFunc
}

// UserID returns the owning user's identity.
func (s *Session) UserID() int64 { return s.userID }

// ChatID returns the chat the session presents into.
func (s *Session) ChatID() int64 { return s.chatID }

// Queue returns a copy of the queue plus the current index and pause flag.
func (s *Session) Queue() ([]model.Track, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := make([]model.Track, len(s.queue))
	copy(queue, s.queue)
	return queue, s.current, s.paused
}

// Paused reports the pause flag.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// alive reports whether the session may still act: not stopped, its
// context intact, and still the one registered in the store. A stopped
// and replaced session's in-flight continuation must be a silent no-op.
func (s *Session) alive() bool {
	if s.ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return false
	}
	return s.store.isCurrent(s.userID, s)
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		UserID:     s.userID,
		ChatID:     s.chatID,
		QueueLen:   len(s.queue),
		Current:    s.current,
		Paused:     s.paused,
		Delivering: s.delivering,
	}
	if s.current >= 0 && s.current < len(s.queue) {
		snap.CurrentTitle = s.queue[s.current].Title
	}
	return snap
}

// event builds a hub event from current state. Caller holds the mutex.
func (s *Session) eventLocked(typ EventType) Event {
	ev := Event{
		Type:     typ,
		UserID:   s.userID,
		Index:    s.current,
		QueueLen: len(s.queue),
		Paused:   s.paused,
	}
	if s.current >= 0 && s.current < len(s.queue) {
		ev.Title = s.queue[s.current].Title
	}
	return ev
}
