package session

import (
	"sync"
	"time"
)

// EventType tags a session lifecycle event on the hub.
type EventType string

const (
	EventStarted  EventType = "started"
	EventAdvanced EventType = "advanced"
	EventPaused   EventType = "paused"
	EventResumed  EventType = "resumed"
	EventStopped  EventType = "stopped"
	EventFinished EventType = "finished"
	EventError    EventType = "error"
)

// Event is one session state change, published for observers such as the
// status server's websocket feed.
type Event struct {
	Type     EventType `json:"type"`
	UserID   int64     `json:"userId"`
	Title    string    `json:"title,omitempty"`
	Index    int       `json:"index"`
	QueueLen int       `json:"queueLen"`
	Paused   bool      `json:"paused"`
	At       time.Time `json:"at"`
}

// Hub fans session events out to subscribers. Slow subscribers drop
// events rather than block the session machinery.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// to release it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers, dropping on full buffers.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
