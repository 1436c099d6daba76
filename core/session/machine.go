package session

import (
	"context"

	"TgFM/core/resolver"
	"TgFM/logger"
	"TgFM/model"
)

// PlayOutcome tells the dispatcher what a PlayNow call did, so it can word
// its confirmation.
type PlayOutcome struct {
	Added    int  // tracks added to the queue
	Started  bool // a delivery cycle was kicked off
	Playlist bool // the input expanded to a playlist
}

// Enqueue appends tracks to the queue in order. If no track was ever
// started, the position pointer moves to the head so the next delivery
// begins there. Returns the new queue length.
func (s *Session) Enqueue(tracks ...model.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, tracks...)
	if s.current < 0 && len(s.queue) > 0 {
		s.current = 0
		s.pending = true
	}
	return len(s.queue)
}

// PlayNow resolves a user-supplied URL and plays it: a playlist replaces
// the queue wholesale, a single track follows the configured play policy.
// Resolver failures surface unchanged and leave the queue untouched.
func (s *Session) PlayNow(ctx context.Context, url string) (PlayOutcome, error) {
	if resolver.IsPlaylistURL(url) {
		tracks, err := s.store.deps.Resolver.ResolvePlaylist(ctx, url)
		if err != nil {
			return PlayOutcome{}, err
		}
		out := s.PlayTracks(ctx, tracks)
		out.Playlist = true
		return out, nil
	}

	track, err := s.store.deps.Resolver.ResolveOne(ctx, url)
	if err != nil {
		return PlayOutcome{}, err
	}
	return s.PlayTrack(ctx, track), nil
}

// PlayTracks replaces the queue wholesale with the given tracks and
// restarts delivery from the head. An empty set leaves an idle session.
func (s *Session) PlayTracks(ctx context.Context, tracks []model.Track) PlayOutcome {
	s.mu.Lock()
	s.queue = append([]model.Track(nil), tracks...)
	s.thumbShown = false
	if len(s.queue) > 0 {
		s.current = 0
		s.pending = true
	} else {
		s.current = -1
		s.pending = false
	}
	started := s.kickLocked()
	s.mu.Unlock()

	return PlayOutcome{Added: len(tracks), Started: started}
}

// PlayTrack plays a single already-resolved track per the play policy:
// "replace" swaps the queue out for it, "append" adds it to the end. The
// position pointer moves to the new track when nothing was active.
func (s *Session) PlayTrack(ctx context.Context, track model.Track) PlayOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.deps.Cfg.PlayPolicy == "replace" {
		s.queue = []model.Track{track}
		s.current = 0
		s.pending = true
		s.thumbShown = false
		started := s.kickLocked()
		return PlayOutcome{Added: 1, Started: started}
	}

	s.queue = append(s.queue, track)
	if s.current < 0 {
		s.current = len(s.queue) - 1
		s.pending = true
		s.thumbShown = false
	}
	started := s.kickLocked()
	return PlayOutcome{Added: 1, Started: started}
}

// Advance moves to the next track and starts delivery. At the last index
// it reports "queue finished" instead and leaves the pointer unchanged.
func (s *Session) Advance(ctx context.Context) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	if s.current+1 < len(s.queue) {
		s.current++
		s.pending = true
		s.thumbShown = false
		s.store.deps.Hub.Publish(s.eventLocked(EventAdvanced))
		s.kickLocked()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// Terminal state, not an error.
	s.reportFinished(ctx)
}

// Retreat moves to the previous track and starts delivery; a no-op at the
// head or on an empty session.
func (s *Session) Retreat(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 || s.current <= 0 {
		return
	}
	s.current--
	s.pending = true
	s.thumbShown = false
	s.store.deps.Hub.Publish(s.eventLocked(EventAdvanced))
	s.kickLocked()
}

// Pause sets the pause flag and refreshes the keyboard. An in-flight
// fetch/delivery is not interrupted; only the auto-continue stops.
func (s *Session) Pause(ctx context.Context) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	ref, text := s.nowPlaying, s.lastStatus
	s.store.deps.Hub.Publish(s.eventLocked(EventPaused))
	s.mu.Unlock()

	s.refreshKeyboard(ctx, ref, text, true)
}

// Resume clears the pause flag, refreshes the keyboard and continues: an
// undelivered current track is delivered, otherwise the queue moves on to
// the next track. Already-delivered tracks are never resent.
func (s *Session) Resume(ctx context.Context) {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	ref, text := s.nowPlaying, s.lastStatus
	s.store.deps.Hub.Publish(s.eventLocked(EventResumed))
	if !s.pending && s.current+1 < len(s.queue) {
		s.current++
		s.pending = true
		s.thumbShown = false
	}
	s.kickLocked()
	s.mu.Unlock()

	s.refreshKeyboard(ctx, ref, text, false)
}

// Stop cancels in-flight work, dismisses the session's messages, clears
// all state and removes the session from the store. The next reference
// creates a fresh session.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	nowPlaying, fetching := s.nowPlaying, s.fetching
	s.queue = nil
	s.current = -1
	s.pending = false
	s.paused = false
	s.nowPlaying = nil
	s.fetching = nil
	s.lastStatus = ""
	s.store.deps.Hub.Publish(s.eventLocked(EventStopped))
	s.mu.Unlock()

	s.cancel()
	s.store.remove(s.userID, s)

	p := s.store.deps.Presenter
	if fetching != nil {
		p.Dismiss(ctx, *fetching)
	}
	if nowPlaying != nil {
		p.Dismiss(ctx, *nowPlaying)
	}
	logger.Info("Stopped session", logger.Int64("user", s.userID))
}

// kickLocked starts the delivery loop unless one is already running, the
// session is paused/stopped, or the current track is already delivered.
// Caller holds the mutex. Reports whether a loop was started.
func (s *Session) kickLocked() bool {
	if s.delivering || s.paused || s.stopped || !s.pending {
		return false
	}
	if s.current < 0 || s.current >= len(s.queue) {
		return false
	}
	s.delivering = true
	go s.deliverLoop(s.ctx)
	return true
}

// refreshKeyboard re-renders the control row after a pause state change.
func (s *Session) refreshKeyboard(ctx context.Context, ref *MessageRef, text string, paused bool) {
	if ref == nil || text == "" {
		return
	}
	if res := s.store.deps.Presenter.Update(ctx, *ref, text, ControlsKeyboard(paused)); res == UpdateGone {
		s.mu.Lock()
		if s.nowPlaying != nil && *s.nowPlaying == *ref {
			s.nowPlaying = nil
		}
		s.mu.Unlock()
	}
}
