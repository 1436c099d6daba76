package session

import (
	"context"
	"time"

	"TgFM/logger"
	"TgFM/model"
)

// deliverLoop is the single in-flight delivery cycle for a session. It
// delivers the current track, then auto-continues to the next one while
// there is a next one and the session is neither paused nor stopped. A
// manual jump that lands mid-delivery wins: the loop continues at the new
// position without incrementing past it.
func (s *Session) deliverLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Delivery loop panicked",
				logger.Int64("user", s.userID),
				logger.Any("panic", r))
			s.clearDelivering()
			s.failStatus(context.Background(), "⚠️ Session error, try /play again")
		}
	}()

	for {
		if !s.alive() {
			s.clearDelivering()
			return
		}

		s.mu.Lock()
		if s.paused || !s.pending || s.current < 0 || s.current >= len(s.queue) {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		idx := s.current
		track := s.queue[idx]
		s.mu.Unlock()

		if !s.deliverOne(ctx, idx, track) {
			s.mu.Lock()
			// A jump that landed during the failing delivery still gets
			// served; kickLocked refused it while we held the loop.
			if !s.stopped && !s.paused && s.pending && s.current != idx &&
				s.current >= 0 && s.current < len(s.queue) {
				s.mu.Unlock()
				continue
			}
			s.delivering = false
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		if s.current == idx {
			s.pending = false
		}
		if s.stopped {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		if s.current != idx {
			// The user jumped while we were delivering; pick up there.
			s.mu.Unlock()
			continue
		}
		if s.paused {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		if s.current+1 >= len(s.queue) {
			s.delivering = false
			s.mu.Unlock()
			s.reportFinished(ctx)
			return
		}
		s.current++
		s.pending = true
		s.thumbShown = false
		s.store.deps.Hub.Publish(s.eventLocked(EventAdvanced))
		gap := time.Duration(s.store.deps.Cfg.TrackGapSeconds) * time.Second
		s.mu.Unlock()

		if gap > 0 {
			select {
			case <-ctx.Done():
				s.clearDelivering()
				return
			case <-time.After(gap):
			}
		}
	}
}

// deliverOne resolves, presents and sends one track. Reports whether the
// loop may continue; a fetch failure halts at the current index so the
// user can retry or skip.
func (s *Session) deliverOne(ctx context.Context, idx int, track model.Track) bool {
	deps := s.store.deps

	if !track.Resolved() {
		resolved, err := deps.Resolver.ResolveOne(ctx, track.URL)
		if err != nil {
			logger.Error("Failed to resolve track",
				logger.Int64("user", s.userID),
				logger.String("url", track.URL),
				logger.ErrorField(err))
			s.failStatus(ctx, "⚠️ Could not resolve: "+track.URL)
			s.publishError()
			return false
		}
		track = resolved
		s.mu.Lock()
		if idx < len(s.queue) && s.queue[idx].URL == track.URL {
			s.queue[idx] = track
		}
		s.mu.Unlock()
	}

	text := statusText(track)
	s.showNowPlaying(ctx, track, text)

	deps.Presenter.ChatAction(ctx, s.chatID, ActionUploadVoice)
	notice, noticeErr := deps.Presenter.NotifyTransient(ctx, s.chatID, "⏳ Fetching audio…")
	if noticeErr == nil {
		s.mu.Lock()
		s.fetching = &notice
		s.mu.Unlock()
	}

	audio, fetchErr := deps.Resolver.FetchAudio(ctx, track, s.userID)

	// The notice never outlives the fetch, success or not.
	if noticeErr == nil {
		deps.Presenter.Dismiss(ctx, notice)
		s.mu.Lock()
		if s.fetching != nil && *s.fetching == notice {
			s.fetching = nil
		}
		s.mu.Unlock()
	}

	if fetchErr != nil {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("Failed to fetch audio",
			logger.Int64("user", s.userID),
			logger.String("track", track.ID),
			logger.ErrorField(fetchErr))
		s.failStatus(ctx, "⚠️ Failed to fetch: "+track.Title)
		s.publishError()
		return false
	}
	defer audio.Release()

	// Fetching is a suspension point; the session may have been stopped
	// and replaced while we were away.
	if !s.alive() {
		return false
	}

	if err := deps.Presenter.SendAudio(ctx, s.chatID, audio.Path, track.Title, track.Duration, text); err != nil {
		logger.Error("Failed to send audio",
			logger.Int64("user", s.userID),
			logger.String("track", track.ID),
			logger.ErrorField(err))
		s.failStatus(ctx, "⚠️ Failed to send: "+track.Title)
		s.publishError()
		return false
	}

	logger.Info("Delivered track",
		logger.Int64("user", s.userID),
		logger.String("track", track.ID),
		logger.String("title", track.Title),
		logger.Bool("cached", audio.Cached))

	if deps.Recorder != nil {
		if err := deps.Recorder.RecordPlay(s.userID, track); err != nil {
			logger.Warn("Failed to record play",
				logger.Int64("user", s.userID),
				logger.ErrorField(err))
		}
	}

	s.mu.Lock()
	deps.Hub.Publish(s.eventLocked(EventStarted))
	s.mu.Unlock()
	return true
}

// showNowPlaying renders the status display for a track: an in-place edit
// of the existing message, or a fresh message when none exists or a
// thumbnail must be introduced (an edit cannot attach a photo).
func (s *Session) showNowPlaying(ctx context.Context, track model.Track, text string) {
	deps := s.store.deps

	s.mu.Lock()
	ref := s.nowPlaying
	needPhoto := track.Thumbnail != "" && !s.thumbShown
	paused := s.paused
	s.mu.Unlock()

	kb := ControlsKeyboard(paused)

	if ref != nil && !needPhoto {
		switch deps.Presenter.Update(ctx, *ref, text, kb) {
		case UpdateApplied, UpdateUnchanged:
			s.setStatus(ref, text, false)
			return
		case UpdateGone:
			ref = nil
		case UpdateFailed:
			// Keep the stale message rather than spam new ones.
			return
		}
	}

	if ref != nil && needPhoto {
		deps.Presenter.Dismiss(ctx, *ref)
	}

	if needPhoto {
		newRef, err := deps.Presenter.AnnouncePhoto(ctx, s.chatID, track.Thumbnail, text, kb)
		if err == nil {
			s.setStatus(&newRef, text, true)
			return
		}
		logger.Warn("Failed to send photo status, falling back to text",
			logger.Int64("user", s.userID),
			logger.ErrorField(err))
	}

	newRef, err := deps.Presenter.Announce(ctx, s.chatID, text, kb)
	if err != nil {
		logger.Warn("Failed to send status message",
			logger.Int64("user", s.userID),
			logger.ErrorField(err))
		return
	}
	s.setStatus(&newRef, text, false)
}

func (s *Session) setStatus(ref *MessageRef, text string, thumbShown bool) {
	s.mu.Lock()
	s.nowPlaying = ref
	s.lastStatus = text
	if thumbShown {
		s.thumbShown = true
	}
	s.mu.Unlock()
}

// failStatus surfaces an error on the status message, or as a plain
// message when there is none to edit.
func (s *Session) failStatus(ctx context.Context, text string) {
	if !s.alive() {
		return
	}
	deps := s.store.deps

	s.mu.Lock()
	ref := s.nowPlaying
	paused := s.paused
	s.mu.Unlock()

	if ref != nil {
		if res := deps.Presenter.Update(ctx, *ref, text, ControlsKeyboard(paused)); res != UpdateGone {
			s.setStatus(ref, text, false)
			return
		}
	}
	newRef, err := deps.Presenter.Announce(ctx, s.chatID, text, ControlsKeyboard(paused))
	if err != nil {
		return
	}
	s.setStatus(&newRef, text, false)
}

// reportFinished marks the terminal "ran off the end" state.
func (s *Session) reportFinished(ctx context.Context) {
	deps := s.store.deps

	s.mu.Lock()
	ref := s.nowPlaying
	deps.Hub.Publish(s.eventLocked(EventFinished))
	s.mu.Unlock()

	const text = "✅ Queue finished"
	if ref != nil {
		if res := deps.Presenter.Update(ctx, *ref, text, nil); res != UpdateGone {
			s.setStatus(ref, text, false)
			return
		}
	}
	if _, err := deps.Presenter.NotifyTransient(ctx, s.chatID, text); err != nil {
		logger.Warn("Failed to report finished queue",
			logger.Int64("user", s.userID),
			logger.ErrorField(err))
	}
}

func (s *Session) clearDelivering() {
	s.mu.Lock()
	s.delivering = false
	s.mu.Unlock()
}

func (s *Session) publishError() {
	s.mu.Lock()
	s.store.deps.Hub.Publish(s.eventLocked(EventError))
	s.mu.Unlock()
}
