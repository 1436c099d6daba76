package session

import (
	"context"

	"TgFM/model"
)

// MessageRef identifies one chat message owned by a session: the live
// "now playing" display or the transient fetching notice.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard button; Data is the callback payload the
// dispatcher routes back into a session operation.
type Button struct {
	Label string
	Data  string
}

// Keyboard is rows of buttons, transport-agnostic.
type Keyboard [][]Button

// UpdateResult classifies presentation outcomes that are expected platform
// quirks rather than errors: an edit matching the current content, or a
// message that is already gone.
type UpdateResult int

const (
	UpdateApplied UpdateResult = iota
	UpdateUnchanged
	UpdateGone
	UpdateFailed
)

// Chat actions the core may request while working.
const (
	ActionTyping      = "typing"
	ActionUploadVoice = "upload_voice"
)

// Presenter renders session state into chat messages. The core only ever
// calls it; a degraded presenter must never abort playback, so failures
// are classified (UpdateResult) or logged and swallowed by the caller.
type Presenter interface {
	// Announce creates a new status message and returns its handle.
	Announce(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error)

	// AnnouncePhoto creates a new status message carrying an image with a
	// caption. Needed because an in-place edit cannot attach a photo.
	AnnouncePhoto(ctx context.Context, chatID int64, photoURL, caption string, kb Keyboard) (MessageRef, error)

	// Update edits a status message in place.
	Update(ctx context.Context, ref MessageRef, text string, kb Keyboard) UpdateResult

	// Dismiss deletes a message, best effort.
	Dismiss(ctx context.Context, ref MessageRef) UpdateResult

	// NotifyTransient sends a short-lived notice the caller will dismiss.
	NotifyTransient(ctx context.Context, chatID int64, text string) (MessageRef, error)

	// SendAudio delivers a fetched audio file with title metadata and the
	// status text as caption.
	SendAudio(ctx context.Context, chatID int64, path, title string, duration int, caption string) error

	// ChatAction shows a typing / uploading indicator, fire and forget.
	ChatAction(ctx context.Context, chatID int64, action string)
}

// Recorder appends completed plays to the durable history log.
type Recorder interface {
	RecordPlay(userID int64, track model.Track) error
}
