package resolver

import (
	"errors"
	"fmt"
)

// ResolutionError reports a failed metadata or URL resolution: bad link,
// private or removed video, malformed playlist.
type ResolutionError struct {
	Ref string // the URL or query that failed
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %q: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError reports a failed audio retrieval or transcode.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch audio for %q: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsResolution reports whether err is a ResolutionError.
func IsResolution(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsFetch reports whether err is a FetchError.
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
