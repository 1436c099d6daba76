package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-_. ]`)

// FormatDuration renders seconds as zero-padded MM:SS. Minutes are total
// minutes, not hour-wrapped: 3600 seconds is "60:00". Unknown (0) renders
// as "00:00".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// SanitizeFilename replaces characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// TruncateTitle shortens a title for button labels, appending an ellipsis
// when it was cut. Counts runes, not bytes.
func TruncateTitle(title string, max int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
