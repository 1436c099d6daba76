package session

import (
	"fmt"

	"TgFM/core/utils"
	"TgFM/model"
)

// Callback data prefixes the dispatcher understands.
const (
	CallbackPlayPrefix = "play::"
	CallbackCtlPrefix  = "ctl::"
)

// Control callback payloads.
const (
	CtlPrev   = CallbackCtlPrefix + "prev"
	CtlNext   = CallbackCtlPrefix + "next"
	CtlPause  = CallbackCtlPrefix + "pause"
	CtlResume = CallbackCtlPrefix + "resume"
	CtlStop   = CallbackCtlPrefix + "stop"
)

// ControlsKeyboard assembles the playback control row shown under the
// "now playing" message. The middle button toggles with the pause state.
func ControlsKeyboard(paused bool) Keyboard {
	toggle := Button{Label: "⏸", Data: CtlPause}
	if paused {
		toggle = Button{Label: "▶️", Data: CtlResume}
	}
	return Keyboard{{
		Button{Label: "⏮", Data: CtlPrev},
		toggle,
		Button{Label: "⏭", Data: CtlNext},
		Button{Label: "⏹", Data: CtlStop},
	}}
}

// SearchKeyboard assembles one row per search result, labelled
// "Title (MM:SS)" with the title truncated at 40 runes.
func SearchKeyboard(tracks []model.Track) Keyboard {
	kb := make(Keyboard, 0, len(tracks))
	for _, t := range tracks {
		label := fmt.Sprintf("%s (%s)",
			utils.TruncateTitle(t.Title, 40),
			utils.FormatDuration(t.Duration))
		kb = append(kb, []Button{{Label: label, Data: CallbackPlayPrefix + t.URL}})
	}
	return kb
}

// statusText renders the "now playing" display for a track.
func statusText(t model.Track) string {
	text := "▶️ " + t.Title
	if t.Uploader != "" {
		text += "\n👤 " + t.Uploader
	}
	text += "\n🕒 " + utils.FormatDuration(t.Duration)
	return text
}
