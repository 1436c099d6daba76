package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"TgFM/config"
	"TgFM/core/resolver"
	"TgFM/core/session"
	"TgFM/core/utils"
	"TgFM/logger"
	"TgFM/model"
	"TgFM/storage"
)

const usageText = `🎵 TgFM — YouTube audio in your chat

/search <query> — find tracks
/play <url> — play a track or playlist URL
/queue — show the queue
/next /prev — move through the queue
/pause /resume — toggle auto-continue
/stop — drop the session
/history — recent plays
/save <name> — save the queue as a playlist
/load <name> — play a saved playlist
/lists — your saved playlists`

// Dispatcher routes incoming Telegram updates into session operations and
// storage queries. One instance serves all users; per-user state lives in
// the session store.
type Dispatcher struct {
	bot       *tgbotapi.BotAPI
	presenter *BotPresenter
	sessions  *session.Store
	resolver  resolver.Resolver
	store     *storage.Store
	cfg       *config.Config
}

// NewDispatcher wires the update router.
func NewDispatcher(bot *tgbotapi.BotAPI, presenter *BotPresenter, sessions *session.Store, res resolver.Resolver, store *storage.Store, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		bot:       bot,
		presenter: presenter,
		sessions:  sessions,
		resolver:  res,
		store:     store,
		cfg:       cfg,
	}
}

// HandleUpdate processes one update. Called from the poll loop, one
// goroutine per update so a slow resolve never blocks other users.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Update handler panicked", logger.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		d.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		d.reply(ctx, update.Message.Chat.ID, "Try /search <query> or /play <url>.")
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	logger.Debug("Command received",
		logger.Int64("user", userID),
		logger.String("command", msg.Command()))

	switch msg.Command() {
	case "start", "help":
		d.reply(ctx, chatID, usageText)

	case "search":
		d.cmdSearch(ctx, chatID, args)

	case "play":
		d.cmdPlay(ctx, userID, chatID, args)

	case "next":
		if s := d.sessions.Peek(userID); s != nil {
			s.Advance(ctx)
		} else {
			d.reply(ctx, chatID, "Nothing is playing.")
		}

	case "prev":
		if s := d.sessions.Peek(userID); s != nil {
			s.Retreat(ctx)
		} else {
			d.reply(ctx, chatID, "Nothing is playing.")
		}

	case "pause":
		if s := d.sessions.Peek(userID); s != nil {
			s.Pause(ctx)
		}

	case "resume":
		if s := d.sessions.Peek(userID); s != nil {
			s.Resume(ctx)
		}

	case "stop":
		if s := d.sessions.Peek(userID); s != nil {
			s.Stop(ctx)
			d.reply(ctx, chatID, "⏹ Stopped.")
		}

	case "queue":
		d.cmdQueue(ctx, userID, chatID)

	case "history":
		d.cmdHistory(ctx, userID, chatID)

	case "save":
		d.cmdSave(ctx, userID, chatID, args)

	case "load":
		d.cmdLoad(ctx, userID, chatID, args)

	case "lists":
		d.cmdLists(ctx, userID, chatID)

	default:
		d.reply(ctx, chatID, "Unknown command. See /help.")
	}
}

func (d *Dispatcher) cmdSearch(ctx context.Context, chatID int64, query string) {
	if query == "" {
		d.reply(ctx, chatID, "Usage: /search <query>")
		return
	}

	d.presenter.ChatAction(ctx, chatID, session.ActionTyping)
	tracks, err := d.resolver.Search(ctx, query, d.cfg.SearchLimit)
	if err != nil {
		logger.Error("Search failed",
			logger.String("query", query),
			logger.ErrorField(err))
		d.reply(ctx, chatID, "⚠️ Search failed, try again later.")
		return
	}
	if len(tracks) == 0 {
		d.reply(ctx, chatID, "No results for \""+query+"\".")
		return
	}

	text := fmt.Sprintf("🔍 Results for \"%s\" — pick one:", query)
	if _, err := d.presenter.Announce(ctx, chatID, text, session.SearchKeyboard(tracks)); err != nil {
		logger.Warn("Failed to send search results", logger.ErrorField(err))
	}
}

func (d *Dispatcher) cmdPlay(ctx context.Context, userID, chatID int64, arg string) {
	if arg == "" {
		d.reply(ctx, chatID, "Usage: /play <url>")
		return
	}
	if !strings.HasPrefix(arg, "http://") && !strings.HasPrefix(arg, "https://") {
		d.reply(ctx, chatID, "That doesn't look like a URL. Use /search for free text.")
		return
	}

	d.presenter.ChatAction(ctx, chatID, session.ActionTyping)
	s := d.sessions.GetOrCreate(userID, chatID)
	out, err := s.PlayNow(ctx, arg)
	if err != nil {
		d.reply(ctx, chatID, playErrorText(err))
		return
	}
	d.confirmPlay(ctx, chatID, out)
}

func (d *Dispatcher) confirmPlay(ctx context.Context, chatID int64, out session.PlayOutcome) {
	switch {
	case out.Playlist && out.Added == 0:
		d.reply(ctx, chatID, "That playlist is empty.")
	case out.Playlist:
		d.reply(ctx, chatID, fmt.Sprintf("📜 Queued %d tracks from the playlist.", out.Added))
	case !out.Started:
		d.reply(ctx, chatID, "➕ Added to queue.")
	}
	// A started single track announces itself via the status message.
}

func (d *Dispatcher) cmdQueue(ctx context.Context, userID, chatID int64) {
	s := d.sessions.Peek(userID)
	if s == nil {
		d.reply(ctx, chatID, "The queue is empty.")
		return
	}
	tracks, current, paused := s.Queue()
	if len(tracks) == 0 {
		d.reply(ctx, chatID, "The queue is empty.")
		return
	}

	var b strings.Builder
	b.WriteString("🎶 Queue")
	if paused {
		b.WriteString(" (paused)")
	}
	b.WriteString(":\n")
	for i, t := range tracks {
		marker := "  "
		if i == current {
			marker = "▶ "
		}
		fmt.Fprintf(&b, "%s%d. %s (%s)\n", marker, i+1,
			utils.TruncateTitle(t.Title, 50), utils.FormatDuration(t.Duration))
	}
	d.reply(ctx, chatID, b.String())
}

func (d *Dispatcher) cmdHistory(ctx context.Context, userID, chatID int64) {
	entries := d.store.History(userID, 10)
	if len(entries) == 0 {
		d.reply(ctx, chatID, "No plays recorded yet.")
		return
	}

	var b strings.Builder
	b.WriteString("🕘 Recent plays:\n")
	for i, e := range entries {
		// RFC3339 cut down to minute precision.
		ts := e.Timestamp
		if len(ts) > 16 {
			ts = ts[:16]
		}
		fmt.Fprintf(&b, "%d. %s (%s) — %s\n", i+1,
			utils.TruncateTitle(e.Title, 50), utils.FormatDuration(e.Duration), ts)
	}
	d.reply(ctx, chatID, b.String())
}

func (d *Dispatcher) cmdSave(ctx context.Context, userID, chatID int64, name string) {
	s := d.sessions.Peek(userID)
	if s == nil {
		d.reply(ctx, chatID, "Nothing to save, the queue is empty.")
		return
	}
	tracks, _, _ := s.Queue()
	if len(tracks) == 0 {
		d.reply(ctx, chatID, "Nothing to save, the queue is empty.")
		return
	}

	var err error
	if name == "" {
		err = d.store.SaveQueue(userID, tracks)
	} else {
		err = d.store.SavePlaylist(userID, name, tracks)
	}
	if err != nil {
		logger.Error("Failed to save playlist",
			logger.Int64("user", userID),
			logger.ErrorField(err))
		d.reply(ctx, chatID, "⚠️ Could not save the playlist.")
		return
	}
	if name == "" {
		d.reply(ctx, chatID, fmt.Sprintf("💾 Saved the queue (%d tracks).", len(tracks)))
	} else {
		d.reply(ctx, chatID, fmt.Sprintf("💾 Saved \"%s\" (%d tracks).", name, len(tracks)))
	}
}

func (d *Dispatcher) cmdLoad(ctx context.Context, userID, chatID int64, name string) {
	var tracks []model.Track
	if name == "" {
		tracks = d.store.Queue(userID)
		if len(tracks) == 0 {
			d.reply(ctx, chatID, "No saved queue. /save stores the current one.")
			return
		}
	} else {
		var ok bool
		tracks, ok = d.store.Playlist(userID, name)
		if !ok {
			d.reply(ctx, chatID, fmt.Sprintf("No playlist named \"%s\". See /lists.", name))
			return
		}
	}

	s := d.sessions.GetOrCreate(userID, chatID)
	out := s.PlayTracks(ctx, tracks)
	d.reply(ctx, chatID, fmt.Sprintf("📂 Loaded %d tracks.", out.Added))
}

func (d *Dispatcher) cmdLists(ctx context.Context, userID, chatID int64) {
	names := d.store.PlaylistNames(userID)
	if len(names) == 0 {
		d.reply(ctx, chatID, "No saved playlists. /save <name> creates one.")
		return
	}
	d.reply(ctx, chatID, "📚 Playlists:\n• "+strings.Join(names, "\n• "))
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	data := cb.Data
	chatID := userID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}

	ack := ""
	switch {
	case strings.HasPrefix(data, session.CallbackPlayPrefix):
		url := strings.TrimPrefix(data, session.CallbackPlayPrefix)
		s := d.sessions.GetOrCreate(userID, chatID)
		out, err := s.PlayNow(ctx, url)
		if err != nil {
			ack = "Failed to queue that track"
			logger.Error("Callback play failed",
				logger.Int64("user", userID),
				logger.ErrorField(err))
		} else if !out.Started {
			ack = "Added to queue"
		}

	case strings.HasPrefix(data, session.CallbackCtlPrefix):
		s := d.sessions.Peek(userID)
		if s == nil {
			// The session behind these buttons is gone; a new one only
			// starts from an explicit /play.
			ack = "Session expired"
			break
		}
		switch data {
		case session.CtlPrev:
			s.Retreat(ctx)
		case session.CtlNext:
			s.Advance(ctx)
		case session.CtlPause:
			s.Pause(ctx)
		case session.CtlResume:
			s.Resume(ctx)
		case session.CtlStop:
			s.Stop(ctx)
			ack = "Stopped"
		}
	}

	if _, err := d.bot.Request(tgbotapi.NewCallback(cb.ID, ack)); err != nil {
		logger.Debug("Callback ack failed", logger.ErrorField(err))
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.presenter.Announce(ctx, chatID, text, nil); err != nil {
		logger.Warn("Failed to send reply",
			logger.Int64("chat", chatID),
			logger.ErrorField(err))
	}
}

// playErrorText words a resolver failure for the user without leaking
// yt-dlp internals.
func playErrorText(err error) string {
	switch {
	case resolver.IsResolution(err):
		return "⚠️ Could not read that link. Is it a valid video or playlist URL?"
	case resolver.IsFetch(err):
		return "⚠️ Could not fetch the audio. Try again later."
	default:
		return "⚠️ Something went wrong, try again."
	}
}
