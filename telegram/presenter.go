package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"TgFM/core/session"
	"TgFM/logger"
)

// BotPresenter renders session state through the Telegram Bot API. All
// outgoing calls go through a shared rate limiter so a burst of session
// activity cannot trip Telegram's flood control.
type BotPresenter struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewPresenter wraps a bot handle. Telegram allows roughly 30 messages a
// second globally; we stay under that with headroom.
func NewPresenter(bot *tgbotapi.BotAPI) *BotPresenter {
	return &BotPresenter{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
}

func (p *BotPresenter) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// markup converts the transport-agnostic keyboard into Telegram inline
// markup. Returns nil for an empty keyboard.
func markup(kb session.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

func (p *BotPresenter) Announce(ctx context.Context, chatID int64, text string, kb session.Keyboard) (session.MessageRef, error) {
	if err := p.wait(ctx); err != nil {
		return session.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	sent, err := p.bot.Send(msg)
	if err != nil {
		return session.MessageRef{}, err
	}
	return session.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (p *BotPresenter) AnnouncePhoto(ctx context.Context, chatID int64, photoURL, caption string, kb session.Keyboard) (session.MessageRef, error) {
	if err := p.wait(ctx); err != nil {
		return session.MessageRef{}, err
	}
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	msg.Caption = caption
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	sent, err := p.bot.Send(msg)
	if err != nil {
		return session.MessageRef{}, err
	}
	return session.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Update edits a message in place. Photo-backed status messages have no
// text body, so a failed text edit is retried as a caption edit.
func (p *BotPresenter) Update(ctx context.Context, ref session.MessageRef, text string, kb session.Keyboard) session.UpdateResult {
	if err := p.wait(ctx); err != nil {
		return session.UpdateFailed
	}

	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.ReplyMarkup = markup(kb)
	_, err := p.bot.Send(edit)
	if err != nil && strings.Contains(err.Error(), "there is no text in the message") {
		capEdit := tgbotapi.NewEditMessageCaption(ref.ChatID, ref.MessageID, text)
		capEdit.ReplyMarkup = markup(kb)
		_, err = p.bot.Send(capEdit)
	}
	return classifyEdit(err)
}

func (p *BotPresenter) Dismiss(ctx context.Context, ref session.MessageRef) session.UpdateResult {
	if err := p.wait(ctx); err != nil {
		return session.UpdateFailed
	}
	_, err := p.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return classifyEdit(err)
}

func (p *BotPresenter) NotifyTransient(ctx context.Context, chatID int64, text string) (session.MessageRef, error) {
	return p.Announce(ctx, chatID, text, nil)
}

func (p *BotPresenter) SendAudio(ctx context.Context, chatID int64, path, title string, duration int, caption string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Title = title
	audio.Duration = duration
	audio.Caption = caption
	_, err := p.bot.Send(audio)
	return err
}

func (p *BotPresenter) ChatAction(ctx context.Context, chatID int64, action string) {
	if err := p.wait(ctx); err != nil {
		return
	}
	if _, err := p.bot.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		logger.Debug("Chat action failed",
			logger.Int64("chat", chatID),
			logger.ErrorField(err))
	}
}

// classifyEdit maps the Bot API's well-known edit/delete failures onto
// outcomes the session core can act on. "not modified" means the content
// already matched; "not found" / "can't be ..." means the message is gone
// and a fresh one is needed.
func classifyEdit(err error) session.UpdateResult {
	if err == nil {
		return session.UpdateApplied
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "message is not modified"):
		return session.UpdateUnchanged
	case strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message to delete not found"),
		strings.Contains(msg, "message can't be edited"),
		strings.Contains(msg, "message can't be deleted"):
		return session.UpdateGone
	default:
		logger.Warn("Message edit failed", logger.ErrorField(err))
		return session.UpdateFailed
	}
}
