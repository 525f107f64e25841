// Package telegram is the chat front end: it parses commands and button
// presses, calls the services and renders their results.
package telegram

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/httputil"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/service"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/utils"
	"github.com/AdamBeresnev/cup-bracket-bot/views"
	"github.com/a-h/templ"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// Sender is the subset of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Config struct {
	// IsAdmin gates organizer commands.
	IsAdmin func(userID int64) bool
	// AdminIDs receive poller notifications.
	AdminIDs []int64
	// Workers bounds how many updates are handled at once.
	Workers int
	// UpdateTimeout bounds the handling of a single update.
	UpdateTimeout time.Duration
}

type Bot struct {
	sender      Sender
	tournaments *service.TournamentService
	sync        *service.BracketSync
	swaps       *service.SwapEditor
	config      Config
	logger      *slog.Logger
	commands    map[string]command

	// one update at a time per Telegram user
	users utils.KeyedMutex[int64]
}

func New(sender Sender, tournaments *service.TournamentService, sync *service.BracketSync, swaps *service.SwapEditor, cfg Config, logger *slog.Logger) *Bot {
	if cfg.IsAdmin == nil {
		cfg.IsAdmin = func(int64) bool { return false }
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		sender:      sender,
		tournaments: tournaments,
		sync:        sync,
		swaps:       swaps,
		config:      cfg,
		logger:      logger,
	}
	b.commands = b.routes()
	return b
}

// Run handles updates until ctx is done or the channel closes. Updates of
// different users run in parallel, so a slow Challonge call only delays that
// user's conversation.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	var g errgroup.Group
	g.SetLimit(b.config.Workers)

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.HandleUpdate(ctx, update)
				return nil
			})
		}
	}
}

// HandleUpdate never returns an error: every failure ends up as a chat message.
// Updates from the same user are handled one at a time, on the webhook path too.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if userID, ok := senderID(update); ok {
		defer b.users.Lock(userID)()
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.UpdateTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func senderID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	}
	return 0, false
}

// WebhookHandler accepts updates pushed by Telegram.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			httputil.BadRequest(w, "invalid update payload", err)
			return
		}
		b.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
}

// BracketStarted tells every configured admin about a bracket the poller synced.
func (b *Bot) BracketStarted(ctx context.Context, t bracket.Tournament, res *service.RefreshResult) {
	for _, id := range b.config.AdminIDs {
		b.reply(ctx, id, views.BracketStarted(t, res), nil)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, c templ.Component, markup interface{}) {
	text, err := views.Render(ctx, c)
	if err != nil {
		b.logger.Error("render message", "chat_id", chatID, "error", err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, c templ.Component, markup *tgbotapi.InlineKeyboardMarkup) {
	text, err := views.Render(ctx, c)
	if err != nil {
		b.logger.Error("render message", "chat_id", chatID, "error", err)
		return
	}
	var cfg tgbotapi.EditMessageTextConfig
	if markup != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	if _, err := b.sender.Request(cfg); err != nil {
		b.logger.Error("edit message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("answer callback", "error", err)
	}
}

func (b *Bot) fail(ctx context.Context, chatID int64, op string, err error) {
	b.logger.Warn("command failed", "op", op, "chat_id", chatID, "error", err)
	b.reply(ctx, chatID, views.ErrorText(err), nil)
}
