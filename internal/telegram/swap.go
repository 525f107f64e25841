package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/service"
	"github.com/AdamBeresnev/cup-bracket-bot/views"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	swapPrefix       = "swap"
	swapCancelPrefix = "swapx"
)

func (b *Bot) startSwap(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	// A new editor always starts from a clean selection.
	if err := b.swaps.Reset(ctx, req.userID, id); err != nil {
		return err
	}
	participants, err := b.swaps.Participants(ctx, id)
	if err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.SwapPrompt(participants, nil), swapKeyboard(id, participants))
	return nil
}

func (b *Bot) cancelSwap(ctx context.Context, req request) error {
	id, _, err := idAndRest(req.args, false)
	if err != nil {
		return err
	}
	if err := b.swaps.Cancel(ctx, req.userID, id); err != nil {
		return err
	}
	b.reply(ctx, req.chatID, views.Notice("Swap cancelled."), nil)
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	if !b.config.IsAdmin(cq.From.ID) {
		b.answer(cq.ID, "Only organizers can do that.")
		return
	}

	chatID, messageID := cq.Message.Chat.ID, cq.Message.MessageID
	kind, tournamentID, participantID, err := parseSwapData(cq.Data)
	if err != nil {
		b.logger.Warn("unexpected callback data", "data", cq.Data, "error", err)
		b.answer(cq.ID, "This button is no longer valid.")
		return
	}

	if kind == swapCancelPrefix {
		if err := b.swaps.Cancel(ctx, cq.From.ID, tournamentID); err != nil {
			b.answer(cq.ID, service.UserMessage(err))
			return
		}
		b.answer(cq.ID, "Swap cancelled.")
		b.edit(ctx, chatID, messageID, views.Notice("Swap cancelled."), nil)
		return
	}

	label := labelFromMarkup(cq.Message.ReplyMarkup, cq.Data)
	res, err := b.swaps.Select(ctx, cq.From.ID, tournamentID, participantID, label)
	if err != nil {
		b.answer(cq.ID, service.UserMessage(err))
		return
	}

	if res.Outcome == service.SwapFirstSelected {
		b.answer(cq.ID, "Selected "+res.First.Label)
		b.edit(ctx, chatID, messageID, views.SwapOutcome(res), cq.Message.ReplyMarkup)
		return
	}

	b.answer(cq.ID, fmt.Sprintf("Swapped %s and %s", res.First.Label, res.Second.Label))
	participants, err := b.swaps.Participants(ctx, tournamentID)
	if err != nil {
		b.edit(ctx, chatID, messageID, views.SwapOutcome(res), nil)
		return
	}
	markup := swapKeyboard(tournamentID, participants)
	b.edit(ctx, chatID, messageID, views.SwapPrompt(participants, nil), &markup)
}

func swapKeyboard(tournamentID uuid.UUID, participants []challonge.Participant) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(participants)+1)
	for _, p := range participants {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonText(p), swapData(tournamentID, p.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", swapCancelPrefix+":"+tournamentID.String()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func buttonText(p challonge.Participant) string {
	return strconv.Itoa(p.Seed) + ". " + p.Label()
}

// swapData stays under Telegram's 64 byte limit: 5 + 36 + 1 + at most 19 digits.
func swapData(tournamentID uuid.UUID, participantID int64) string {
	return swapPrefix + ":" + tournamentID.String() + ":" + strconv.FormatInt(participantID, 10)
}

func parseSwapData(data string) (kind string, tournamentID uuid.UUID, participantID int64, err error) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 2 && parts[0] == swapCancelPrefix:
		tournamentID, err = uuid.Parse(parts[1])
		return swapCancelPrefix, tournamentID, 0, err
	case len(parts) == 3 && parts[0] == swapPrefix:
		if tournamentID, err = uuid.Parse(parts[1]); err != nil {
			return "", uuid.Nil, 0, err
		}
		participantID, err = strconv.ParseInt(parts[2], 10, 64)
		return swapPrefix, tournamentID, participantID, err
	}
	return "", uuid.Nil, 0, fmt.Errorf("unknown callback %q", data)
}

// labelFromMarkup recovers the participant name from the pressed button so a
// selection needs no extra Challonge call.
func labelFromMarkup(markup *tgbotapi.InlineKeyboardMarkup, data string) string {
	if markup == nil {
		return ""
	}
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == data {
				if _, label, ok := strings.Cut(btn.Text, ". "); ok {
					return label
				}
				return btn.Text
			}
		}
	}
	return ""
}
