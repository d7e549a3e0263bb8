package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/messages"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram rate-limits message edits, so the spin is shown at most once per
// editThrottle.
const editThrottle = time.Second

// startDraw posts the spin message before the spin starts, so ticks and
// the winner always edit a message that already exists.
func (b *Bot) startDraw(ctx context.Context, chatID int64) {
	d := b.session(chatID).draw
	if d.Busy() {
		b.reply(chatID, messages.DrawBusy)
		return
	}
	if d.Remaining() == 0 {
		b.reply(chatID, messages.DrawEmpty)
		return
	}
	msgID := b.reply(chatID, messages.DrawSpinning).MessageID
	var lastEdit time.Time

	err := d.Spin(ctx, b.Spin,
		func(sample []string) {
			if msgID == 0 || time.Since(lastEdit) < editThrottle {
				return
			}
			lastEdit = time.Now()
			b.edit(chatID, msgID, messages.DrawSpinning+"\n"+strings.Join(sample, "\n"))
		},
		func(winner string, err error) {
			b.finishDraw(ctx, d, chatID, msgID, winner, err)
		})
	switch {
	case errors.Is(err, logic.ErrDrawBusy):
		b.announce(chatID, msgID, messages.DrawBusy)
	case errors.Is(err, logic.ErrEmptyPool):
		b.announce(chatID, msgID, messages.DrawEmpty)
	case err != nil:
		b.Log.Error("start draw", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) finishDraw(ctx context.Context, d *logic.Draw, chatID int64, msgID int, winner string, err error) {
	switch {
	case errors.Is(err, logic.ErrEmptyPool):
		b.announce(chatID, msgID, messages.DrawEmpty)
		return
	case err != nil:
		b.Log.Debug("draw canceled", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	b.announce(chatID, msgID, fmt.Sprintf(messages.DrawWinner, winner))
	if err := b.Store.RecordWin(context.WithoutCancel(ctx), chatID, winner, d.Repeat(), b.Now()); err != nil {
		b.Log.Error("record win", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// announce replaces the spin message, or sends a new one when the spin
// message could not be posted.
func (b *Bot) announce(chatID int64, msgID int, text string) {
	if msgID == 0 {
		b.reply(chatID, text)
		return
	}
	b.edit(chatID, msgID, text)
}

func (b *Bot) edit(chatID int64, msgID int, text string) {
	if _, err := b.API.Send(tgbotapi.NewEditMessageText(chatID, msgID, text)); err != nil {
		b.Log.Debug("edit message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func parseSwitch(arg string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	}
	return false, false
}

func (b *Bot) setRepeat(chatID int64, args string) {
	repeat, ok := parseSwitch(args)
	if !ok {
		b.reply(chatID, messages.RepeatUsage)
		return
	}
	d := b.session(chatID).draw
	if err := d.SetRepeat(repeat); err != nil {
		b.reply(chatID, messages.DrawBusy)
		return
	}
	if repeat {
		b.reply(chatID, messages.DrawModeOn)
		return
	}
	b.reply(chatID, fmt.Sprintf(messages.DrawModeOff, d.Remaining()))
}

func (b *Bot) resetDraw(chatID int64) {
	d := b.session(chatID).draw
	if err := d.Reset(); err != nil {
		b.reply(chatID, messages.DrawBusy)
		return
	}
	b.reply(chatID, fmt.Sprintf(messages.DrawReset, d.Remaining()))
}

func (b *Bot) listWinners(ctx context.Context, chatID int64) {
	wins, err := b.Store.ListWins(ctx, chatID, 10)
	if err != nil {
		b.Log.Error("list wins", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	b.reply(chatID, formatWins(wins))
}
