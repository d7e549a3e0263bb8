package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"hrtoolkit/internal/export"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/messages"
	"hrtoolkit/internal/naming"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// makeGroups handles "/group <n> [ai]". Default-named groups are sent right
// away; AI names, when asked for, follow in a second message.
func (b *Bot) makeGroups(ctx context.Context, chatID int64, args string) {
	s := b.session(chatID)
	names := s.names()
	lo, hi := logic.GroupCountRange(len(names))
	if hi < lo {
		b.reply(chatID, messages.GroupTooFew)
		return
	}
	usage := fmt.Sprintf(messages.GroupUsage, lo, hi)

	count, useAI := 0, false
	for _, f := range strings.Fields(args) {
		if strings.EqualFold(f, "ai") {
			useAI = true
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			b.reply(chatID, usage)
			return
		}
		count = n
	}
	if count < lo || count > hi {
		b.reply(chatID, usage)
		return
	}

	groups, err := logic.MakeGroups(names, count, b.Rand, b.Label)
	if err != nil {
		b.reply(chatID, usage)
		return
	}
	id, err := b.Store.RecordGrouping(ctx, chatID, groups, b.Now())
	if err != nil {
		b.Log.Error("record grouping", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	gen := s.setGroups(groups, id)
	b.reply(chatID, formatGroups(messages.GroupHeader, groups))

	if !useAI {
		return
	}
	if b.Namer == nil {
		b.Log.Debug("naming requested without a namer", zap.Int64("chat_id", chatID))
		return
	}
	b.nameGroups(ctx, s, chatID, gen, id, groups)
}

func (b *Bot) nameGroups(ctx context.Context, s *session, chatID int64, gen uint64, groupingID string, groups []logic.Group) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		nctx, cancel := context.WithTimeout(ctx, b.NamingTimeout)
		defer cancel()

		res := b.Namer.Suggest(nctx, len(groups))
		renamed := naming.Apply(groups, res, b.Log.With(zap.Int64("chat_id", chatID)))
		if !res.OK() {
			return
		}
		if !s.renameGroups(gen, renamed) {
			b.Log.Debug("dropping names for replaced groups", zap.Int64("chat_id", chatID))
			return
		}
		if groupingID != "" {
			if err := b.Store.RenameGrouping(context.WithoutCancel(ctx), groupingID, renamed); err != nil {
				b.Log.Error("rename grouping", zap.String("grouping_id", groupingID), zap.Error(err))
			}
		}
		b.reply(chatID, formatGroups(messages.GroupRenamed, renamed))
	}()
}

func (b *Bot) export(chatID int64) {
	groups := b.session(chatID).lastGroups()
	if len(groups) == 0 {
		b.reply(chatID, messages.GroupNone)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, groups); err != nil {
		b.Log.Error("write csv", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if _, err := b.API.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadDocument)); err != nil {
		b.Log.Debug("chat action", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: export.FileName(b.Now()), Bytes: buf.Bytes()})
	if _, err := b.API.Send(doc); err != nil {
		b.Log.Warn("send export", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
