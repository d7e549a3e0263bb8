package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hrtoolkit/internal/db"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/messages"
	"hrtoolkit/internal/naming"
	"hrtoolkit/internal/roster"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Bot struct {
	API   API
	Store *db.Store
	Log   *zap.Logger
	// Namer is optional; without it "/group n ai" keeps default names.
	Namer naming.Namer
	Rand  logic.Rand
	Label logic.Labeler

	Spin           logic.SpinConfig
	NamingTimeout  time.Duration
	MaxUploadBytes int64
	HTTP           *http.Client
	Now            func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
	wg       sync.WaitGroup
}

func New(api API, store *db.Store, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		API:            api,
		Store:          store,
		Log:            log,
		Rand:           logic.NewRand(0),
		Label:          logic.DefaultLabel,
		Spin:           logic.DefaultSpin(),
		NamingTimeout:  15 * time.Second,
		MaxUploadBytes: 1 << 20,
		HTTP:           &http.Client{Timeout: 30 * time.Second},
		Now:            time.Now,
		sessions:       make(map[int64]*session),
	}
}

// Start processes updates until ctx is done, then cancels running draws and
// waits for background work to finish.
func (b *Bot) Start(ctx context.Context) {
	updates := b.API.GetUpdatesChan(tgbotapi.UpdateConfig{Timeout: 30})
	defer b.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) shutdown() {
	b.API.StopReceivingUpdates()
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.draw.Cancel()
	}
	b.Wait()
}

// Wait blocks until file reads and naming calls started so far are done.
func (b *Bot) Wait() { b.wg.Wait() }

func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[chatID]
	if !ok {
		s = newSession(b.Rand)
		b.sessions[chatID] = s
	}
	return s
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.MyChatMember != nil {
		b.onMyChatMember(ctx, *upd.MyChatMember)
		return
	}
	msg := upd.Message
	if msg == nil {
		return
	}
	switch {
	case msg.Document != nil:
		b.onDocument(ctx, msg)
	case msg.IsCommand():
		b.onCommand(ctx, msg)
	case msg.Chat.IsPrivate() && strings.TrimSpace(msg.Text) != "":
		b.applyRoster(msg.Chat.ID, roster.Parse(msg.Text))
	}
}

func (b *Bot) onMyChatMember(ctx context.Context, m tgbotapi.ChatMemberUpdated) {
	status := m.NewChatMember.Status
	if status == "member" || status == "administrator" || status == "creator" {
		if err := b.Store.UpsertChat(ctx, m.Chat.ID, m.Chat.Title); err != nil {
			b.Log.Error("upsert chat", zap.Int64("chat_id", m.Chat.ID), zap.Error(err))
		}
		b.reply(m.Chat.ID, messages.IntroMessage)
	}
}

func (b *Bot) onCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		if err := b.Store.UpsertChat(ctx, chatID, msg.Chat.Title); err != nil {
			b.Log.Error("upsert chat", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		b.reply(chatID, messages.IntroMessage)
	case "help":
		b.reply(chatID, messages.HelpMessage)
	case "roster":
		if args == "" {
			b.reply(chatID, formatRoster(b.session(chatID).names()))
			return
		}
		b.applyRoster(chatID, roster.Parse(args))
	case "sample":
		b.applyRoster(chatID, roster.Sample())
	case "clear":
		b.session(chatID).setRoster(nil)
		b.reply(chatID, messages.RosterCleared)
	case "stats":
		b.reply(chatID, formatStats(roster.Analyze(b.session(chatID).names())))
	case "dedupe":
		b.dedupe(chatID)
	case "draw":
		b.startDraw(ctx, chatID)
	case "repeat":
		b.setRepeat(chatID, args)
	case "reset":
		b.resetDraw(chatID)
	case "history":
		b.reply(chatID, formatHistory(b.session(chatID).draw.History()))
	case "winners":
		b.listWinners(ctx, chatID)
	case "group":
		b.makeGroups(ctx, chatID, args)
	case "export":
		b.export(chatID)
	default:
		b.reply(chatID, messages.UnknownCommand)
	}
}

func (b *Bot) applyRoster(chatID int64, names []string) {
	b.session(chatID).setRoster(names)
	b.reply(chatID, rosterUpdated(names))
}

func rosterUpdated(names []string) string {
	text := fmt.Sprintf(messages.RosterUpdated, len(names))
	if rep := roster.Analyze(names); rep.Redundant > 0 {
		text += "\n" + fmt.Sprintf(messages.RosterDuplicate, rep.Redundant, strings.Join(rep.Duplicates, ", "))
	}
	return text
}

func (b *Bot) dedupe(chatID int64) {
	s := b.session(chatID)
	names := s.names()
	rep := roster.Analyze(names)
	if rep.Redundant == 0 {
		b.reply(chatID, messages.RosterNoDupes)
		return
	}
	unique := roster.RemoveDuplicates(names)
	s.setRoster(unique)
	b.reply(chatID, fmt.Sprintf(messages.RosterDeduped, rep.Redundant, len(unique)))
}

var allowedExt = map[string]bool{".csv": true, ".txt": true}

// onDocument reads an uploaded roster in the background. The current
// roster is replaced only when the whole file was read and nothing changed
// the roster in the meantime.
func (b *Bot) onDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document
	if !allowedExt[strings.ToLower(filepath.Ext(doc.FileName))] {
		b.reply(chatID, messages.FileUnsupported)
		return
	}
	if b.MaxUploadBytes > 0 && int64(doc.FileSize) > b.MaxUploadBytes {
		b.reply(chatID, fmt.Sprintf(messages.FileReadFailed, fmt.Errorf("file exceeds %d bytes", b.MaxUploadBytes)))
		return
	}
	b.reply(chatID, fmt.Sprintf(messages.FileLoading, doc.FileName))

	s := b.session(chatID)
	gen := s.beginUpload()
	results := roster.ReadFile(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return b.download(ctx, doc.FileID)
	}, b.MaxUploadBytes)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		res := <-results
		if res.Err != nil {
			b.Log.Warn("roster file read failed",
				zap.Int64("chat_id", chatID), zap.String("file", doc.FileName), zap.Error(res.Err))
			b.reply(chatID, fmt.Sprintf(messages.FileReadFailed, res.Err))
			return
		}
		if !s.finishUpload(gen, res.Names) {
			b.Log.Debug("dropping stale roster file", zap.Int64("chat_id", chatID), zap.String("file", doc.FileName))
			return
		}
		b.reply(chatID, rosterUpdated(res.Names))
	}()
}

func (b *Bot) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := b.API.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}
	return resp.Body, nil
}

func (b *Bot) reply(chatID int64, text string) tgbotapi.Message {
	sent, err := b.API.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		b.Log.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent
}
