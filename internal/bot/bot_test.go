package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hrtoolkit/internal/db"
	"hrtoolkit/internal/export"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/messages"
	"hrtoolkit/internal/naming"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"))
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	updates chan tgbotapi.Update
	baseURL string
	stopped bool
	// sendDelay simulates network latency on every Send.
	sendDelay time.Duration
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	time.Sleep(f.sendDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.baseURL == "" {
		return "", errors.New("no file server")
	}
	return f.baseURL + "/" + fileID, nil
}

// texts returns the text of every message sent or edited so far.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func (f *fakeAPI) contains(sub string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

func (f *fakeAPI) documents() []tgbotapi.DocumentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.DocumentConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

type fakeNamer struct {
	res   naming.Result
	block bool
}

func (n fakeNamer) Suggest(ctx context.Context, count int) naming.Result {
	if n.block {
		<-ctx.Done()
		return naming.Failed(ctx.Err())
	}
	return n.res
}

const chatID int64 = 42

func newTestBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	st, err := db.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	b := New(api, st, zaptest.NewLogger(t))
	b.Rand = logic.NewRand(1)
	b.Spin = logic.SpinConfig{Ticks: 0, Interval: time.Millisecond, Window: 3}
	b.Now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(b.shutdown)
	return b, api
}

func command(text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func text(s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text: s,
	}}
}

func TestRosterCommands(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)

	b.handleUpdate(ctx, text("Alice\nBob, Carol\n\nAlice"))
	assert.Contains(t, api.last(), fmt.Sprintf(messages.RosterUpdated, 4))
	assert.Contains(t, api.last(), "Alice")
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Alice"}, b.session(chatID).names())

	b.handleUpdate(ctx, command("/stats"))
	assert.Contains(t, api.last(), "Alice ×2")

	b.handleUpdate(ctx, command("/dedupe"))
	assert.Equal(t, fmt.Sprintf(messages.RosterDeduped, 1, 3), api.last())
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, b.session(chatID).names())

	b.handleUpdate(ctx, command("/dedupe"))
	assert.Equal(t, messages.RosterNoDupes, api.last())

	b.handleUpdate(ctx, command("/roster"))
	assert.Equal(t, "3 participants.\n1. Alice\n2. Bob\n3. Carol", api.last())

	b.handleUpdate(ctx, command("/roster Dan, Eve"))
	assert.Equal(t, []string{"Dan", "Eve"}, b.session(chatID).names())

	b.handleUpdate(ctx, command("/sample"))
	assert.Len(t, b.session(chatID).names(), 20)

	b.handleUpdate(ctx, command("/clear"))
	assert.Equal(t, messages.RosterCleared, api.last())
	assert.Empty(t, b.session(chatID).names())

	b.handleUpdate(ctx, command("/nope"))
	assert.Equal(t, messages.UnknownCommand, api.last())
}

func TestGroupChatTextIsIgnored(t *testing.T) {
	b, api := newTestBot(t)
	upd := text("Alice, Bob")
	upd.Message.Chat.Type = "group"
	b.handleUpdate(context.Background(), upd)
	assert.Empty(t, api.texts())
	assert.Empty(t, b.session(chatID).names())
}

func TestDrawAnnouncesAndJournalsWinner(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.handleUpdate(ctx, command("/roster Alice, Bob"))

	b.handleUpdate(ctx, command("/draw"))
	require.Eventually(t, func() bool { return !b.session(chatID).draw.Busy() && api.contains("Winner") },
		time.Second, 5*time.Millisecond)

	history := b.session(chatID).draw.History()
	require.Len(t, history, 1)
	assert.Contains(t, api.texts(), fmt.Sprintf(messages.DrawWinner, history[0]))

	require.Eventually(t, func() bool {
		wins, err := b.Store.ListWins(ctx, chatID, 0)
		return err == nil && len(wins) == 1 && wins[0].Winner == history[0]
	}, time.Second, 5*time.Millisecond)

	b.handleUpdate(ctx, command("/draw"))
	require.Eventually(t, func() bool { return len(b.session(chatID).draw.History()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, b.session(chatID).draw.History())

	b.handleUpdate(ctx, command("/draw"))
	assert.Equal(t, messages.DrawEmpty, api.last())

	b.handleUpdate(ctx, command("/history"))
	assert.Contains(t, api.last(), "2. ")
	assert.Contains(t, api.last(), "1. ")

	b.handleUpdate(ctx, command("/reset"))
	assert.Equal(t, fmt.Sprintf(messages.DrawReset, 2), api.last())

	b.handleUpdate(ctx, command("/history"))
	assert.Equal(t, messages.DrawNoHistory, api.last())

	require.Eventually(t, func() bool {
		wins, err := b.Store.ListWins(ctx, chatID, 0)
		return err == nil && len(wins) == 2
	}, time.Second, 5*time.Millisecond)
	b.handleUpdate(ctx, command("/winners"))
	assert.Contains(t, api.last(), "2026-10-18 09:30")
}

func TestDrawWinnerEditsSpinMessageOnSlowSend(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.handleUpdate(ctx, command("/roster Alice, Bob"))
	api.sendDelay = 50 * time.Millisecond

	b.handleUpdate(ctx, command("/draw"))
	require.Eventually(t, func() bool { return api.contains("Winner") }, time.Second, 5*time.Millisecond)

	api.mu.Lock()
	sent := append([]tgbotapi.Chattable(nil), api.sent...)
	api.mu.Unlock()
	require.Len(t, sent, 3)
	spin, ok := sent[1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, messages.DrawSpinning, spin.Text)
	edit, ok := sent[2].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok, "winner must edit the spin message")
	assert.Equal(t, 2, edit.MessageID)
	assert.Contains(t, edit.Text, "Winner")
}

func TestDrawRefusedWhileSpinning(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.Spin = logic.SpinConfig{Ticks: 5, Interval: time.Hour, Window: 1}
	b.handleUpdate(ctx, command("/roster Alice, Bob"))

	b.handleUpdate(ctx, command("/draw"))
	assert.Equal(t, messages.DrawSpinning, api.last())
	assert.True(t, b.session(chatID).draw.Busy())

	for _, cmd := range []string{"/draw", "/reset", "/repeat on"} {
		b.handleUpdate(ctx, command(cmd))
		assert.Equal(t, messages.DrawBusy, api.last(), cmd)
	}

	// A new roster cancels the spin without announcing a winner.
	b.handleUpdate(ctx, command("/roster Carol"))
	assert.False(t, b.session(chatID).draw.Busy())
	assert.False(t, api.contains("Winner"))
	assert.Equal(t, []string{"Carol"}, b.session(chatID).draw.Pool())
}

func TestRepeatCommand(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.handleUpdate(ctx, command("/roster Alice"))

	b.handleUpdate(ctx, command("/repeat maybe"))
	assert.Equal(t, messages.RepeatUsage, api.last())

	b.handleUpdate(ctx, command("/repeat on"))
	assert.Equal(t, messages.DrawModeOn, api.last())
	for i := 0; i < 3; i++ {
		b.handleUpdate(ctx, command("/draw"))
		n := i + 1
		require.Eventually(t, func() bool { return len(b.session(chatID).draw.History()) == n }, time.Second, 5*time.Millisecond)
	}
	assert.Equal(t, []string{"Alice", "Alice", "Alice"}, b.session(chatID).draw.History())

	b.handleUpdate(ctx, command("/repeat off"))
	assert.Equal(t, fmt.Sprintf(messages.DrawModeOff, 1), api.last())
}

func TestGroupCommand(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)

	b.handleUpdate(ctx, command("/roster Alice"))
	b.handleUpdate(ctx, command("/group 2"))
	assert.Equal(t, messages.GroupTooFew, api.last())

	b.handleUpdate(ctx, command("/roster A, B, C, D, E"))
	usage := fmt.Sprintf(messages.GroupUsage, 2, 5)
	for _, args := range []string{"", "1", "6", "two"} {
		b.handleUpdate(ctx, command(strings.TrimSpace("/group "+args)))
		assert.Equal(t, usage, api.last(), args)
	}

	b.handleUpdate(ctx, command("/export"))
	assert.Equal(t, messages.GroupNone, api.last())

	b.handleUpdate(ctx, command("/group 2"))
	out := api.last()
	assert.True(t, strings.HasPrefix(out, messages.GroupHeader))
	assert.Contains(t, out, "Group 1 (3): ")
	assert.Contains(t, out, "Group 2 (2): ")

	groups := b.session(chatID).lastGroups()
	require.Len(t, groups, 2)
	var members []string
	for _, g := range groups {
		members = append(members, g.Members...)
	}
	assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E"}, members)

	var n int
	require.NoError(t, b.Store.DB.Get(&n, "SELECT COUNT(1) FROM grouping_members"))
	assert.Equal(t, 5, n)

	b.handleUpdate(ctx, command("/export"))
	docs := api.documents()
	require.Len(t, docs, 1)
	file, ok := docs[0].File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "groups_2026-10-18.csv", file.Name)
	assert.True(t, strings.HasPrefix(string(file.Bytes), export.BOM+"GroupName,MemberName\n"))
	assert.Equal(t, 6, strings.Count(string(file.Bytes), "\n"))
}

func TestGroupAINames(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.Namer = fakeNamer{res: naming.Succeeded([]string{"Owls", "Foxes"})}
	b.handleUpdate(ctx, command("/roster A, B, C, D"))

	b.handleUpdate(ctx, command("/group 2 ai"))
	b.Wait()

	texts := api.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.True(t, strings.HasPrefix(texts[len(texts)-2], messages.GroupHeader), "default names come first")
	assert.True(t, strings.HasPrefix(api.last(), messages.GroupRenamed))
	assert.Contains(t, api.last(), "Owls (2): ")
	assert.Contains(t, api.last(), "Foxes (2): ")

	groups := b.session(chatID).lastGroups()
	assert.Equal(t, "Owls", groups[0].Name)
	assert.Equal(t, "Foxes", groups[1].Name)

	var names []string
	require.NoError(t, b.Store.DB.Select(&names, "SELECT DISTINCT group_name FROM grouping_members ORDER BY group_no"))
	assert.Equal(t, []string{"Owls", "Foxes"}, names)
}

func TestGroupAINamesFailureKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.NamingTimeout = 10 * time.Millisecond
	b.Namer = fakeNamer{block: true}
	b.handleUpdate(ctx, command("/roster A, B, C, D"))

	b.handleUpdate(ctx, command("/group 2 ai"))
	b.Wait()

	assert.True(t, strings.HasPrefix(api.last(), messages.GroupHeader))
	assert.False(t, api.contains(messages.GroupRenamed))
	groups := b.session(chatID).lastGroups()
	assert.Equal(t, "Group 1", groups[0].Name)
	assert.Equal(t, "Group 2", groups[1].Name)
}

func TestConcurrentRosterChangesStayConsistent(t *testing.T) {
	s := newSession(logic.NewRand(1))
	x, y := []string{"X1", "X2"}, []string{"Y1"}

	var wg sync.WaitGroup
	for _, names := range [][]string{x, y} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.setRoster(names)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = s.draw.Pool()
			_ = s.names()
		}
	}()
	wg.Wait()

	assert.Equal(t, s.names(), s.draw.Pool(), "roster and draw pool diverged")
	assert.Contains(t, [][]string{x, y}, s.names())
}

func TestStaleUploadIsDropped(t *testing.T) {
	s := newSession(logic.NewRand(1))
	older := s.beginUpload()
	newer := s.beginUpload()

	assert.True(t, s.finishUpload(newer, []string{"New"}))
	assert.False(t, s.finishUpload(older, []string{"Old"}))
	assert.Equal(t, []string{"New"}, s.names())

	pending := s.beginUpload()
	s.setRoster([]string{"Typed"})
	assert.False(t, s.finishUpload(pending, []string{"Late"}))
	assert.Equal(t, []string{"Typed"}, s.names())
}

func TestStaleAINamesAreDropped(t *testing.T) {
	s := newSession(logic.NewRand(1))
	first := s.setGroups([]logic.Group{{ID: 1, Name: "Group 1"}}, "a")
	s.setGroups([]logic.Group{{ID: 1, Name: "Group 1"}, {ID: 2, Name: "Group 2"}}, "b")
	assert.False(t, s.renameGroups(first, []logic.Group{{ID: 1, Name: "Owls"}}))
	assert.Len(t, s.lastGroups(), 2)
}

func document(name, fileID string, size int) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		Document: &tgbotapi.Document{FileID: fileID, FileName: name, FileSize: size},
	}}
}

func TestDocumentUpload(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good":
			fmt.Fprint(w, "\ufeffAlice\r\nBob,Carol\r\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	b, api := newTestBot(t)
	api.baseURL = srv.URL
	b.HTTP = srv.Client()
	b.handleUpdate(ctx, command("/roster Zed"))

	b.handleUpdate(ctx, document("people.pdf", "good", 10))
	assert.Equal(t, messages.FileUnsupported, api.last())

	b.handleUpdate(ctx, document("big.csv", "good", int(b.MaxUploadBytes)+1))
	assert.Contains(t, api.last(), "Could not read the file")

	b.handleUpdate(ctx, document("missing.csv", "missing", 10))
	b.Wait()
	assert.Contains(t, api.last(), "Could not read the file")
	assert.Equal(t, []string{"Zed"}, b.session(chatID).names())

	b.handleUpdate(ctx, document("people.CSV", "good", 10))
	b.Wait()
	assert.Contains(t, api.texts(), fmt.Sprintf(messages.FileLoading, "people.CSV"))
	assert.Equal(t, fmt.Sprintf(messages.RosterUpdated, 3), api.last())
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, b.session(chatID).names())
}

func TestOlderUploadDoesNotOverwriteNewer(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			<-release
			fmt.Fprint(w, "Old1\nOld2\n")
		case "/new":
			fmt.Fprint(w, "New1\n")
		}
	}))
	t.Cleanup(srv.Close)

	b, api := newTestBot(t)
	api.baseURL = srv.URL
	b.HTTP = srv.Client()

	b.handleUpdate(ctx, document("old.txt", "old", 10))
	b.handleUpdate(ctx, document("new.txt", "new", 10))
	require.Eventually(t, func() bool {
		names := b.session(chatID).names()
		return len(names) == 1 && names[0] == "New1"
	}, time.Second, 5*time.Millisecond)

	close(release)
	b.Wait()
	assert.Equal(t, []string{"New1"}, b.session(chatID).names())
	assert.Equal(t, fmt.Sprintf(messages.RosterUpdated, 1), api.last())
}

func TestMyChatMemberRegistersChat(t *testing.T) {
	ctx := context.Background()
	b, api := newTestBot(t)
	b.handleUpdate(ctx, tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -100, Title: "HR team", Type: "supergroup"},
		NewChatMember: tgbotapi.ChatMember{Status: "member"},
	}})
	assert.Equal(t, messages.IntroMessage, api.last())
	n, err := b.Store.CountChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b.handleUpdate(ctx, tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -100},
		NewChatMember: tgbotapi.ChatMember{Status: "left"},
	}})
	assert.Len(t, api.texts(), 1)
}

func TestStartStopsOnCancel(t *testing.T) {
	b, api := newTestBot(t)
	b.Spin = logic.SpinConfig{Ticks: 5, Interval: time.Hour, Window: 1}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	api.updates <- command("/roster Alice, Bob")
	api.updates <- command("/draw")
	require.Eventually(t, func() bool { return b.session(chatID).draw.Busy() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
	assert.False(t, b.session(chatID).draw.Busy())
	api.mu.Lock()
	assert.True(t, api.stopped)
	api.mu.Unlock()
}
