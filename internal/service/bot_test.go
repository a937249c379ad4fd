package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khmercoders/kcbot/internal/biz"
	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
	"github.com/khmercoders/kcbot/internal/biz/usecase"
	"github.com/khmercoders/kcbot/internal/data"
	"github.com/khmercoders/kcbot/internal/infra/telegram"
)

// Mock implementations

type mockMessenger struct {
	mu      sync.Mutex
	replies []*repo.Reply
	typing  []string
}

func (m *mockMessenger) SendReply(ctx context.Context, reply *repo.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply)
	return nil
}

func (m *mockMessenger) SendTyping(ctx context.Context, chatID, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, chatID)
	return nil
}

func (m *mockMessenger) last(t *testing.T) *repo.Reply {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.replies)
	return m.replies[len(m.replies)-1]
}

type mockGenerator struct {
	text  string
	err   error
	calls int
	seen  []repo.Instruction
}

func (m *mockGenerator) Complete(ctx context.Context, instructions []repo.Instruction) (*repo.Completion, error) {
	m.calls++
	m.seen = instructions
	if m.err != nil {
		return nil, m.err
	}
	return &repo.Completion{Text: m.text}, nil
}

type mockVerifier struct {
	linkedID string
	err      error
	codes    []string
}

func (m *mockVerifier) Verify(ctx context.Context, code string) (string, error) {
	m.codes = append(m.codes, code)
	return m.linkedID, m.err
}

type testBot struct {
	bot       *BotService
	messenger *mockMessenger
	generator *mockGenerator
	verifier  *mockVerifier
	repos     *data.Repositories
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	repos, err := data.NewRepositories(filepath.Join(t.TempDir(), "kcbot.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	tb := &testBot{
		messenger: &mockMessenger{},
		generator: &mockGenerator{text: "**Busy** day"},
		verifier:  &mockVerifier{linkedID: "kc-42"},
		repos:     repos,
	}
	uc := biz.NewUsecases(biz.Deps{
		Messages:  repos.Message,
		Users:     repos.User,
		Threads:   repos.Thread,
		Generator: tb.generator,
		Verifier:  tb.verifier,
	}, usecase.SummaryConfig{
		Timeout: time.Second,
		Prompts: usecase.SummaryPrompts{
			System:        "be brief",
			UserGeneral:   "Summarize {{count}}:\n{{history}}",
			UserWithQuery: "Summarize {{count}}:\n{{history}}\nFocus: {{query}}",
		},
	}, false, nil)

	tb.bot = NewBotService(uc, tb.messenger, "kc_bot", nil)
	return tb
}

var nextID int64 = 100

func message(chatType, text string) *telegram.Message {
	nextID++
	chatID := int64(-1001)
	if chatType == "private" {
		chatID = 7
	}
	return &telegram.Message{
		MessageID: nextID,
		From:      &telegram.User{ID: 7, FirstName: "Dara"},
		Chat:      &telegram.Chat{ID: chatID, Type: chatType, Title: "KhmerCoders"},
		Date:      time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC).Unix() + nextID,
		Text:      text,
	}
}

func (tb *testBot) send(msg *telegram.Message) {
	tb.bot.HandleUpdate(context.Background(), &telegram.Update{UpdateID: msg.MessageID, Message: msg})
}

func (tb *testBot) stored(t *testing.T, chatID string) []*domain.StoredMessage {
	t.Helper()
	got, err := tb.repos.Message.FetchRecent(context.Background(), chatID, 0, "")
	require.NoError(t, err)
	return got
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
		ok   bool
	}{
		{"/ping", Command{Name: "ping"}, true},
		{"/Summary what about go?", Command{Name: "summary", Args: "what about go?"}, true},
		{"/summary@kc_bot  rust ", Command{Name: "summary", Mention: "kc_bot", Args: "rust"}, true},
		{"/summary\nlast week", Command{Name: "summary", Args: "last week"}, true},
		{"/link Ab3Cd5Ef9", Command{Name: "link", Args: "Ab3Cd5Ef9"}, true},
		{"hello /ping", Command{}, false},
		{"/", Command{}, false},
		{"", Command{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestHandleUpdateRecordsMessages(t *testing.T) {
	tb := newTestBot(t)

	tb.send(message("supergroup", "hello world"))
	tb.send(message("group", "not recorded"))
	tb.send(message("private", "not recorded either"))
	tb.send(&telegram.Message{MessageID: 9, Date: 1, Text: "no chat"})
	tb.bot.HandleUpdate(context.Background(), &telegram.Update{UpdateID: 1})

	got := tb.stored(t, "-1001")
	require.Len(t, got, 1)
	assert.Equal(t, "hello world", got[0].Text)
	assert.Equal(t, "Dara", got[0].SenderName)
	assert.Empty(t, tb.stored(t, "7"))
	assert.Empty(t, tb.messenger.replies)

	activity, err := tb.repos.User.GetUserActivity(context.Background(), domain.PlatformTelegram, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.MessageCount)
	assert.Equal(t, int64(11), activity.TotalCharacters)
}

func TestHandleUpdateRedeliveryIsCountedOnce(t *testing.T) {
	tb := newTestBot(t)

	msg := message("supergroup", "hello")
	tb.send(msg)
	tb.send(msg)

	assert.Len(t, tb.stored(t, "-1001"), 1)
	activity, err := tb.repos.User.GetUserActivity(context.Background(), domain.PlatformTelegram, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.MessageCount)
}

func TestSimpleCommands(t *testing.T) {
	tb := newTestBot(t)

	tests := []struct {
		text  string
		want  string
		plain bool
	}{
		{"/start", StartText, true},
		{"/help", HelpText, false},
		{"/ping", PingText, false},
		{"/PING@KC_Bot", PingText, false},
	}

	for _, tt := range tests {
		msg := message("supergroup", tt.text)
		msg.MessageThreadID = 12
		tb.send(msg)

		r := tb.messenger.last(t)
		assert.Equal(t, tt.want, r.Text, tt.text)
		assert.Equal(t, tt.plain, r.PlainText, tt.text)
		assert.Equal(t, "-1001", r.ChatID)
		assert.Equal(t, "12", r.ThreadID)
		assert.Equal(t, msg.ID(), r.ReplyTo)
	}

	// Commands are answered, not stored
	assert.Empty(t, tb.stored(t, "-1001"))
}

func TestCommandsForOtherBotsAreRecorded(t *testing.T) {
	tb := newTestBot(t)

	tb.send(message("supergroup", "/ping@other_bot"))
	tb.send(message("supergroup", "/unknown stuff"))

	assert.Empty(t, tb.messenger.replies)
	assert.Len(t, tb.stored(t, "-1001"), 2)
}

func TestSummaryCommand(t *testing.T) {
	tb := newTestBot(t)

	tb.send(message("supergroup", "we shipped v2"))
	tb.send(message("supergroup", "nice work"))

	cmd := message("supergroup", "/summary releases")
	tb.send(cmd)

	r := tb.messenger.last(t)
	assert.Equal(t, "<b>Busy</b> day", r.Text)
	assert.False(t, r.PlainText)
	assert.Equal(t, cmd.ID(), r.ReplyTo)
	assert.Equal(t, []string{"-1001"}, tb.messenger.typing)

	require.Equal(t, 1, tb.generator.calls)
	require.Len(t, tb.generator.seen, 2)
	user := tb.generator.seen[1].Content
	assert.Contains(t, user, "Summarize 2:")
	assert.Contains(t, user, "Dara: we shipped v2\n")
	assert.Contains(t, user, "Focus: releases")

	// The command itself is not part of the history
	assert.Len(t, tb.stored(t, "-1001"), 2)
}

func TestSummaryCommandEmptyWindow(t *testing.T) {
	tb := newTestBot(t)

	tb.send(message("supergroup", "/summary"))

	assert.Equal(t, usecase.NoMessagesText, tb.messenger.last(t).Text)
	assert.Zero(t, tb.generator.calls)
}

func TestSummaryCommandFallback(t *testing.T) {
	tb := newTestBot(t)
	tb.generator.err = errors.New("upstream 503")

	tb.send(message("supergroup", "first"))
	tb.send(message("supergroup", "/summary"))

	r := tb.messenger.last(t)
	assert.Contains(t, r.Text, "<b>💬 Chat Activity Summary</b>")
	assert.Contains(t, r.Text, "<i>Messages:</i> 1")
	assert.Contains(t, r.Text, "(Dara)")
}

func TestSummaryCommandIneligibleChat(t *testing.T) {
	tb := newTestBot(t)

	tb.send(message("group", "/summary"))
	tb.send(message("private", "/summary"))

	require.Len(t, tb.messenger.replies, 2)
	for _, r := range tb.messenger.replies {
		assert.Equal(t, SummaryUnavailableText, r.Text)
	}
	assert.Empty(t, tb.messenger.typing)
	assert.Zero(t, tb.generator.calls)
}

func TestSummaryCommandBlockedThread(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.repos.Thread.AddToBlacklist(context.Background(), &domain.ThreadBlacklistEntry{ThreadID: "5"}))

	chatter := message("supergroup", "off topic")
	chatter.MessageThreadID = 5
	tb.send(chatter)

	cmd := message("supergroup", "/summary")
	cmd.MessageThreadID = 5
	tb.send(cmd)

	r := tb.messenger.last(t)
	assert.Equal(t, ThreadBlockedText, r.Text)
	assert.Equal(t, "5", r.ThreadID)
	assert.Empty(t, tb.stored(t, "-1001"))
	assert.Zero(t, tb.generator.calls)
}

func TestSummaryCommandStoreFailure(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.repos.Close())

	tb.send(message("supergroup", "/summary"))

	assert.Equal(t, SummaryErrorText, tb.messenger.last(t).Text)
}

func TestLinkCommand(t *testing.T) {
	tests := []struct {
		name      string
		chatType  string
		text      string
		verifyErr error
		want      string
		plain     bool
		verified  bool
	}{
		{"group chat", "supergroup", "/link Ab3Cd5Ef9", nil, LinkPrivateOnlyText, false, false},
		{"missing code", "private", "/link", nil, LinkUsageText, false, false},
		{"invalid code", "private", "/link abcdefghi", nil, LinkUsageText, false, false},
		{"success", "private", "/link Ab3Cd5Ef9", nil, LinkSuccessText, false, true},
		{"rejected", "private", "/link Ab3Cd5Ef9", domain.ErrLinkRejected, LinkRejectedText, true, true},
		{"api down", "private", "/link Ab3Cd5Ef9", errors.New("connection refused"), LinkErrorText, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t)
			tb.verifier.err = tt.verifyErr

			tb.send(message(tt.chatType, tt.text))

			r := tb.messenger.last(t)
			assert.Equal(t, tt.want, r.Text)
			assert.Equal(t, tt.plain, r.PlainText)
			assert.Len(t, tb.messenger.typing, 1)
			assert.Equal(t, tt.verified, len(tb.verifier.codes) == 1)
		})
	}
}

func TestLinkCommandStoresLink(t *testing.T) {
	tb := newTestBot(t)

	tb.send(message("private", "/link Ab3Cd5Ef9"))

	activity, err := tb.repos.User.GetUserActivity(context.Background(), domain.PlatformTelegram, "7")
	require.NoError(t, err)
	require.NotNil(t, activity.LinkedUserID)
	assert.Equal(t, "kc-42", *activity.LinkedUserID)
	assert.Equal(t, []string{"Ab3Cd5Ef9"}, tb.verifier.codes)
}

func TestLinkCommandStoreFailure(t *testing.T) {
	tb := newTestBot(t)
	require.NoError(t, tb.repos.Close())

	tb.send(message("private", "/link Ab3Cd5Ef9"))

	assert.Equal(t, LinkErrorText, tb.messenger.last(t).Text)
}

func TestCommandsMenu(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, "help", cmds[0].Command)
	assert.Equal(t, "link", cmds[3].Command)
}
