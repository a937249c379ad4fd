package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/khmercoders/kcbot/internal/biz"
	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
	"github.com/khmercoders/kcbot/internal/biz/usecase"
	"github.com/khmercoders/kcbot/internal/infra/telegram"
	"github.com/khmercoders/kcbot/internal/pkg/logger"
)

// Reply texts
const (
	StartText = "Try /help"
	PingText  = "<b>pong</b>"
	HelpText  = `<b>🤖 Bot Commands</b>

Here's a list of things I can do:

<code>/help</code> - 🆘 Show this help message
<code>/ping</code> - 🏓 Check if I'm alive
<code>/summary</code> - 📝 Summarize recent chat messages
<code>/link &lt;code&gt;</code> - 🔗 Link your Telegram account <i>(private messages only)</i>

Type a command to get started!`

	SummaryUnavailableText = "ℹ️ The <b>/summary</b> command is only available in supergroups."
	ThreadBlockedText      = "🚫 Summaries are disabled for this topic."
	SummaryErrorText       = "❌ An error occurred while summarizing this chat. Please try again later."

	LinkPrivateOnlyText = "🔒 For <b>security</b> reasons, the <b>/link</b> command can only be used in private messages with the bot. Please send me a direct message to link your account."
	LinkUsageText       = "<b>🔐 Usage:</b>\n<pre>/link code</pre>\nThe code must be exactly 9 characters long and contain both letters and numbers."
	LinkSuccessText     = "🎉 <b>Account linked successfully!</b>\nThank you for using KhmerCoders!"
	LinkRejectedText    = "❌ Failed to link account. Please try again."
	LinkErrorText       = "❌ An error occurred while linking your account. Please try again later."
)

// Commands is the command menu registered with setMyCommands
func Commands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "help", Description: "Show help text"},
		{Command: "ping", Description: "🏓 Check if I'm alive"},
		{Command: "summary", Description: "📝 Summarize recent chat messages"},
		{Command: "link", Description: "🔗 Link your Telegram account (private messages only)"},
	}
}

// BotService dispatches webhook updates: commands get a reply, everything
// else goes through the recording pipeline.
type BotService struct {
	record      *usecase.RecordUsecase
	summary     *usecase.SummaryUsecase
	link        *usecase.LinkUsecase
	messenger   repo.Messenger
	botUsername string
	logger      *slog.Logger
}

// NewBotService creates the dispatcher. botUsername (without @) is used to
// ignore commands addressed to other bots; empty accepts any addressee.
func NewBotService(uc *biz.Usecases, messenger repo.Messenger, botUsername string, logger *slog.Logger) *BotService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BotService{
		record:      uc.Record,
		summary:     uc.Summary,
		link:        uc.Link,
		messenger:   messenger,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		logger:      logger.With("component", "bot"),
	}
}

// Command is a parsed "/name@bot args" message
type Command struct {
	Name    string
	Mention string
	Args    string
}

// ParseCommand splits a command message. ok is false for plain text.
func ParseCommand(text string) (cmd Command, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	head, args, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		args = head[i+1:] + " " + args
		head = head[:i]
	}
	name, mention, _ := strings.Cut(head[1:], "@")
	if name == "" {
		return Command{}, false
	}
	return Command{
		Name:    strings.ToLower(name),
		Mention: mention,
		Args:    strings.TrimSpace(args),
	}, true
}

// HandleUpdate processes one update. Failures are logged, never returned:
// the webhook acknowledges every decoded update.
func (s *BotService) HandleUpdate(ctx context.Context, update *telegram.Update) {
	log := logger.FromContext(ctx, s.logger)

	msg := update.Message
	if msg == nil {
		log.Debug("ignore update without message", "update_id", update.UpdateID)
		return
	}

	if cmd, ok := ParseCommand(msg.Text); ok && msg.Chat != nil && s.addressedToUs(cmd) {
		if s.handleCommand(ctx, msg, cmd) {
			return
		}
	}

	ev := msg.ToEvent()
	if bad, ok := ev.(*domain.MalformedEvent); ok {
		log.Warn("malformed update", "update_id", update.UpdateID, "reason", bad.Reason)
		return
	}

	outcome, err := s.record.Record(ctx, ev)
	if err != nil {
		chat, _ := domain.ChatOf(ev)
		log.Error("record message", "chat_id", chat.ID, "op", "record", "outcome", outcome, "error", err)
		return
	}
	log.Debug("update handled", "update_id", update.UpdateID, "outcome", outcome)
}

func (s *BotService) addressedToUs(cmd Command) bool {
	return cmd.Mention == "" || s.botUsername == "" || strings.EqualFold(cmd.Mention, s.botUsername)
}

// handleCommand reports false for commands the bot does not know; those are
// recorded like any other message.
func (s *BotService) handleCommand(ctx context.Context, msg *telegram.Message, cmd Command) bool {
	switch cmd.Name {
	case "start":
		s.reply(ctx, msg, StartText, true)
	case "help":
		s.reply(ctx, msg, HelpText, false)
	case "ping":
		s.reply(ctx, msg, PingText, false)
	case "summary":
		s.handleSummary(ctx, msg, cmd.Args)
	case "link":
		s.handleLink(ctx, msg)
	default:
		return false
	}
	return true
}

func (s *BotService) handleSummary(ctx context.Context, msg *telegram.Message, query string) {
	log := logger.FromContext(ctx, s.logger)
	chatID := msg.ChatID()
	threadID := msg.ThreadID()

	err := s.summary.Authorize(ctx, domain.ChatType(msg.Chat.Type), threadID)
	switch {
	case errors.Is(err, domain.ErrIneligibleChat):
		log.Warn("ignored /summary in ineligible chat", "chat_id", chatID, "chat_type", msg.Chat.Type)
		s.reply(ctx, msg, SummaryUnavailableText, false)
		return
	case errors.Is(err, domain.ErrThreadBlocked):
		s.reply(ctx, msg, ThreadBlockedText, false)
		return
	case err != nil:
		log.Error("check thread policy", "chat_id", chatID, "op", "summary", "error", err)
		s.reply(ctx, msg, SummaryErrorText, false)
		return
	}

	s.typing(ctx, msg)

	result, err := s.summary.Summarize(ctx, chatID, threadID, query)
	if err != nil {
		log.Error("summarize chat", "chat_id", chatID, "op", "summary", "error", err)
		s.reply(ctx, msg, SummaryErrorText, false)
		return
	}
	log.Info("summary sent", "chat_id", chatID, "messages", result.MessageCount, "fallback", result.Fallback)
	s.reply(ctx, msg, result.HTML, false)
}

func (s *BotService) handleLink(ctx context.Context, msg *telegram.Message) {
	log := logger.FromContext(ctx, s.logger)
	chatID := msg.ChatID()

	s.typing(ctx, msg)

	if msg.Chat.Type != string(domain.ChatTypePrivate) {
		log.Warn("blocked /link outside private chat", "chat_id", chatID, "chat_type", msg.Chat.Type)
		s.reply(ctx, msg, LinkPrivateOnlyText, false)
		return
	}

	code, ok := usecase.ParseLinkCode(msg.Text)
	if !ok {
		s.reply(ctx, msg, LinkUsageText, false)
		return
	}

	var sender *domain.Sender
	if ev, ok := msg.ToEvent().(*domain.ContentMessage); ok {
		sender = ev.Sender
	}

	link, err := s.link.Link(ctx, sender, code)
	switch {
	case err == nil:
		log.Info("account linked", "chat_id", chatID, "user_id", link.UserID, "linked_user_id", link.LinkedUserID)
		s.reply(ctx, msg, LinkSuccessText, false)
	case errors.Is(err, domain.ErrInvalidLinkCode):
		s.reply(ctx, msg, LinkUsageText, false)
	case errors.Is(err, domain.ErrLinkRejected):
		log.Warn("link code rejected", "chat_id", chatID)
		s.reply(ctx, msg, LinkRejectedText, true)
	default:
		log.Error("link account", "chat_id", chatID, "op", "link", "error", err)
		s.reply(ctx, msg, LinkErrorText, true)
	}
}

func (s *BotService) reply(ctx context.Context, msg *telegram.Message, text string, plain bool) {
	r := &repo.Reply{
		ChatID:    msg.ChatID(),
		ThreadID:  msg.ThreadID(),
		ReplyTo:   msg.ID(),
		Text:      text,
		PlainText: plain,
	}
	if err := s.messenger.SendReply(ctx, r); err != nil {
		logger.FromContext(ctx, s.logger).Error("send reply", "chat_id", r.ChatID, "op", "reply", "error", err)
	}
}

func (s *BotService) typing(ctx context.Context, msg *telegram.Message) {
	if err := s.messenger.SendTyping(ctx, msg.ChatID(), msg.ThreadID()); err != nil {
		logger.FromContext(ctx, s.logger).Debug("send typing", "chat_id", msg.ChatID(), "error", err)
	}
}
