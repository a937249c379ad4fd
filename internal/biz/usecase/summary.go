package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
	"github.com/khmercoders/kcbot/internal/telegramhtml"
)

// HistoryDateLayout formats message times in transcripts and fallback summaries
const HistoryDateLayout = "Jan 2, 03:04 PM"

// NoMessagesText is the reply for an empty history window
const NoMessagesText = "No messages found in this chat to summarize."

// DefaultSummaryTimeout bounds one generation call
const DefaultSummaryTimeout = 30 * time.Second

// SummaryPrompts holds the instruction templates.
// UserGeneral and UserWithQuery use {{count}}, {{history}} and {{query}}.
type SummaryPrompts struct {
	System        string
	UserGeneral   string
	UserWithQuery string
}

// SummaryConfig contains summary configuration
type SummaryConfig struct {
	Limit    int
	Timeout  time.Duration
	Location *time.Location
	Prompts  SummaryPrompts
}

// SummaryResult is a reply-ready summary
type SummaryResult struct {
	HTML         string
	MessageCount int
	// Fallback is set when the statistics summary replaced the AI one
	Fallback bool
}

// SummaryUsecase builds AI summaries of recent chat history
type SummaryUsecase struct {
	messageRepo repo.MessageRepo
	generator   repo.TextGenerator
	gate        *ThreadGate
	config      SummaryConfig
	devMode     bool
	logger      *slog.Logger
}

// NewSummaryUsecase creates a new summary usecase
func NewSummaryUsecase(
	messageRepo repo.MessageRepo,
	generator repo.TextGenerator,
	gate *ThreadGate,
	config SummaryConfig,
	devMode bool,
	logger *slog.Logger,
) *SummaryUsecase {
	if config.Limit <= 0 {
		config.Limit = repo.DefaultHistoryLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSummaryTimeout
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryUsecase{
		messageRepo: messageRepo,
		generator:   generator,
		gate:        gate,
		config:      config,
		devMode:     devMode,
		logger:      logger.With("component", "summary"),
	}
}

// Authorize checks that summaries are allowed for the chat type and thread.
// It returns domain.ErrIneligibleChat, domain.ErrThreadBlocked or a
// *domain.PolicyLookupError.
func (uc *SummaryUsecase) Authorize(ctx context.Context, chatType domain.ChatType, threadID string) error {
	if !domain.IsEligibleChat(chatType, uc.devMode) {
		return domain.ErrIneligibleChat
	}
	return uc.CheckThread(ctx, threadID)
}

// CheckThread returns domain.ErrThreadBlocked for blacklisted threads
func (uc *SummaryUsecase) CheckThread(ctx context.Context, threadID string) error {
	blocked, err := uc.gate.IsBlocked(ctx, threadID)
	if err != nil {
		return err
	}
	if blocked {
		return domain.ErrThreadBlocked
	}
	return nil
}

// FetchHistory returns the summary window of a chat, newest first
func (uc *SummaryUsecase) FetchHistory(ctx context.Context, chatID, threadID string) ([]*domain.StoredMessage, error) {
	return uc.messageRepo.FetchRecent(ctx, chatID, uc.config.Limit, threadID)
}

// Summarize fetches the window and generates the reply. Only a failed
// fetch is returned as an error; generation problems end in the fallback.
func (uc *SummaryUsecase) Summarize(ctx context.Context, chatID, threadID, query string) (*SummaryResult, error) {
	messages, err := uc.FetchHistory(ctx, chatID, threadID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return &SummaryResult{HTML: NoMessagesText}, nil
	}

	html, genErr := uc.Generate(ctx, query, messages)
	if genErr != nil {
		uc.logger.Warn("ai summary unavailable, using fallback", "chat_id", chatID, "error", genErr)
	}
	return &SummaryResult{
		HTML:         html,
		MessageCount: len(messages),
		Fallback:     genErr != nil,
	}, nil
}

// Generate asks the text generator for a summary of messages (newest first)
// and returns Telegram HTML. The text is always usable: on any generation
// failure it is the statistics summary and the error is a *domain.GenerationError.
func (uc *SummaryUsecase) Generate(ctx context.Context, query string, messages []*domain.StoredMessage) (string, error) {
	instructions := uc.BuildInstructions(query, messages)

	text, err := uc.completeWithTimeout(ctx, instructions)
	var genErr error
	if err != nil {
		genErr = &domain.GenerationError{Err: err}
		text = FallbackSummary(messages, query, uc.config.Location)
	}

	html, sanErr := telegramhtml.Render(text)
	if sanErr != nil {
		uc.logger.Warn("summary markup stripped", "error", sanErr)
	}
	return html, genErr
}

type completionResult struct {
	text string
	err  error
}

// completeWithTimeout returns when the generator answers or the timeout
// expires, whichever comes first, even if the generator ignores ctx.
func (uc *SummaryUsecase) completeWithTimeout(ctx context.Context, instructions []repo.Instruction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.config.Timeout)
	defer cancel()

	done := make(chan completionResult, 1)
	go func() {
		text, err := uc.complete(ctx, instructions)
		done <- completionResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for completion: %w", ctx.Err())
	}
}

func (uc *SummaryUsecase) complete(ctx context.Context, instructions []repo.Instruction) (string, error) {
	completion, err := uc.generator.Complete(ctx, instructions)
	if err != nil {
		return "", err
	}
	if completion == nil {
		return "", domain.ErrEmptyCompletion
	}
	if completion.Stream != nil {
		_ = completion.Stream.Close()
		return "", domain.ErrStreamedCompletion
	}
	if strings.TrimSpace(completion.Text) == "" {
		return "", domain.ErrEmptyCompletion
	}
	return completion.Text, nil
}

// BuildInstructions assembles the system and user instructions for messages (newest first)
func (uc *SummaryUsecase) BuildInstructions(query string, messages []*domain.StoredMessage) []repo.Instruction {
	history := FormatHistory(messages, uc.config.Location)
	count := strconv.Itoa(len(messages))

	template := uc.config.Prompts.UserGeneral
	query = strings.TrimSpace(query)
	if query != "" {
		template = uc.config.Prompts.UserWithQuery
	}

	// Single pass: placeholders inside messages or the query stay literal
	user := strings.NewReplacer(
		"{{count}}", count,
		"{{history}}", history,
		"{{query}}", query,
	).Replace(template)

	return []repo.Instruction{
		{Role: repo.RoleSystem, Content: uc.config.Prompts.System},
		{Role: repo.RoleUser, Content: user},
	}
}

// FormatHistory renders newest-first messages as an oldest-first transcript,
// one "[Jan 2, 03:04 PM] Sender: text" line per message.
func FormatHistory(messages []*domain.StoredMessage, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var sb strings.Builder
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		fmt.Fprintf(&sb, "[%s] %s: %s", m.MessageDate.In(loc).Format(HistoryDateLayout), m.SenderName, m.Text)
		if i > 0 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FallbackSummary describes the window without AI: message count,
// participants in order of first appearance, and the time range.
func FallbackSummary(messages []*domain.StoredMessage, query string, loc *time.Location) string {
	if len(messages) == 0 {
		return "<b>📭 No Messages:</b> <i>No messages found to summarize.</i>"
	}
	if loc == nil {
		loc = time.UTC
	}

	var participants []string
	seen := make(map[string]bool)
	earliest, latest := messages[0].MessageDate, messages[0].MessageDate
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !seen[m.SenderName] {
			seen[m.SenderName] = true
			participants = append(participants, m.SenderName)
		}
		if m.MessageDate.Before(earliest) {
			earliest = m.MessageDate
		}
		if m.MessageDate.After(latest) {
			latest = m.MessageDate
		}
	}

	var sb strings.Builder
	sb.WriteString("<b>💬 Chat Activity Summary</b>\n\n")
	sb.WriteString("<b>📊 Stats:</b>\n")
	fmt.Fprintf(&sb, "• <i>Messages:</i> %d\n", len(messages))
	fmt.Fprintf(&sb, "• <i>Participants:</i> %d (%s)\n", len(participants), strings.Join(participants, ", "))
	fmt.Fprintf(&sb, "• <i>Time Range:</i> %s - %s\n\n",
		earliest.In(loc).Format(HistoryDateLayout), latest.In(loc).Format(HistoryDateLayout))

	if query = strings.TrimSpace(query); query != "" {
		fmt.Fprintf(&sb, "<b>🔍 Query:</b> <i>\"%s\"</i>\n\n", query)
		sb.WriteString("<b>📝 Note:</b> <i>AI summarization is temporarily unavailable. Please try again later for detailed analysis.</i>")
	} else {
		sb.WriteString("<b>📝 Note:</b> <i>AI summarization is temporarily unavailable. Showing basic chat statistics instead.</i>")
	}
	return sb.String()
}
