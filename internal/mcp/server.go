// Package mcp exposes the recorded chat history as read-only MCP tools
// over stdio, so assistants can query and summarize chats directly.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
	"github.com/khmercoders/kcbot/internal/biz/usecase"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = repo.DefaultHistoryLimit
)

// Server provides kcbot tools over MCP
type Server struct {
	server   *mcp.Server
	messages repo.MessageRepo
	users    repo.UserRepo
	summary  *usecase.SummaryUsecase
	logger   *slog.Logger
}

// NewServer creates the MCP server and registers its tools
func NewServer(version string, messages repo.MessageRepo, users repo.UserRepo, summary *usecase.SummaryUsecase, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "kcbot",
			Version: version,
		}, nil),
		messages: messages,
		users:    users,
		summary:  summary,
		logger:   logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_messages",
		Description: "List the most recent recorded messages of a Telegram chat, newest first. Blacklisted threads are not available.",
	}, s.handleRecentMessages)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_chat",
		Description: "Summarize the last 200 recorded messages of a Telegram chat, optionally focused on a question. Returns Telegram HTML.",
	}, s.handleSummarizeChat)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "user_activity",
		Description: "Get the message counters and linked KhmerCoders account of a Telegram user.",
	}, s.handleUserActivity)
}

// Run serves the tools on stdin/stdout until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// RecentMessagesInput selects the chat window
type RecentMessagesInput struct {
	ChatID   string `json:"chat_id" jsonschema:"Telegram chat id, e.g. -1001234567890"`
	ThreadID string `json:"thread_id,omitempty" jsonschema:"Forum topic id to restrict the result to"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of messages, default 50, at most 200"`
}

// MessageItem is one recorded message
type MessageItem struct {
	MessageID     string `json:"message_id"`
	Sender        string `json:"sender"`
	Text          string `json:"text"`
	Date          string `json:"date"`
	ThreadID      string `json:"thread_id,omitempty"`
	MediaType     string `json:"media_type,omitempty"`
	ForwardedFrom string `json:"forwarded_from,omitempty"`
}

// RecentMessagesOutput contains the messages
type RecentMessagesOutput struct {
	Messages []MessageItem `json:"messages"`
	Error    string        `json:"error,omitempty"`
}

func (s *Server) handleRecentMessages(ctx context.Context, req *mcp.CallToolRequest, input RecentMessagesInput) (*mcp.CallToolResult, RecentMessagesOutput, error) {
	out := RecentMessagesOutput{Messages: []MessageItem{}}
	if input.ChatID == "" {
		out.Error = "chat_id is required"
		return nil, out, nil
	}
	if msg := s.threadError(ctx, input.ThreadID); msg != "" {
		out.Error = msg
		return nil, out, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	messages, err := s.messages.FetchRecent(ctx, input.ChatID, limit, input.ThreadID)
	if err != nil {
		s.logger.Error("fetch recent messages", "chat_id", input.ChatID, "op", "recent_messages", "error", err)
		out.Error = err.Error()
		return nil, out, nil
	}

	for _, m := range messages {
		out.Messages = append(out.Messages, toMessageItem(m))
	}
	return nil, out, nil
}

// SummarizeChatInput selects the chat and an optional focus question
type SummarizeChatInput struct {
	ChatID   string `json:"chat_id" jsonschema:"Telegram chat id"`
	ThreadID string `json:"thread_id,omitempty" jsonschema:"Forum topic id to summarize instead of the whole chat"`
	Query    string `json:"query,omitempty" jsonschema:"Optional question the summary should focus on"`
}

// SummarizeChatOutput is the generated summary
type SummarizeChatOutput struct {
	HTML         string `json:"html"`
	MessageCount int    `json:"message_count"`
	Fallback     bool   `json:"fallback"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) handleSummarizeChat(ctx context.Context, req *mcp.CallToolRequest, input SummarizeChatInput) (*mcp.CallToolResult, SummarizeChatOutput, error) {
	if input.ChatID == "" {
		return nil, SummarizeChatOutput{Error: "chat_id is required"}, nil
	}
	if msg := s.threadError(ctx, input.ThreadID); msg != "" {
		return nil, SummarizeChatOutput{Error: msg}, nil
	}

	result, err := s.summary.Summarize(ctx, input.ChatID, input.ThreadID, input.Query)
	if err != nil {
		s.logger.Error("summarize chat", "chat_id", input.ChatID, "op", "summarize_chat", "error", err)
		return nil, SummarizeChatOutput{Error: err.Error()}, nil
	}
	return nil, SummarizeChatOutput{
		HTML:         result.HTML,
		MessageCount: result.MessageCount,
		Fallback:     result.Fallback,
	}, nil
}

// UserActivityInput identifies a Telegram user
type UserActivityInput struct {
	UserID string `json:"user_id" jsonschema:"Telegram user id"`
}

// UserActivityOutput holds the counters of a user
type UserActivityOutput struct {
	Found           bool   `json:"found"`
	DisplayName     string `json:"display_name,omitempty"`
	MessageCount    int64  `json:"message_count"`
	TotalCharacters int64  `json:"total_characters"`
	LinkedUserID    string `json:"linked_user_id,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (s *Server) handleUserActivity(ctx context.Context, req *mcp.CallToolRequest, input UserActivityInput) (*mcp.CallToolResult, UserActivityOutput, error) {
	if input.UserID == "" {
		return nil, UserActivityOutput{Error: "user_id is required"}, nil
	}

	a, err := s.users.GetUserActivity(ctx, domain.PlatformTelegram, input.UserID)
	if err != nil {
		s.logger.Error("get user activity", "user_id", input.UserID, "op", "user_activity", "error", err)
		return nil, UserActivityOutput{Error: err.Error()}, nil
	}
	if a == nil {
		return nil, UserActivityOutput{}, nil
	}

	out := UserActivityOutput{
		Found:           true,
		DisplayName:     a.DisplayName,
		MessageCount:    a.MessageCount,
		TotalCharacters: a.TotalCharacters,
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.LinkedUserID != nil {
		out.LinkedUserID = *a.LinkedUserID
	}
	return nil, out, nil
}

// threadError returns a message when the thread may not be read
func (s *Server) threadError(ctx context.Context, threadID string) string {
	err := s.summary.CheckThread(ctx, threadID)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrThreadBlocked):
		return "thread is blacklisted"
	default:
		s.logger.Error("check thread policy", "thread_id", threadID, "error", err)
		return err.Error()
	}
}

func toMessageItem(m *domain.StoredMessage) MessageItem {
	item := MessageItem{
		MessageID: m.MessageID,
		Sender:    m.SenderName,
		Text:      m.Text,
		Date:      m.MessageDate.UTC().Format(time.RFC3339),
	}
	if m.ThreadID != nil {
		item.ThreadID = *m.ThreadID
	}
	if m.MediaType != nil {
		item.MediaType = string(*m.MediaType)
	}
	if m.ForwardedFrom != nil {
		item.ForwardedFrom = *m.ForwardedFrom
	}
	return item
}
