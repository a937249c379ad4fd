package data

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// GeneratorConfig configures the OpenAI-compatible completion client
type GeneratorConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Stream      bool
	MaxTokens   int
	Temperature float32
}

// openAIGenerator implements repo.TextGenerator with go-openai
type openAIGenerator struct {
	client *openai.Client
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewTextGenerator creates the completion client. BaseURL may point at any
// OpenAI-compatible API such as Cloudflare Workers AI.
func NewTextGenerator(cfg GeneratorConfig, logger *slog.Logger) repo.TextGenerator {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &openAIGenerator{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		logger: logger.With("component", "llm"),
	}
}

// Complete sends the instructions. With Stream enabled the server-sent
// stream is handed back unread in Completion.Stream.
func (g *openAIGenerator) Complete(ctx context.Context, instructions []repo.Instruction) (*repo.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    toChatMessages(instructions),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	if g.cfg.Stream {
		req.Stream = true
		stream, err := g.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("chat completion stream: %w", err)
		}
		return &repo.Completion{Stream: stream}, nil
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	g.logger.Debug("completion received",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return &repo.Completion{Text: resp.Choices[0].Message.Content}, nil
}

func toChatMessages(instructions []repo.Instruction) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(instructions))
	for _, in := range instructions {
		role := openai.ChatMessageRoleUser
		if in.Role == repo.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: in.Content})
	}
	return messages
}
