// Package telegram is a minimal Bot API client: the update types received
// on the webhook and the outbound calls the bot makes.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// DefaultAPIURL is the public Bot API endpoint
const DefaultAPIURL = "https://api.telegram.org"

// APIError is a Bot API response with ok=false
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

// Client calls the Telegram Bot API
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ repo.Messenger = (*Client)(nil)

// NewClient creates a Bot API client for token. apiURL defaults to DefaultAPIURL.
func NewClient(apiURL, token string, logger *slog.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(apiURL, "/") + "/bot" + token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "telegram"),
	}
}

// SendReply sends an HTML message, quoting reply.ReplyTo inside reply.ThreadID when set
func (c *Client) SendReply(ctx context.Context, reply *repo.Reply) error {
	payload := map[string]any{
		"chat_id": reply.ChatID,
		"text":    reply.Text,
	}
	if !reply.PlainText {
		payload["parse_mode"] = "HTML"
	}
	if id, ok := parseID(reply.ReplyTo); ok {
		payload["reply_parameters"] = map[string]any{
			"message_id":                  id,
			"allow_sending_without_reply": true,
		}
	}
	if id, ok := parseID(reply.ThreadID); ok {
		payload["message_thread_id"] = id
	}

	if _, err := c.apiCall(ctx, "sendMessage", payload); err != nil {
		return err
	}
	c.logger.Debug("reply sent", "chat_id", reply.ChatID, "reply_to", reply.ReplyTo)
	return nil
}

// SendTyping shows the typing indicator in the chat
func (c *Client) SendTyping(ctx context.Context, chatID, threadID string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	}
	if id, ok := parseID(threadID); ok {
		payload["message_thread_id"] = id
	}
	_, err := c.apiCall(ctx, "sendChatAction", payload)
	return err
}

// SetMyCommands replaces the bot command menu
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	_, err := c.apiCall(ctx, "setMyCommands", map[string]any{"commands": commands})
	return err
}

// SetWebhook points update delivery at url. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	_, err := c.apiCall(ctx, "setWebhook", payload)
	return err
}

// GetMe returns the bot's own user, used to recognise addressed commands
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	data, err := c.apiCall(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("telegram: parsing getMe: %w", err)
	}
	return &user, nil
}

func (c *Client) apiCall(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	url := c.baseURL + "/" + method
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: creating request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool            `json:"ok"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !result.OK {
		code := result.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Method: method, Code: code, Description: result.Description}
	}
	return result.Result, nil
}

func parseID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
