package repo

import (
	"context"

	"github.com/khmercoders/kcbot/internal/biz/domain"
)

// DefaultHistoryLimit is the summary window size
const DefaultHistoryLimit = 200

// MessageRepo is the message store interface
// Responsible for persisting qualifying messages (SQLite)
type MessageRepo interface {
	// AppendMessage stores a message once per (platform, chat, message id).
	// inserted is false when the row already existed.
	AppendMessage(ctx context.Context, msg *domain.StoredMessage) (inserted bool, err error)

	// FetchRecent returns up to limit non-empty messages of a chat, newest first.
	// threadID narrows the result to one thread when non-empty.
	FetchRecent(ctx context.Context, chatID string, limit int, threadID string) ([]*domain.StoredMessage, error)
}
