package repo

import (
	"context"

	"github.com/khmercoders/kcbot/internal/biz/domain"
)

// ThreadRepo is the thread blacklist interface
type ThreadRepo interface {
	IsThreadBlacklisted(ctx context.Context, threadID string) (bool, error)

	// Admin operations, not used by the ingestion pipeline
	AddToBlacklist(ctx context.Context, entry *domain.ThreadBlacklistEntry) error
	RemoveFromBlacklist(ctx context.Context, threadID string) error
	ListBlacklist(ctx context.Context) ([]*domain.ThreadBlacklistEntry, error)
}
