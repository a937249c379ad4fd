package repo

import (
	"context"

	"github.com/khmercoders/kcbot/internal/biz/domain"
)

// UserRepo is the per-user counter and account link interface
type UserRepo interface {
	// UpsertUserActivity creates the counter row with count 1 or increments it,
	// adding deltaChars and overwriting the display name
	UpsertUserActivity(ctx context.Context, platform, userID, displayName string, deltaChars int) error

	// UpsertAccountLink creates or overwrites the linked account for a user
	UpsertAccountLink(ctx context.Context, link *domain.AccountLink) error

	// GetUserActivity returns the counters of a user, nil when unknown
	GetUserActivity(ctx context.Context, platform, userID string) (*domain.UserActivity, error)
}
