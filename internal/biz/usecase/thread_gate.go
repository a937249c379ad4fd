package usecase

import (
	"context"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// ThreadGate decides whether a thread is excluded from recording and summaries
type ThreadGate struct {
	threadRepo repo.ThreadRepo
}

// NewThreadGate creates a new thread gate
func NewThreadGate(threadRepo repo.ThreadRepo) *ThreadGate {
	return &ThreadGate{threadRepo: threadRepo}
}

// IsBlocked reports whether threadID is blacklisted. An empty id is never
// blocked. When the lookup fails the thread is reported as blocked together
// with a *domain.PolicyLookupError.
func (g *ThreadGate) IsBlocked(ctx context.Context, threadID string) (bool, error) {
	if threadID == "" {
		return false, nil
	}

	blocked, err := g.threadRepo.IsThreadBlacklisted(ctx, threadID)
	if err != nil {
		return true, &domain.PolicyLookupError{ThreadID: threadID, Err: err}
	}
	return blocked, nil
}
