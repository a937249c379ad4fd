package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

type fakeMessageRepo struct {
	mu        sync.Mutex
	rows      []*domain.StoredMessage
	appendErr error
	fetchErr  error

	lastLimit  int
	lastThread string
}

func (f *fakeMessageRepo) AppendMessage(ctx context.Context, msg *domain.StoredMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return false, f.appendErr
	}
	for _, r := range f.rows {
		if r.Platform == msg.Platform && r.ChatID == msg.ChatID && r.MessageID == msg.MessageID {
			return false, nil
		}
	}
	cp := *msg
	cp.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, &cp)
	return true, nil
}

func (f *fakeMessageRepo) FetchRecent(ctx context.Context, chatID string, limit int, threadID string) ([]*domain.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit, f.lastThread = limit, threadID
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	var out []*domain.StoredMessage
	for _, r := range f.rows {
		if r.ChatID != chatID || r.Text == "" {
			continue
		}
		if threadID != "" && (r.ThreadID == nil || *r.ThreadID != threadID) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MessageDate.Equal(out[j].MessageDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].MessageDate.After(out[j].MessageDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUserRepo struct {
	mu        sync.Mutex
	activity  map[string]*domain.UserActivity
	links     map[string]*domain.AccountLink
	upsertErr error
	linkErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		activity: make(map[string]*domain.UserActivity),
		links:    make(map[string]*domain.AccountLink),
	}
}

func (f *fakeUserRepo) UpsertUserActivity(ctx context.Context, platform, userID, displayName string, deltaChars int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	a, ok := f.activity[userID]
	if !ok {
		a = &domain.UserActivity{Platform: platform, UserID: userID}
		f.activity[userID] = a
	}
	a.DisplayName = displayName
	a.MessageCount++
	a.TotalCharacters += int64(deltaChars)
	return nil
}

func (f *fakeUserRepo) UpsertAccountLink(ctx context.Context, link *domain.AccountLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	cp := *link
	f.links[link.UserID] = &cp
	return nil
}

func (f *fakeUserRepo) GetUserActivity(ctx context.Context, platform, userID string) (*domain.UserActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activity[userID], nil
}

type fakeThreadRepo struct {
	blocked map[string]bool
	err     error
	lookups int
}

func (f *fakeThreadRepo) IsThreadBlacklisted(ctx context.Context, threadID string) (bool, error) {
	f.lookups++
	if f.err != nil {
		return false, f.err
	}
	return f.blocked[threadID], nil
}

func (f *fakeThreadRepo) AddToBlacklist(ctx context.Context, entry *domain.ThreadBlacklistEntry) error {
	if f.blocked == nil {
		f.blocked = make(map[string]bool)
	}
	f.blocked[entry.ThreadID] = true
	return nil
}

func (f *fakeThreadRepo) RemoveFromBlacklist(ctx context.Context, threadID string) error {
	delete(f.blocked, threadID)
	return nil
}

func (f *fakeThreadRepo) ListBlacklist(ctx context.Context) ([]*domain.ThreadBlacklistEntry, error) {
	var out []*domain.ThreadBlacklistEntry
	for id := range f.blocked {
		out = append(out, &domain.ThreadBlacklistEntry{ThreadID: id})
	}
	return out, nil
}

type fakeGenerator struct {
	completion *repo.Completion
	err        error
	// block waits for ctx to end before answering
	block bool
	// ignoreCtx with block never answers before release is closed
	ignoreCtx bool
	release   chan struct{}

	mu       sync.Mutex
	received []repo.Instruction
	calls    int
}

func (f *fakeGenerator) Complete(ctx context.Context, instructions []repo.Instruction) (*repo.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.received = instructions
	f.mu.Unlock()

	if f.block {
		if f.ignoreCtx {
			<-f.release
		} else {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	return f.completion, f.err
}

type fakeStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeVerifier struct {
	linkedID string
	err      error
	codes    []string
}

func (f *fakeVerifier) Verify(ctx context.Context, code string) (string, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return "", f.err
	}
	return f.linkedID, nil
}
