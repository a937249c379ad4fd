package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// threadRepo implements the thread blacklist
type threadRepo struct {
	db *sql.DB
}

// NewThreadRepo creates a new thread blacklist repository
func NewThreadRepo(db *sql.DB) repo.ThreadRepo {
	return &threadRepo{db: db}
}

// IsThreadBlacklisted checks if a thread is blacklisted
func (r *threadRepo) IsThreadBlacklisted(ctx context.Context, threadID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM telegram_thread_blacklist WHERE thread_id = ?`, threadID).Scan(&count)
	if err != nil {
		return false, &domain.StoreError{Op: "check thread blacklist", Err: err}
	}
	return count > 0, nil
}

// AddToBlacklist adds a thread, replacing the reason if it is already listed
func (r *threadRepo) AddToBlacklist(ctx context.Context, entry *domain.ThreadBlacklistEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telegram_thread_blacklist (thread_id, reason, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (thread_id) DO UPDATE SET reason = excluded.reason
	`, entry.ThreadID, entry.Reason, formatTime(createdAt))
	if err != nil {
		return &domain.StoreError{Op: "add to thread blacklist", Err: err}
	}
	return nil
}

// RemoveFromBlacklist removes a thread; removing an unknown thread is not an error
func (r *threadRepo) RemoveFromBlacklist(ctx context.Context, threadID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM telegram_thread_blacklist WHERE thread_id = ?`, threadID)
	if err != nil {
		return &domain.StoreError{Op: "remove from thread blacklist", Err: err}
	}
	return nil
}

// ListBlacklist returns all blacklisted threads, oldest first
func (r *threadRepo) ListBlacklist(ctx context.Context) ([]*domain.ThreadBlacklistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT thread_id, reason, created_at FROM telegram_thread_blacklist ORDER BY created_at, thread_id
	`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list thread blacklist", Err: err}
	}
	defer rows.Close()

	var entries []*domain.ThreadBlacklistEntry
	for rows.Next() {
		var e domain.ThreadBlacklistEntry
		var createdAt string
		if err := rows.Scan(&e.ThreadID, &e.Reason, &createdAt); err != nil {
			return nil, &domain.StoreError{Op: "scan thread blacklist", Err: err}
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, &domain.StoreError{Op: "scan thread blacklist", Err: err}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list thread blacklist", Err: err}
	}
	return entries, nil
}
