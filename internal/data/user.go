package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// userRepo implements per-user counters and account links on the users table
type userRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sql.DB) repo.UserRepo {
	return &userRepo{db: db, now: time.Now}
}

// UpsertUserActivity counts one more message for the user. The conflict
// clause does the arithmetic so concurrent writers never lose an increment.
func (r *userRepo) UpsertUserActivity(ctx context.Context, platform, userID, displayName string, deltaChars int) error {
	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (platform, user_id, display_name, message_count, total_characters, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (platform, user_id) DO UPDATE SET
			display_name = excluded.display_name,
			message_count = users.message_count + 1,
			total_characters = users.total_characters + excluded.total_characters,
			updated_at = excluded.updated_at
	`, platform, userID, displayName, deltaChars, now, now)
	if err != nil {
		return &domain.StoreError{Op: "upsert user activity", Err: err}
	}
	return nil
}

// UpsertAccountLink stores or replaces the linked account of a user
func (r *userRepo) UpsertAccountLink(ctx context.Context, link *domain.AccountLink) error {
	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (platform, user_id, display_name, linked_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, user_id) DO UPDATE SET
			linked_user_id = excluded.linked_user_id,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`, link.Platform, link.UserID, link.DisplayName, link.LinkedUserID, now, now)
	if err != nil {
		return &domain.StoreError{Op: "upsert account link", Err: err}
	}
	return nil
}

// GetUserActivity returns the user's counters, or nil when the user is unknown
func (r *userRepo) GetUserActivity(ctx context.Context, platform, userID string) (*domain.UserActivity, error) {
	var a domain.UserActivity
	var linked sql.NullString
	var updated string

	err := r.db.QueryRowContext(ctx, `
		SELECT platform, user_id, display_name, message_count, total_characters, linked_user_id, updated_at
		FROM users WHERE platform = ? AND user_id = ?
	`, platform, userID).Scan(&a.Platform, &a.UserID, &a.DisplayName, &a.MessageCount, &a.TotalCharacters, &linked, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get user activity", Err: err}
	}

	a.LinkedUserID = fromNull(linked)
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, &domain.StoreError{Op: "get user activity", Err: err}
	}
	return &a, nil
}
