package data

import (
	"database/sql"
	"fmt"
)

// migration represents a single schema migration
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// MigrationRunner applies pending migrations to the database
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
		},
	}
}

// Run creates the schema_migrations table and applies every migration
// not recorded there, each in its own transaction.
func (r *MigrationRunner) Run() error {
	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}
		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) isApplied(version int) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE telegram_channel_messages (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			platform            TEXT NOT NULL,
			message_id          TEXT NOT NULL,
			chat_id             TEXT NOT NULL,
			chat_type           TEXT NOT NULL,
			chat_title          TEXT NOT NULL,
			sender_id           TEXT,
			sender_name         TEXT NOT NULL,
			message_text        TEXT NOT NULL DEFAULT '',
			message_date        TEXT NOT NULL,
			media_type          TEXT,
			forwarded_from      TEXT,
			reply_to_message_id TEXT,
			message_thread_id   TEXT,
			UNIQUE (platform, chat_id, message_id)
		)`,
		`CREATE INDEX idx_messages_chat_date ON telegram_channel_messages (chat_id, message_date DESC)`,
		`CREATE INDEX idx_messages_chat_thread_date ON telegram_channel_messages (chat_id, message_thread_id, message_date DESC)`,
		`CREATE TABLE users (
			platform         TEXT NOT NULL,
			user_id          TEXT NOT NULL,
			display_name     TEXT NOT NULL,
			linked_user_id   TEXT,
			message_count    INTEGER NOT NULL DEFAULT 0,
			total_characters INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			PRIMARY KEY (platform, user_id)
		)`,
		`CREATE TABLE telegram_thread_blacklist (
			thread_id  TEXT PRIMARY KEY,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
