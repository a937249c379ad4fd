package data

import (
	"context"
	"database/sql"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// messageRepo implements the message store on SQLite
type messageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new message repository
func NewMessageRepo(db *sql.DB) repo.MessageRepo {
	return &messageRepo{db: db}
}

// AppendMessage inserts msg unless (platform, chat_id, message_id) already exists
func (r *messageRepo) AppendMessage(ctx context.Context, msg *domain.StoredMessage) (bool, error) {
	var mediaType *string
	if msg.MediaType != nil {
		s := string(*msg.MediaType)
		mediaType = &s
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO telegram_channel_messages (
			platform, message_id, chat_id, chat_type, chat_title, sender_id, sender_name,
			message_text, message_date, media_type, forwarded_from, reply_to_message_id, message_thread_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, chat_id, message_id) DO NOTHING
	`,
		msg.Platform, msg.MessageID, msg.ChatID, string(msg.ChatType), msg.ChatTitle,
		nullString(msg.SenderID), msg.SenderName, msg.Text, formatTime(msg.MessageDate),
		nullString(mediaType), nullString(msg.ForwardedFrom), nullString(msg.ReplyToMessageID),
		nullString(msg.ThreadID),
	)
	if err != nil {
		return false, &domain.StoreError{Op: "append message", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.StoreError{Op: "append message", Err: err}
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}
	return true, nil
}

// FetchRecent returns up to limit non-empty messages of chatID, newest first
func (r *messageRepo) FetchRecent(ctx context.Context, chatID string, limit int, threadID string) ([]*domain.StoredMessage, error) {
	if limit <= 0 {
		limit = repo.DefaultHistoryLimit
	}

	query := `
		SELECT id, platform, message_id, chat_id, chat_type, chat_title, sender_id, sender_name,
			message_text, message_date, media_type, forwarded_from, reply_to_message_id, message_thread_id
		FROM telegram_channel_messages
		WHERE chat_id = ? AND message_text != ''`
	args := []any{chatID}
	if threadID != "" {
		query += ` AND message_thread_id = ?`
		args = append(args, threadID)
	}
	query += ` ORDER BY message_date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "fetch recent messages", Err: err}
	}
	defer rows.Close()

	var messages []*domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		var chatType, date string
		var senderID, media, forwarded, replyTo, thread sql.NullString
		if err := rows.Scan(
			&m.ID, &m.Platform, &m.MessageID, &m.ChatID, &chatType, &m.ChatTitle, &senderID, &m.SenderName,
			&m.Text, &date, &media, &forwarded, &replyTo, &thread,
		); err != nil {
			return nil, &domain.StoreError{Op: "scan message", Err: err}
		}

		m.ChatType = domain.ChatType(chatType)
		if m.MessageDate, err = parseTime(date); err != nil {
			return nil, &domain.StoreError{Op: "scan message", Err: err}
		}
		m.SenderID = fromNull(senderID)
		if media.Valid {
			mt := domain.MediaType(media.String)
			m.MediaType = &mt
		}
		m.ForwardedFrom = fromNull(forwarded)
		m.ReplyToMessageID = fromNull(replyTo)
		m.ThreadID = fromNull(thread)

		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "fetch recent messages", Err: err}
	}
	return messages, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
