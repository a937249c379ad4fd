package domain

import (
	"strings"
	"time"
)

// PlatformTelegram is the platform key stored with every row
const PlatformTelegram = "telegram"

const (
	// UnknownChatTitle is stored when the chat has no title (private chats)
	UnknownChatTitle = "Unknown Channel"
	// UnknownUserName is used when the sender carries no usable name
	UnknownUserName = "Unknown User"
)

// ChatType represents the Telegram chat type
type ChatType string

const (
	ChatTypePrivate    ChatType = "private"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
)

// MediaType is the kind of media attached to a message
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
	MediaAudio    MediaType = "audio"
)

// Chat identifies the chat an event belongs to
type Chat struct {
	ID    string
	Type  ChatType
	Title string
}

// Sender is the author of a message
type Sender struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	IsBot     bool
}

// DisplayName returns "First Last", the username, or UnknownUserName
func (s *Sender) DisplayName() string {
	if s == nil {
		return UnknownUserName
	}
	if s.FirstName != "" {
		if s.LastName != "" {
			return s.FirstName + " " + s.LastName
		}
		return s.FirstName
	}
	if s.Username != "" {
		return s.Username
	}
	return UnknownUserName
}

// StoredMessage is one persisted content message
type StoredMessage struct {
	ID               int64 // row id, zero until stored
	Platform         string
	MessageID        string
	ChatID           string
	ChatType         ChatType
	ChatTitle        string
	SenderID         *string
	SenderName       string
	Text             string
	MessageDate      time.Time
	MediaType        *MediaType
	ForwardedFrom    *string
	ReplyToMessageID *string
	ThreadID         *string
}

// NewStoredMessage builds the row for a content message
func NewStoredMessage(msg *ContentMessage) *StoredMessage {
	title := msg.Chat.Title
	if title == "" {
		title = UnknownChatTitle
	}

	var senderID *string
	if msg.Sender != nil && msg.Sender.ID != "" {
		id := msg.Sender.ID
		senderID = &id
	}

	return &StoredMessage{
		Platform:         PlatformTelegram,
		MessageID:        msg.MessageID,
		ChatID:           msg.Chat.ID,
		ChatType:         msg.Chat.Type,
		ChatTitle:        title,
		SenderID:         senderID,
		SenderName:       msg.Sender.DisplayName(),
		Text:             msg.Text,
		MessageDate:      msg.Date.UTC(),
		MediaType:        msg.MediaType,
		ForwardedFrom:    msg.ForwardedFrom,
		ReplyToMessageID: msg.ReplyToMessageID,
		ThreadID:         msg.ThreadID,
	}
}

// HistoryEntry is the slice of a stored message the summarizer needs
type HistoryEntry struct {
	Text       string
	SenderName string
	Date       time.Time
}

// ToHistory converts newest-first rows into history entries, preserving order
func ToHistory(messages []*StoredMessage) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, HistoryEntry{
			Text:       m.Text,
			SenderName: m.SenderName,
			Date:       m.MessageDate,
		})
	}
	return entries
}

// IsEligibleChat reports whether messages from this chat type are recorded
// and summarized. Supergroups always are; private chats only in dev mode.
func IsEligibleChat(chatType ChatType, devMode bool) bool {
	if chatType == ChatTypeSupergroup {
		return true
	}
	return devMode && chatType == ChatTypePrivate
}

// Optional returns nil for an empty string
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
