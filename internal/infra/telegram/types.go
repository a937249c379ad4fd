package telegram

import (
	"strconv"
	"time"

	"github.com/khmercoders/kcbot/internal/biz/domain"
)

// Update is one Bot API update delivered to the webhook
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
	ChannelPost   *Message `json:"channel_post,omitempty"`
}

// Message is the subset of the Bot API Message object the bot reads
type Message struct {
	MessageID       int64          `json:"message_id"`
	MessageThreadID int64          `json:"message_thread_id,omitempty"`
	IsTopicMessage  bool           `json:"is_topic_message,omitempty"`
	From            *User          `json:"from,omitempty"`
	SenderChat      *Chat          `json:"sender_chat,omitempty"`
	Chat            *Chat          `json:"chat"`
	Date            int64          `json:"date"`
	Text            string         `json:"text,omitempty"`
	Caption         string         `json:"caption,omitempty"`
	Entities        []Entity       `json:"entities,omitempty"`
	ReplyToMessage  *Message       `json:"reply_to_message,omitempty"`
	ForwardOrigin   *MessageOrigin `json:"forward_origin,omitempty"`

	Photo    []PhotoSize `json:"photo,omitempty"`
	Video    *File       `json:"video,omitempty"`
	Document *File       `json:"document,omitempty"`
	Audio    *File       `json:"audio,omitempty"`

	NewChatMembers                []User                  `json:"new_chat_members,omitempty"`
	LeftChatMember                *User                   `json:"left_chat_member,omitempty"`
	NewChatTitle                  string                  `json:"new_chat_title,omitempty"`
	NewChatPhoto                  []PhotoSize             `json:"new_chat_photo,omitempty"`
	DeleteChatPhoto               bool                    `json:"delete_chat_photo,omitempty"`
	GroupChatCreated              bool                    `json:"group_chat_created,omitempty"`
	SupergroupChatCreated         bool                    `json:"supergroup_chat_created,omitempty"`
	ChannelChatCreated            bool                    `json:"channel_chat_created,omitempty"`
	MessageAutoDeleteTimerChanged *AutoDeleteTimerChanged `json:"message_auto_delete_timer_changed,omitempty"`
	PinnedMessage                 *Message                `json:"pinned_message,omitempty"`
}

// User is a Telegram user or bot
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is a Telegram chat
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// Entity marks a special span of message text (commands, mentions, links)
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// MessageOrigin describes where a forwarded message came from
type MessageOrigin struct {
	Type           string `json:"type"` // user, hidden_user, chat, channel
	Date           int64  `json:"date"`
	SenderUser     *User  `json:"sender_user,omitempty"`
	SenderUserName string `json:"sender_user_name,omitempty"`
	SenderChat     *Chat  `json:"sender_chat,omitempty"`
	Chat           *Chat  `json:"chat,omitempty"`
}

// PhotoSize is one resolution of a photo
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// File covers the video, document and audio attachments; only presence matters
type File struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type,omitempty"`
}

// AutoDeleteTimerChanged is the service payload of an auto-delete change
type AutoDeleteTimerChanged struct {
	MessageAutoDeleteTime int `json:"message_auto_delete_time"`
}

// BotCommand is one entry of the command menu
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Content returns the message text, or the caption of a media message
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// ID returns the message id as a string
func (m *Message) ID() string {
	return strconv.FormatInt(m.MessageID, 10)
}

// ChatID returns the chat id as a string, empty without chat
func (m *Message) ChatID() string {
	if m.Chat == nil {
		return ""
	}
	return strconv.FormatInt(m.Chat.ID, 10)
}

// ThreadID returns the forum topic id, empty outside topics
func (m *Message) ThreadID() string {
	if m.MessageThreadID == 0 {
		return ""
	}
	return strconv.FormatInt(m.MessageThreadID, 10)
}

// ToEvent validates the message and converts it into a domain event.
// A message without chat or id becomes a *domain.MalformedEvent.
func (m *Message) ToEvent() domain.Event {
	switch {
	case m == nil:
		return &domain.MalformedEvent{Reason: "update carries no message"}
	case m.Chat == nil:
		return &domain.MalformedEvent{Reason: "message has no chat"}
	case m.MessageID == 0:
		return &domain.MalformedEvent{Reason: "message has no id"}
	}

	chat := m.Chat.toDomain()

	switch {
	case len(m.NewChatMembers) > 0 || m.LeftChatMember != nil:
		change := &domain.MembershipChange{Chat: chat}
		for i := range m.NewChatMembers {
			change.Joined = append(change.Joined, *m.NewChatMembers[i].toDomain())
		}
		if m.LeftChatMember != nil {
			change.Left = m.LeftChatMember.toDomain()
		}
		return change
	case m.NewChatTitle != "":
		return &domain.TitleChange{Chat: chat, Title: m.NewChatTitle}
	case len(m.NewChatPhoto) > 0:
		return &domain.PhotoChange{Chat: chat}
	case m.DeleteChatPhoto:
		return &domain.PhotoChange{Chat: chat, Deleted: true}
	case m.GroupChatCreated:
		return &domain.ChatCreated{Chat: chat, Kind: domain.ChatTypeGroup}
	case m.SupergroupChatCreated:
		return &domain.ChatCreated{Chat: chat, Kind: domain.ChatTypeSupergroup}
	case m.ChannelChatCreated:
		return &domain.ChatCreated{Chat: chat, Kind: domain.ChatTypeChannel}
	case m.MessageAutoDeleteTimerChanged != nil:
		return &domain.AutoDeleteTimerChange{Chat: chat, Seconds: m.MessageAutoDeleteTimerChanged.MessageAutoDeleteTime}
	case m.PinnedMessage != nil:
		return &domain.PinChange{Chat: chat, PinnedMessageID: strconv.FormatInt(m.PinnedMessage.MessageID, 10)}
	}

	msg := &domain.ContentMessage{
		MessageID:     strconv.FormatInt(m.MessageID, 10),
		Chat:          chat,
		Sender:        m.From.toDomain(),
		Text:          m.Content(),
		Date:          time.Unix(m.Date, 0).UTC(),
		MediaType:     m.mediaType(),
		ForwardedFrom: m.ForwardOrigin.name(),
		ThreadID:      domain.Optional(m.ThreadID()),
	}
	if m.ReplyToMessage != nil && m.ReplyToMessage.MessageID != 0 {
		msg.ReplyToMessageID = domain.Optional(strconv.FormatInt(m.ReplyToMessage.MessageID, 10))
	}
	return msg
}

// mediaType reports the last matching attachment kind, audio winning over document, video and photo
func (m *Message) mediaType() *domain.MediaType {
	var mt domain.MediaType
	if len(m.Photo) > 0 {
		mt = domain.MediaPhoto
	}
	if m.Video != nil {
		mt = domain.MediaVideo
	}
	if m.Document != nil {
		mt = domain.MediaDocument
	}
	if m.Audio != nil {
		mt = domain.MediaAudio
	}
	if mt == "" {
		return nil
	}
	return &mt
}

func (c *Chat) toDomain() domain.Chat {
	return domain.Chat{
		ID:    strconv.FormatInt(c.ID, 10),
		Type:  domain.ChatType(c.Type),
		Title: c.Title,
	}
}

func (u *User) toDomain() *domain.Sender {
	if u == nil {
		return nil
	}
	return &domain.Sender{
		ID:        strconv.FormatInt(u.ID, 10),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		IsBot:     u.IsBot,
	}
}

// name is the display name of the forward source, nil for regular messages
func (o *MessageOrigin) name() *string {
	if o == nil {
		return nil
	}
	switch o.Type {
	case "user":
		if o.SenderUser != nil {
			name := o.SenderUser.FirstName
			if o.SenderUser.LastName != "" {
				name += " " + o.SenderUser.LastName
			}
			return domain.Optional(name)
		}
	case "hidden_user":
		return domain.Optional(o.SenderUserName)
	case "chat", "channel":
		c := o.SenderChat
		if c == nil {
			c = o.Chat
		}
		if c == nil {
			return nil
		}
		switch {
		case c.Title != "":
			return domain.Optional(c.Title)
		case c.Username != "":
			return domain.Optional(c.Username)
		default:
			return domain.Optional("Chat " + strconv.FormatInt(c.ID, 10))
		}
	}
	return nil
}
