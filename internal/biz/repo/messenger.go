package repo

import "context"

// Reply is an outgoing HTML message
type Reply struct {
	ChatID    string
	ThreadID  string // forum topic, optional
	ReplyTo   string // message id to quote, optional
	Text      string
	PlainText bool // send without parse mode
}

// Messenger sends messages back to the platform
type Messenger interface {
	SendReply(ctx context.Context, reply *Reply) error
	SendTyping(ctx context.Context, chatID, threadID string) error
}
