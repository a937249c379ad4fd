package domain

import (
	"strings"
	"time"
)

// Event is an inbound chat event decoded at the platform boundary.
// The set of implementations is closed: ContentMessage, the service
// variants below and MalformedEvent.
type Event interface {
	isEvent()
}

// ContentMessage is a regular message that may be recorded
type ContentMessage struct {
	MessageID        string
	Chat             Chat
	Sender           *Sender
	Text             string
	Date             time.Time
	MediaType        *MediaType
	ForwardedFrom    *string
	ReplyToMessageID *string
	ThreadID         *string
}

// MembershipChange covers members joining or leaving
type MembershipChange struct {
	Chat   Chat
	Joined []Sender
	Left   *Sender
}

// TitleChange is emitted when the chat title changes
type TitleChange struct {
	Chat  Chat
	Title string
}

// PhotoChange is emitted when the chat photo is set or deleted
type PhotoChange struct {
	Chat    Chat
	Deleted bool
}

// PinChange is emitted when a message is pinned
type PinChange struct {
	Chat            Chat
	PinnedMessageID string
}

// AutoDeleteTimerChange is emitted when the auto-delete timer changes
type AutoDeleteTimerChange struct {
	Chat    Chat
	Seconds int
}

// ChatCreated covers group, supergroup and channel creation markers
type ChatCreated struct {
	Chat Chat
	Kind ChatType
}

// MalformedEvent is an event that failed boundary validation
type MalformedEvent struct {
	Reason string
}

func (*ContentMessage) isEvent()        {}
func (*MembershipChange) isEvent()      {}
func (*TitleChange) isEvent()           {}
func (*PhotoChange) isEvent()           {}
func (*PinChange) isEvent()             {}
func (*AutoDeleteTimerChange) isEvent() {}
func (*ChatCreated) isEvent()           {}
func (*MalformedEvent) isEvent()        {}

// Kind is the classification result
type Kind int

const (
	// KindService events are never recorded
	KindService Kind = iota
	// KindContent events carry text and may be recorded
	KindContent
)

func (k Kind) String() string {
	if k == KindContent {
		return "content"
	}
	return "service"
}

// Classify maps an event to KindService or KindContent. Unknown, malformed
// and empty events are KindService so that nothing questionable is stored.
func Classify(ev Event) Kind {
	switch e := ev.(type) {
	case *ContentMessage:
		if e == nil || strings.TrimSpace(e.Text) == "" {
			return KindService
		}
		return KindContent
	default:
		return KindService
	}
}

// ChatOf returns the chat an event belongs to, if any
func ChatOf(ev Event) (Chat, bool) {
	switch e := ev.(type) {
	case *ContentMessage:
		if e != nil {
			return e.Chat, true
		}
	case *MembershipChange:
		if e != nil {
			return e.Chat, true
		}
	case *TitleChange:
		if e != nil {
			return e.Chat, true
		}
	case *PhotoChange:
		if e != nil {
			return e.Chat, true
		}
	case *PinChange:
		if e != nil {
			return e.Chat, true
		}
	case *AutoDeleteTimerChange:
		if e != nil {
			return e.Chat, true
		}
	case *ChatCreated:
		if e != nil {
			return e.Chat, true
		}
	}
	return Chat{}, false
}
