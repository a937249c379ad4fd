package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamedCompletion is returned when the generator answered with a stream
	ErrStreamedCompletion = errors.New("streamed completion cannot be used")
	// ErrEmptyCompletion is returned when the generator produced no text
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrLinkRejected is returned when the account service refuses a code
	ErrLinkRejected = errors.New("link code rejected")
	// ErrIneligibleChat is returned when a chat type is neither recorded nor summarized
	ErrIneligibleChat = errors.New("chat type not eligible")
	// ErrThreadBlocked is returned for blacklisted threads
	ErrThreadBlocked = errors.New("thread is blacklisted")
	// ErrInvalidLinkCode is returned when a /link code fails ValidateLinkCode
	ErrInvalidLinkCode = errors.New("invalid link code")
)

// StoreError wraps any persistence failure
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PolicyLookupError is returned when the thread blacklist could not be consulted
type PolicyLookupError struct {
	ThreadID string
	Err      error
}

func (e *PolicyLookupError) Error() string {
	return fmt.Sprintf("thread policy lookup %s: %v", e.ThreadID, e.Err)
}

func (e *PolicyLookupError) Unwrap() error { return e.Err }

// GenerationError describes why the AI summary was not usable
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate summary: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SanitizationError is reported when markup had to be stripped
type SanitizationError struct {
	Reason string
}

func (e *SanitizationError) Error() string {
	return "sanitize markup: " + e.Reason
}
