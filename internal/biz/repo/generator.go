package repo

import (
	"context"
	"io"
)

// Role of an instruction sent to the text generator
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Instruction is one role-tagged prompt message
type Instruction struct {
	Role    Role
	Content string
}

// Completion is the generator result. Exactly one of Text or Stream is set;
// callers that need a complete payload must close Stream and treat it as unusable.
type Completion struct {
	Text   string
	Stream io.Closer
}

// TextGenerator is the external text-generation capability
type TextGenerator interface {
	Complete(ctx context.Context, instructions []Instruction) (*Completion, error)
}
