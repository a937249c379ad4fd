package repo

import "context"

// AccountVerifier checks one-time link codes against the external account system
type AccountVerifier interface {
	// Verify returns the linked account id, or domain.ErrLinkRejected
	Verify(ctx context.Context, code string) (linkedUserID string, err error)
}
