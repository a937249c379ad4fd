package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// ErrUnknownSender is returned when a /link message carries no sender
var ErrUnknownSender = errors.New("link: message has no sender")

// LinkUsecase binds a Telegram user to a KhmerCoders account with a one-time code
type LinkUsecase struct {
	verifier repo.AccountVerifier
	userRepo repo.UserRepo
}

// NewLinkUsecase creates a new link usecase
func NewLinkUsecase(verifier repo.AccountVerifier, userRepo repo.UserRepo) *LinkUsecase {
	return &LinkUsecase{
		verifier: verifier,
		userRepo: userRepo,
	}
}

// ParseLinkCode extracts the code from "/link <code>". ok is false when no code was given.
func ParseLinkCode(text string) (code string, ok bool) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// Link verifies code and stores the resulting account link for sender.
// Errors: ErrUnknownSender, domain.ErrInvalidLinkCode, domain.ErrLinkRejected, a verifier
// transport error, or a *domain.StoreError.
func (uc *LinkUsecase) Link(ctx context.Context, sender *domain.Sender, code string) (*domain.AccountLink, error) {
	if sender == nil || sender.ID == "" {
		return nil, ErrUnknownSender
	}
	if !domain.ValidateLinkCode(code) {
		return nil, domain.ErrInvalidLinkCode
	}

	linkedUserID, err := uc.verifier.Verify(ctx, code)
	if err != nil {
		return nil, err
	}

	link := &domain.AccountLink{
		Platform:     domain.PlatformTelegram,
		UserID:       sender.ID,
		DisplayName:  sender.DisplayName(),
		LinkedUserID: linkedUserID,
	}
	if err := uc.userRepo.UpsertAccountLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}
