package usecase

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/biz/repo"
)

// RecordOutcome tells what Record did with an event
type RecordOutcome string

const (
	RecordStored     RecordOutcome = "stored"
	RecordDuplicate  RecordOutcome = "duplicate"
	RecordService    RecordOutcome = "service"
	RecordIneligible RecordOutcome = "ineligible"
	RecordBlocked    RecordOutcome = "blocked"
	RecordFailed     RecordOutcome = "failed"
)

// RecordUsecase persists qualifying content messages and keeps per-user counters
type RecordUsecase struct {
	messageRepo repo.MessageRepo
	userRepo    repo.UserRepo
	gate        *ThreadGate
	devMode     bool
	logger      *slog.Logger
}

// NewRecordUsecase creates a new record usecase
func NewRecordUsecase(
	messageRepo repo.MessageRepo,
	userRepo repo.UserRepo,
	gate *ThreadGate,
	devMode bool,
	logger *slog.Logger,
) *RecordUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordUsecase{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		gate:        gate,
		devMode:     devMode,
		logger:      logger.With("component", "recorder"),
	}
}

// Record runs an event through classification, chat eligibility and the
// thread gate, then appends it. The sender counter is only bumped for rows
// that were actually inserted, so redelivered updates are not counted twice.
//
// A non-nil error always comes with RecordBlocked (policy lookup failed),
// RecordFailed (append failed) or RecordStored (counter update failed).
func (uc *RecordUsecase) Record(ctx context.Context, ev domain.Event) (RecordOutcome, error) {
	if domain.Classify(ev) != domain.KindContent {
		return RecordService, nil
	}
	msg := ev.(*domain.ContentMessage)

	if !domain.IsEligibleChat(msg.Chat.Type, uc.devMode) {
		uc.logger.Debug("ignore message from chat type", "chat_id", msg.Chat.ID, "chat_type", msg.Chat.Type)
		return RecordIneligible, nil
	}

	threadID := ""
	if msg.ThreadID != nil {
		threadID = *msg.ThreadID
	}
	blocked, err := uc.gate.IsBlocked(ctx, threadID)
	if err != nil {
		return RecordBlocked, err
	}
	if blocked {
		uc.logger.Debug("ignore message from blacklisted thread", "chat_id", msg.Chat.ID, "thread_id", threadID)
		return RecordBlocked, nil
	}

	stored := domain.NewStoredMessage(msg)
	inserted, err := uc.messageRepo.AppendMessage(ctx, stored)
	if err != nil {
		return RecordFailed, err
	}
	if !inserted {
		return RecordDuplicate, nil
	}

	if stored.SenderID != nil {
		chars := utf8.RuneCountInString(stored.Text)
		if err := uc.userRepo.UpsertUserActivity(ctx, stored.Platform, *stored.SenderID, stored.SenderName, chars); err != nil {
			return RecordStored, err
		}
	}
	return RecordStored, nil
}
