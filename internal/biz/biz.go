package biz

import (
	"log/slog"

	"github.com/khmercoders/kcbot/internal/biz/repo"
	"github.com/khmercoders/kcbot/internal/biz/usecase"
)

// Deps are the repositories and external capabilities the usecases depend on
type Deps struct {
	Messages  repo.MessageRepo
	Users     repo.UserRepo
	Threads   repo.ThreadRepo
	Generator repo.TextGenerator
	Verifier  repo.AccountVerifier
}

// Usecases contains all usecases
type Usecases struct {
	Gate    *usecase.ThreadGate
	Record  *usecase.RecordUsecase
	Summary *usecase.SummaryUsecase
	Link    *usecase.LinkUsecase
}

// NewUsecases wires every usecase around one shared thread gate
func NewUsecases(deps Deps, summary usecase.SummaryConfig, devMode bool, logger *slog.Logger) *Usecases {
	gate := usecase.NewThreadGate(deps.Threads)
	return &Usecases{
		Gate:    gate,
		Record:  usecase.NewRecordUsecase(deps.Messages, deps.Users, gate, devMode, logger),
		Summary: usecase.NewSummaryUsecase(deps.Messages, deps.Generator, gate, summary, devMode, logger),
		Link:    usecase.NewLinkUsecase(deps.Verifier, deps.Users),
	}
}
