package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
)

type manuscriptRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	Update(ctx context.Context, m *domain.Manuscript, expected time.Time) error
}

type cycleRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductionCycle, error)
	Latest(ctx context.Context, manuscriptID uuid.UUID) (*domain.ProductionCycle, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ProductionCycle, error)
	Create(ctx context.Context, c *domain.ProductionCycle) error
	Update(ctx context.Context, c *domain.ProductionCycle, expected time.Time) error
}

type taskReader interface {
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error)
}

type auditLogger interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type outboxWriter interface {
	Enqueue(ctx context.Context, intents []domain.Intent, now time.Time) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service runs the post-acceptance chain: production stages, proofreading
// cycles and the publish gates.
type Service struct {
	manuscripts manuscriptRepo
	cycles      cycleRepo
	tasks       taskReader
	audit       auditLogger
	outbox      outboxWriter
	tx          txManager
	machine     *workflow.Machine
	cycleFSM    *workflow.CycleMachine
	log         *slog.Logger
}

// NewService creates a new production service.
func NewService(
	log *slog.Logger,
	manuscripts manuscriptRepo,
	cycles cycleRepo,
	tasks taskReader,
	audit auditLogger,
	outbox outboxWriter,
	tx txManager,
	machine *workflow.Machine,
	cycleFSM *workflow.CycleMachine,
) *Service {
	return &Service{
		manuscripts: manuscripts,
		cycles:      cycles,
		tasks:       tasks,
		audit:       audit,
		outbox:      outbox,
		tx:          tx,
		machine:     machine,
		cycleFSM:    cycleFSM,
		log:         log.With("service", "production"),
	}
}

// latestCycle returns the manuscript's active cycle, or nil when none exists.
func (s *Service) latestCycle(ctx context.Context, manuscriptID uuid.UUID) (*domain.ProductionCycle, error) {
	c, err := s.cycles.Latest(ctx, manuscriptID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest cycle: %w", err)
	}
	return c, nil
}

func manuscriptRecord(actorID uuid.UUID, cmd workflow.Command, res workflow.Result) domain.AuditRecord {
	action := domain.AuditActionUpdate
	if res.Changed() {
		action = domain.AuditActionTransition
	}
	changes := map[string]any{
		"action": string(cmd.Action),
		"status": map[string]any{"old": string(res.From), "new": string(res.To)},
	}
	if cmd.FileRef != "" {
		changes["final_file_ref"] = cmd.FileRef
	}
	if cmd.Action == workflow.ActionConfirmPayment || cmd.Action == workflow.ActionWaiveInvoice {
		changes["invoice"] = string(res.Manuscript.Invoice)
	}
	msID := res.Manuscript.ID
	return domain.AuditRecord{
		UserID:       actorID,
		ManuscriptID: &msID,
		EntityType:   domain.EntityTypeManuscript,
		EntityID:     &msID,
		Action:       action,
		Changes:      changes,
	}
}

func cycleRecord(actorID uuid.UUID, action string, res workflow.CycleResult) domain.AuditRecord {
	auditAction := domain.AuditActionTransition
	if res.From == "" {
		auditAction = domain.AuditActionCreate
	}
	msID, id := res.Cycle.ManuscriptID, res.Cycle.ID
	return domain.AuditRecord{
		UserID:       actorID,
		ManuscriptID: &msID,
		EntityType:   domain.EntityTypeProductionCycle,
		EntityID:     &id,
		Action:       auditAction,
		Changes: map[string]any{
			"action":   action,
			"cycle_no": res.Cycle.CycleNo,
			"status":   map[string]any{"old": string(res.From), "new": string(res.To)},
		},
	}
}
