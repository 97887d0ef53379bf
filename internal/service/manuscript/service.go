package manuscript

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

type manuscriptRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	Create(ctx context.Context, m *domain.Manuscript) error
	Update(ctx context.Context, m *domain.Manuscript, expected time.Time) error
}

type assignmentReader interface {
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error)
}

type auditRepo interface {
	Log(ctx context.Context, record domain.AuditRecord) error
	ListByManuscript(ctx context.Context, manuscriptID, before uuid.UUID, limit int) ([]domain.AuditRecord, error)
}

type outboxWriter interface {
	Enqueue(ctx context.Context, intents []domain.Intent, now time.Time) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service drives manuscripts through submission, pre-check, assignment and
// the revision loop.
type Service struct {
	manuscripts manuscriptRepo
	assignments assignmentReader
	audit       auditRepo
	outbox      outboxWriter
	tx          txManager
	machine     *workflow.Machine
	log         *slog.Logger
}

// NewService creates a new manuscript service.
func NewService(
	log *slog.Logger,
	manuscripts manuscriptRepo,
	assignments assignmentReader,
	audit auditRepo,
	outbox outboxWriter,
	tx txManager,
	machine *workflow.Machine,
) *Service {
	return &Service{
		manuscripts: manuscripts,
		assignments: assignments,
		audit:       audit,
		outbox:      outbox,
		tx:          tx,
		machine:     machine,
		log:         log.With("service", "manuscript"),
	}
}

// apply runs one guarded transition inside a transaction: lock, engine,
// compare-and-swap, audit, outbox.
func (s *Service) apply(ctx context.Context, id uuid.UUID, expected time.Time, cmd workflow.Command) (*domain.Manuscript, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var res workflow.Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}

		res, err = s.machine.Apply(*ms, cmd, actor, expected)
		if err != nil {
			return err
		}

		if err := s.manuscripts.Update(txCtx, &res.Manuscript, expected); err != nil {
			return fmt.Errorf("update manuscript: %w", err)
		}
		if err := s.audit.Log(txCtx, transitionRecord(actor.ID, cmd, res)); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if err := s.outbox.Enqueue(txCtx, res.Effects, res.Manuscript.UpdatedAt); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "manuscript transitioned",
		slog.String("manuscript_id", id.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("action", string(cmd.Action)),
		slog.String("from", res.From.String()),
		slog.String("to", res.To.String()),
	)

	return &res.Manuscript, nil
}

func transitionRecord(actorID uuid.UUID, cmd workflow.Command, res workflow.Result) domain.AuditRecord {
	action := domain.AuditActionUpdate
	if res.Changed() {
		action = domain.AuditActionTransition
	}
	changes := map[string]any{
		"action": string(cmd.Action),
		"status": map[string]any{"old": string(res.From), "new": string(res.To)},
	}
	if cmd.UserID != nil {
		changes["user_id"] = cmd.UserID.String()
	}
	if cmd.PrecheckDecision != "" {
		changes["decision"] = string(cmd.PrecheckDecision)
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
