package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

type manuscriptReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
}

type taskRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InternalTask, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error)
	ListByManuscripts(ctx context.Context, manuscriptIDs []uuid.UUID) ([]domain.InternalTask, error)
	ListNeedingEscalation(ctx context.Context, now time.Time) ([]domain.InternalTask, error)
	Create(ctx context.Context, t *domain.InternalTask) error
	Update(ctx context.Context, t *domain.InternalTask, expected time.Time) error
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

// Service manages internal editorial tasks and their SLA projections. Tasks
// inform operators and never block a manuscript transition.
type Service struct {
	manuscripts manuscriptReader
	tasks       taskRepo
	audit       auditLogger
	outbox      outboxWriter
	tx          txManager
	clock       clockwork.Clock
	log         *slog.Logger
}

// NewService creates a new task service.
func NewService(
	log *slog.Logger,
	manuscripts manuscriptReader,
	tasks taskRepo,
	audit auditLogger,
	outbox outboxWriter,
	tx txManager,
	clock clockwork.Clock,
) *Service {
	return &Service{
		manuscripts: manuscripts,
		tasks:       tasks,
		audit:       audit,
		outbox:      outbox,
		tx:          tx,
		clock:       clock,
		log:         log.With("service", "task"),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func taskRecord(actorID uuid.UUID, t *domain.InternalTask, action domain.AuditAction, changes map[string]any) domain.AuditRecord {
	msID, id := t.ManuscriptID, t.ID
	return domain.AuditRecord{
		UserID:       actorID,
		ManuscriptID: &msID,
		EntityType:   domain.EntityTypeTask,
		EntityID:     &id,
		Action:       action,
		Changes:      changes,
	}
}

func assigneeIntent(t *domain.InternalTask, event string) domain.Intent {
	id := *t.AssigneeID
	return domain.Intent{
		Kind:         domain.IntentNotifyAssignee,
		ManuscriptID: t.ManuscriptID,
		RecipientID:  &id,
		Event:        event,
		Data:         map[string]any{"task_id": t.ID.String(), "title": t.Title},
	}
}
