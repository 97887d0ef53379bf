package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
)

type manuscriptReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
}

type assignmentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewAssignment, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error)
	ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]domain.ReviewAssignment, error)
	Create(ctx context.Context, a *domain.ReviewAssignment) error
	Update(ctx context.Context, a *domain.ReviewAssignment, expected time.Time) error
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
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

// Service manages reviewer invitations and review reports.
type Service struct {
	manuscripts manuscriptReader
	assignments assignmentRepo
	users       userReader
	audit       auditLogger
	outbox      outboxWriter
	tx          txManager
	policy      *workflow.PolicyEngine
	clock       clockwork.Clock
	reviewDue   time.Duration
	log         *slog.Logger
}

// NewService creates a new review service. reviewDue is the time a reviewer
// gets from invitation to report.
func NewService(
	log *slog.Logger,
	manuscripts manuscriptReader,
	assignments assignmentRepo,
	users userReader,
	audit auditLogger,
	outbox outboxWriter,
	tx txManager,
	policy *workflow.PolicyEngine,
	clock clockwork.Clock,
	reviewDue time.Duration,
) *Service {
	return &Service{
		manuscripts: manuscripts,
		assignments: assignments,
		users:       users,
		audit:       audit,
		outbox:      outbox,
		tx:          tx,
		policy:      policy,
		clock:       clock,
		reviewDue:   reviewDue,
		log:         log.With("service", "review"),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// inviteFacts gathers the reviewer's history on the manuscript and their
// active load across all manuscripts.
func (s *Service) inviteFacts(ctx context.Context, ms *domain.Manuscript, reviewerID uuid.UUID) (workflow.InviteFacts, error) {
	reviewer, err := s.users.GetByID(ctx, reviewerID)
	if err != nil {
		return workflow.InviteFacts{}, fmt.Errorf("get reviewer: %w", err)
	}
	all, err := s.assignments.ListByReviewer(ctx, reviewerID)
	if err != nil {
		return workflow.InviteFacts{}, fmt.Errorf("list reviewer assignments: %w", err)
	}

	facts := workflow.InviteFacts{Manuscript: ms, Reviewer: *reviewer}
	for _, a := range all {
		if a.ManuscriptID == ms.ID {
			facts.History = append(facts.History, a)
		}
		if a.Status.IsActive() {
			facts.Active = append(facts.Active, a)
		}
	}
	return facts, nil
}

func handlingEditor(ms *domain.Manuscript) *uuid.UUID {
	if ms.EditorID != nil {
		return ms.EditorID
	}
	return ms.OwnerID
}

func assignmentRecord(actorID uuid.UUID, a *domain.ReviewAssignment, action domain.AuditAction, changes map[string]any) domain.AuditRecord {
	msID, id := a.ManuscriptID, a.ID
	return domain.AuditRecord{
		UserID:       actorID,
		ManuscriptID: &msID,
		EntityType:   domain.EntityTypeAssignment,
		EntityID:     &id,
		Action:       action,
		Changes:      changes,
	}
}
