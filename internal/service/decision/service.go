package decision

import (
	"context"
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

type reportCounter interface {
	CountCompletedReports(ctx context.Context, manuscriptID uuid.UUID, round int) (int, error)
}

type draftRepo interface {
	Get(ctx context.Context, manuscriptID uuid.UUID, stage domain.DecisionStage, round int) (*domain.DecisionDraft, error)
	ListFinal(ctx context.Context, manuscriptID uuid.UUID) ([]domain.DecisionDraft, error)
	Create(ctx context.Context, d *domain.DecisionDraft) error
	Update(ctx context.Context, d *domain.DecisionDraft, expected time.Time) error
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

// Service manages decision drafts and final decisions. Saving a draft never
// moves the manuscript; only SubmitFinal does.
type Service struct {
	manuscripts manuscriptRepo
	reports     reportCounter
	drafts      draftRepo
	audit       auditLogger
	outbox      outboxWriter
	tx          txManager
	machine     *workflow.Machine
	log         *slog.Logger
}

// NewService creates a new decision service.
func NewService(
	log *slog.Logger,
	manuscripts manuscriptRepo,
	reports reportCounter,
	drafts draftRepo,
	audit auditLogger,
	outbox outboxWriter,
	tx txManager,
	machine *workflow.Machine,
) *Service {
	return &Service{
		manuscripts: manuscripts,
		reports:     reports,
		drafts:      drafts,
		audit:       audit,
		outbox:      outbox,
		tx:          tx,
		machine:     machine,
		log:         log.With("service", "decision"),
	}
}

// editableFrom lists the manuscript statuses in which drafts of a stage may
// still be edited.
var editableFrom = map[domain.DecisionStage][]domain.ManuscriptStatus{
	domain.StageFirst: {domain.StatusUnderReview, domain.StatusDecision},
	domain.StageFinal: {domain.StatusUnderReview, domain.StatusDecision, domain.StatusDecisionDone},
}

func draftEditable(stage domain.DecisionStage, status domain.ManuscriptStatus) bool {
	for _, s := range editableFrom[stage] {
		if s == status {
			return true
		}
	}
	return false
}

func draftRecord(actorID uuid.UUID, d *domain.DecisionDraft, action domain.AuditAction, changes map[string]any) domain.AuditRecord {
	msID, id := d.ManuscriptID, d.ID
	return domain.AuditRecord{
		UserID:       actorID,
		ManuscriptID: &msID,
		EntityType:   domain.EntityTypeDecisionDraft,
		EntityID:     &id,
		Action:       action,
		Changes:      changes,
	}
}
