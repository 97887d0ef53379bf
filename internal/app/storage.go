package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/adapter/memory"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/assignment"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/cycle"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/decision"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/manuscript"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/outbox"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/task"
	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/user"
	"github.com/heartmarshall/journal-backend/internal/config"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, int, error)
}

type manuscriptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	Create(ctx context.Context, m *domain.Manuscript) error
	Update(ctx context.Context, m *domain.Manuscript, expected time.Time) error
}

type assignmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewAssignment, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error)
	ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]domain.ReviewAssignment, error)
	CountCompletedReports(ctx context.Context, manuscriptID uuid.UUID, round int) (int, error)
	Create(ctx context.Context, a *domain.ReviewAssignment) error
	Update(ctx context.Context, a *domain.ReviewAssignment, expected time.Time) error
}

type draftStore interface {
	Get(ctx context.Context, manuscriptID uuid.UUID, stage domain.DecisionStage, round int) (*domain.DecisionDraft, error)
	ListFinal(ctx context.Context, manuscriptID uuid.UUID) ([]domain.DecisionDraft, error)
	Create(ctx context.Context, d *domain.DecisionDraft) error
	Update(ctx context.Context, d *domain.DecisionDraft, expected time.Time) error
}

type cycleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductionCycle, error)
	Latest(ctx context.Context, manuscriptID uuid.UUID) (*domain.ProductionCycle, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ProductionCycle, error)
	Create(ctx context.Context, c *domain.ProductionCycle) error
	Update(ctx context.Context, c *domain.ProductionCycle, expected time.Time) error
}

type taskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InternalTask, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error)
	ListByManuscripts(ctx context.Context, manuscriptIDs []uuid.UUID) ([]domain.InternalTask, error)
	ListNeedingEscalation(ctx context.Context, now time.Time) ([]domain.InternalTask, error)
	Create(ctx context.Context, t *domain.InternalTask) error
	Update(ctx context.Context, t *domain.InternalTask, expected time.Time) error
}

type auditStore interface {
	Log(ctx context.Context, record domain.AuditRecord) error
	ListByManuscript(ctx context.Context, manuscriptID, before uuid.UUID, limit int) ([]domain.AuditRecord, error)
}

type outboxStore interface {
	Enqueue(ctx context.Context, intents []domain.Intent, now time.Time) error
	ClaimPending(ctx context.Context, now, leaseUntil time.Time, limit int) ([]domain.OutboxMessage, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, next time.Time, terminal bool) error
	Backlog(ctx context.Context) (domain.OutboxBacklog, error)
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Storage bundles the repositories of one storage driver.
type Storage struct {
	Users       userStore
	Manuscripts manuscriptStore
	Assignments assignmentStore
	Drafts      draftStore
	Cycles      cycleStore
	Tasks       taskStore
	Audit       auditStore
	Outbox      outboxStore
	Tx          txRunner

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the backing store.
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// OutboxBacklog reports undelivered intents.
func (s *Storage) OutboxBacklog(ctx context.Context) (domain.OutboxBacklog, error) {
	return s.Outbox.Backlog(ctx)
}

// Close releases the backing store.
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// NewMemoryStorage wires every repository to one in-memory store.
func NewMemoryStorage(store *memory.Store) *Storage {
	return &Storage{
		Users:       store.Users(),
		Manuscripts: store.Manuscripts(),
		Assignments: store.Assignments(),
		Drafts:      store.Decisions(),
		Cycles:      store.Cycles(),
		Tasks:       store.Tasks(),
		Audit:       store.Audit(),
		Outbox:      store.Outbox(),
		Tx:          memory.NewTxManager(store),
	}
}

// NewPostgresStorage opens a connection pool and wires the pgx repositories.
func NewPostgresStorage(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Users:       user.New(pool),
		Manuscripts: manuscript.New(pool),
		Assignments: assignment.New(pool),
		Drafts:      decision.New(pool),
		Cycles:      cycle.New(pool),
		Tasks:       task.New(pool),
		Audit:       audit.New(pool),
		Outbox:      outbox.New(pool),
		Tx:          postgres.NewTxManager(pool),
		ping:        pool.Ping,
		close:       pool.Close,
	}, nil
}

// OpenStorage selects the storage driver named in cfg.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return NewPostgresStorage(ctx, cfg.Database)
	case config.DriverMemory:
		return NewMemoryStorage(memory.New()), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
