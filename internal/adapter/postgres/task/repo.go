// Package task implements the InternalTask repository using PostgreSQL.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/journal-backend/internal/adapter/postgres"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

const table = "internal_tasks"

var columns = []string{
	"id", "manuscript_id", "title", "description", "assignee_id", "status",
	"priority", "due_at", "escalated_at", "created_by", "created_at", "updated_at",
}

// Repo provides internal task persistence backed by PostgreSQL.
type Repo struct {
	pool postgres.Querier
}

// New creates a new task repository.
func New(pool postgres.Querier) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a task by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.InternalTask, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get task: %w", err)
	}

	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.pool), &dst, query, args...); err != nil {
		return nil, postgres.MapError(err, "internal_task", id)
	}
	t := dst.toDomain()
	return &t, nil
}

// ListByManuscript returns the tasks of one manuscript, oldest first.
func (r *Repo) ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error) {
	return r.list(ctx, squirrel.Eq{"manuscript_id": manuscriptID})
}

// ListByManuscripts returns the tasks of several manuscripts at once.
func (r *Repo) ListByManuscripts(ctx context.Context, manuscriptIDs []uuid.UUID) ([]domain.InternalTask, error) {
	if len(manuscriptIDs) == 0 {
		return []domain.InternalTask{}, nil
	}
	return r.list(ctx, squirrel.Eq{"manuscript_id": manuscriptIDs})
}

// ListNeedingEscalation returns open tasks past their due date that have not
// been escalated yet.
func (r *Repo) ListNeedingEscalation(ctx context.Context, now time.Time) ([]domain.InternalTask, error) {
	return r.list(ctx, squirrel.And{
		squirrel.NotEq{"status": string(domain.TaskDone)},
		squirrel.Lt{"due_at": now},
		squirrel.Eq{"escalated_at": nil},
	})
}

func (r *Repo) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.InternalTask, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(where).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	out := make([]domain.InternalTask, len(rows))
	for i, rw := range rows {
		out[i] = rw.toDomain()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new task.
func (r *Repo) Create(ctx context.Context, t *domain.InternalTask) error {
	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(
			t.ID, t.ManuscriptID, t.Title, t.Description, t.AssigneeID, string(t.Status),
			string(t.Priority), t.DueAt, t.EscalatedAt, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert task: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "internal_task", t.ID)
	}
	return nil
}

// Update writes the mutable columns of t if the stored updated_at equals expected.
func (r *Repo) Update(ctx context.Context, t *domain.InternalTask, expected time.Time) error {
	return postgres.UpdateCAS(ctx, postgres.QuerierFromCtx(ctx, r.pool), table, domain.EntityTypeTask, t.ID, expected,
		map[string]any{
			"title":        t.Title,
			"description":  t.Description,
			"assignee_id":  t.AssigneeID,
			"status":       string(t.Status),
			"priority":     string(t.Priority),
			"due_at":       t.DueAt,
			"escalated_at": t.EscalatedAt,
			"updated_at":   t.UpdatedAt,
		})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID           uuid.UUID  `db:"id"`
	ManuscriptID uuid.UUID  `db:"manuscript_id"`
	Title        string     `db:"title"`
	Description  *string    `db:"description"`
	AssigneeID   *uuid.UUID `db:"assignee_id"`
	Status       string     `db:"status"`
	Priority     string     `db:"priority"`
	DueAt        *time.Time `db:"due_at"`
	EscalatedAt  *time.Time `db:"escalated_at"`
	CreatedBy    uuid.UUID  `db:"created_by"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r row) toDomain() domain.InternalTask {
	return domain.InternalTask{
		ID:           r.ID,
		ManuscriptID: r.ManuscriptID,
		Title:        r.Title,
		Description:  r.Description,
		AssigneeID:   r.AssigneeID,
		Status:       domain.TaskStatus(r.Status),
		Priority:     domain.TaskPriority(r.Priority),
		DueAt:        r.DueAt,
		EscalatedAt:  r.EscalatedAt,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
