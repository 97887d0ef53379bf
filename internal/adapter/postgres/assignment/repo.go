// Package assignment implements the ReviewAssignment repository using PostgreSQL.
package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/journal-backend/internal/adapter/postgres"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

const table = "review_assignments"

var columns = []string{
	"id", "manuscript_id", "reviewer_id", "status", "round_number", "due_at",
	"invited_by", "override_used", "responded_at", "completed_at",
	"decline_reason", "decline_note", "report", "created_at", "updated_at",
}

// Repo provides review assignment persistence backed by PostgreSQL.
type Repo struct {
	pool postgres.Querier
}

// New creates a new assignment repository.
func New(pool postgres.Querier) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns an assignment by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewAssignment, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get assignment: %w", err)
	}

	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.pool), &dst, query, args...); err != nil {
		return nil, postgres.MapError(err, "review_assignment", id)
	}
	return dst.toDomain()
}

// ListByManuscript returns all assignments of a manuscript, oldest first.
func (r *Repo) ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error) {
	return r.list(ctx, squirrel.Eq{"manuscript_id": manuscriptID})
}

// ListByReviewer returns every assignment the reviewer ever held.
func (r *Repo) ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]domain.ReviewAssignment, error) {
	return r.list(ctx, squirrel.Eq{"reviewer_id": reviewerID})
}

func (r *Repo) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.ReviewAssignment, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(where).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list assignments: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	out := make([]domain.ReviewAssignment, 0, len(rows))
	for _, rw := range rows {
		a, err := rw.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// CountCompletedReports counts completed assignments with a report for the
// given manuscript and review round.
func (r *Repo) CountCompletedReports(ctx context.Context, manuscriptID uuid.UUID, round int) (int, error) {
	query, args, err := postgres.Builder().
		Select("count(*)").
		From(table).
		Where(squirrel.Eq{
			"manuscript_id": manuscriptID,
			"round_number":  round,
			"status":        string(domain.AssignmentCompleted),
		}).
		Where("report IS NOT NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count reports: %w", err)
	}

	var n int
	if err := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completed reports: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new assignment. A second active assignment for the same
// reviewer and manuscript violates ux_review_assignments_active and yields
// domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, a *domain.ReviewAssignment) error {
	report, err := marshalReport(a.Report)
	if err != nil {
		return err
	}

	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(
			a.ID, a.ManuscriptID, a.ReviewerID, string(a.Status), a.RoundNumber, a.DueAt,
			a.InvitedBy, a.OverrideUsed, a.RespondedAt, a.CompletedAt,
			a.DeclineReason, a.DeclineNote, report, a.CreatedAt, a.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert assignment: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "review_assignment", a.ID)
	}
	return nil
}

// Update writes the mutable columns of a if the stored updated_at equals expected.
func (r *Repo) Update(ctx context.Context, a *domain.ReviewAssignment, expected time.Time) error {
	report, err := marshalReport(a.Report)
	if err != nil {
		return err
	}

	return postgres.UpdateCAS(ctx, postgres.QuerierFromCtx(ctx, r.pool), table, domain.EntityTypeAssignment, a.ID, expected,
		map[string]any{
			"status":         string(a.Status),
			"due_at":         a.DueAt,
			"responded_at":   a.RespondedAt,
			"completed_at":   a.CompletedAt,
			"decline_reason": a.DeclineReason,
			"decline_note":   a.DeclineNote,
			"report":         report,
			"updated_at":     a.UpdatedAt,
		})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID            uuid.UUID  `db:"id"`
	ManuscriptID  uuid.UUID  `db:"manuscript_id"`
	ReviewerID    uuid.UUID  `db:"reviewer_id"`
	Status        string     `db:"status"`
	RoundNumber   int        `db:"round_number"`
	DueAt         time.Time  `db:"due_at"`
	InvitedBy     uuid.UUID  `db:"invited_by"`
	OverrideUsed  bool       `db:"override_used"`
	RespondedAt   *time.Time `db:"responded_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	DeclineReason *string    `db:"decline_reason"`
	DeclineNote   *string    `db:"decline_note"`
	Report        []byte     `db:"report"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r row) toDomain() (*domain.ReviewAssignment, error) {
	a := &domain.ReviewAssignment{
		ID:            r.ID,
		ManuscriptID:  r.ManuscriptID,
		ReviewerID:    r.ReviewerID,
		Status:        domain.AssignmentStatus(r.Status),
		RoundNumber:   r.RoundNumber,
		DueAt:         r.DueAt,
		InvitedBy:     r.InvitedBy,
		OverrideUsed:  r.OverrideUsed,
		RespondedAt:   r.RespondedAt,
		CompletedAt:   r.CompletedAt,
		DeclineReason: r.DeclineReason,
		DeclineNote:   r.DeclineNote,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if len(r.Report) > 0 {
		var rep domain.ReviewReport
		if err := json.Unmarshal(r.Report, &rep); err != nil {
			return nil, fmt.Errorf("review_assignment %s unmarshal report: %w", r.ID, err)
		}
		a.Report = &rep
	}
	return a, nil
}

func marshalReport(rep *domain.ReviewReport) ([]byte, error) {
	if rep == nil {
		return nil, nil
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("review_assignment marshal report: %w", err)
	}
	return b, nil
}
