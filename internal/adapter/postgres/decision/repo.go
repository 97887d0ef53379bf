// Package decision implements the DecisionDraft repository using PostgreSQL.
package decision

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

const table = "decision_drafts"

var columns = []string{
	"id", "manuscript_id", "stage", "round", "decision", "content", "attachments",
	"is_final", "submitted_at", "submitted_by", "updated_by", "created_at", "updated_at",
}

// Repo provides decision draft persistence backed by PostgreSQL.
type Repo struct {
	pool postgres.Querier
}

// New creates a new decision draft repository.
func New(pool postgres.Querier) *Repo {
	return &Repo{pool: pool}
}

// Get returns the draft keyed by (manuscript, stage, round).
func (r *Repo) Get(ctx context.Context, manuscriptID uuid.UUID, stage domain.DecisionStage, round int) (*domain.DecisionDraft, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"manuscript_id": manuscriptID, "stage": string(stage), "round": round}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get decision draft: %w", err)
	}

	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.pool), &dst, query, args...); err != nil {
		return nil, postgres.MapError(err, "decision_draft", manuscriptID)
	}
	return dst.toDomain(), nil
}

// ListFinal returns submitted final-stage drafts of a manuscript ordered by round.
func (r *Repo) ListFinal(ctx context.Context, manuscriptID uuid.UUID) ([]domain.DecisionDraft, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"manuscript_id": manuscriptID, "stage": string(domain.StageFinal), "is_final": true}).
		OrderBy("round ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list final decisions: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list final decisions: %w", err)
	}

	out := make([]domain.DecisionDraft, len(rows))
	for i, rw := range rows {
		out[i] = *rw.toDomain()
	}
	return out, nil
}

// Create inserts a new draft. A second draft for the same key yields
// domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, d *domain.DecisionDraft) error {
	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(
			d.ID, d.ManuscriptID, string(d.Stage), d.Round, string(d.Decision), d.Content, attachments(d.Attachments),
			d.IsFinal, d.SubmittedAt, d.SubmittedBy, d.UpdatedBy, d.CreatedAt, d.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert decision draft: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "decision_draft", d.ID)
	}
	return nil
}

// Update writes the mutable columns of d if the stored updated_at equals expected.
func (r *Repo) Update(ctx context.Context, d *domain.DecisionDraft, expected time.Time) error {
	return postgres.UpdateCAS(ctx, postgres.QuerierFromCtx(ctx, r.pool), table, domain.EntityTypeDecisionDraft, d.ID, expected,
		map[string]any{
			"decision":     string(d.Decision),
			"content":      d.Content,
			"attachments":  attachments(d.Attachments),
			"is_final":     d.IsFinal,
			"submitted_at": d.SubmittedAt,
			"submitted_by": d.SubmittedBy,
			"updated_by":   d.UpdatedBy,
			"updated_at":   d.UpdatedAt,
		})
}

// attachments never returns nil so the NOT NULL column receives '{}'.
func attachments(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

type row struct {
	ID           uuid.UUID  `db:"id"`
	ManuscriptID uuid.UUID  `db:"manuscript_id"`
	Stage        string     `db:"stage"`
	Round        int        `db:"round"`
	Decision     string     `db:"decision"`
	Content      string     `db:"content"`
	Attachments  []string   `db:"attachments"`
	IsFinal      bool       `db:"is_final"`
	SubmittedAt  *time.Time `db:"submitted_at"`
	SubmittedBy  *uuid.UUID `db:"submitted_by"`
	UpdatedBy    uuid.UUID  `db:"updated_by"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r row) toDomain() *domain.DecisionDraft {
	d := &domain.DecisionDraft{
		ID:           r.ID,
		ManuscriptID: r.ManuscriptID,
		Stage:        domain.DecisionStage(r.Stage),
		Round:        r.Round,
		Decision:     domain.DecisionKind(r.Decision),
		Content:      r.Content,
		IsFinal:      r.IsFinal,
		SubmittedAt:  r.SubmittedAt,
		SubmittedBy:  r.SubmittedBy,
		UpdatedBy:    r.UpdatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Attachments) > 0 {
		d.Attachments = r.Attachments
	}
	return d
}
