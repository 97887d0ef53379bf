// Package cycle implements the ProductionCycle repository using PostgreSQL.
package cycle

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

const table = "production_cycles"

var columns = []string{
	"id", "manuscript_id", "cycle_no", "status", "proof_file_ref", "proof_sent_at",
	"proof_due_at", "latest_response", "approved_by", "approved_at",
	"created_by", "created_at", "updated_at",
}

// Repo provides production cycle persistence backed by PostgreSQL.
type Repo struct {
	pool postgres.Querier
}

// New creates a new production cycle repository.
func New(pool postgres.Querier) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a cycle by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductionCycle, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get cycle: %w", err)
	}
	return r.getOne(ctx, query, args, id)
}

// Latest returns the cycle with the highest cycle_no for the manuscript.
// domain.ErrNotFound means no cycle has been opened yet.
func (r *Repo) Latest(ctx context.Context, manuscriptID uuid.UUID) (*domain.ProductionCycle, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"manuscript_id": manuscriptID}).
		OrderBy("cycle_no DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest cycle: %w", err)
	}
	return r.getOne(ctx, query, args, manuscriptID)
}

func (r *Repo) getOne(ctx context.Context, query string, args []any, id uuid.UUID) (*domain.ProductionCycle, error) {
	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.pool), &dst, query, args...); err != nil {
		return nil, postgres.MapError(err, "production_cycle", id)
	}
	return dst.toDomain()
}

// ListByManuscript returns all cycles of a manuscript, oldest first.
func (r *Repo) ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ProductionCycle, error) {
	query, args, err := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"manuscript_id": manuscriptID}).
		OrderBy("cycle_no ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list cycles: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}

	out := make([]domain.ProductionCycle, 0, len(rows))
	for _, rw := range rows {
		c, err := rw.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new cycle. Reusing a cycle number yields domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, c *domain.ProductionCycle) error {
	resp, err := marshalResponse(c.LatestResponse)
	if err != nil {
		return err
	}

	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(
			c.ID, c.ManuscriptID, c.CycleNo, string(c.Status), c.ProofFileRef, c.ProofSentAt,
			c.ProofDueAt, resp, c.ApprovedBy, c.ApprovedAt,
			c.CreatedBy, c.CreatedAt, c.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert cycle: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "production_cycle", c.ID)
	}
	return nil
}

// Update writes the mutable columns of c if the stored updated_at equals expected.
func (r *Repo) Update(ctx context.Context, c *domain.ProductionCycle, expected time.Time) error {
	resp, err := marshalResponse(c.LatestResponse)
	if err != nil {
		return err
	}

	return postgres.UpdateCAS(ctx, postgres.QuerierFromCtx(ctx, r.pool), table, domain.EntityTypeProductionCycle, c.ID, expected,
		map[string]any{
			"status":          string(c.Status),
			"proof_file_ref":  c.ProofFileRef,
			"proof_sent_at":   c.ProofSentAt,
			"proof_due_at":    c.ProofDueAt,
			"latest_response": resp,
			"approved_by":     c.ApprovedBy,
			"approved_at":     c.ApprovedAt,
			"updated_at":      c.UpdatedAt,
		})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID             uuid.UUID  `db:"id"`
	ManuscriptID   uuid.UUID  `db:"manuscript_id"`
	CycleNo        int        `db:"cycle_no"`
	Status         string     `db:"status"`
	ProofFileRef   *string    `db:"proof_file_ref"`
	ProofSentAt    *time.Time `db:"proof_sent_at"`
	ProofDueAt     *time.Time `db:"proof_due_at"`
	LatestResponse []byte     `db:"latest_response"`
	ApprovedBy     *uuid.UUID `db:"approved_by"`
	ApprovedAt     *time.Time `db:"approved_at"`
	CreatedBy      uuid.UUID  `db:"created_by"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r row) toDomain() (*domain.ProductionCycle, error) {
	c := &domain.ProductionCycle{
		ID:           r.ID,
		ManuscriptID: r.ManuscriptID,
		CycleNo:      r.CycleNo,
		Status:       domain.CycleStatus(r.Status),
		ProofFileRef: r.ProofFileRef,
		ProofSentAt:  r.ProofSentAt,
		ProofDueAt:   r.ProofDueAt,
		ApprovedBy:   r.ApprovedBy,
		ApprovedAt:   r.ApprovedAt,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.LatestResponse) > 0 {
		var resp domain.ProofreadingResponse
		if err := json.Unmarshal(r.LatestResponse, &resp); err != nil {
			return nil, fmt.Errorf("production_cycle %s unmarshal response: %w", r.ID, err)
		}
		c.LatestResponse = &resp
	}
	return c, nil
}

func marshalResponse(resp *domain.ProofreadingResponse) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("production_cycle marshal response: %w", err)
	}
	return b, nil
}
