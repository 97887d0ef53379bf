// Package manuscript implements the Manuscript repository using PostgreSQL.
// Updates are compare-and-swap on updated_at: the row is written only when
// the stored token equals the one the caller observed.
package manuscript

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

const table = "manuscripts"

var columns = []string{
	"id", "title", "abstract", "submitter_id", "manuscript_authors", "status",
	"pre_check_status", "pre_check_current_role", "pre_check_current_assignee",
	"pre_check_technical_passed", "pre_check_academic_passed", "pre_check_comment",
	"owner_id", "editor_id", "invoice", "final_file_ref", "version", "review_round",
	"published_at", "created_at", "updated_at",
}

// Repo provides manuscript persistence backed by PostgreSQL.
type Repo struct {
	pool postgres.Querier
}

// New creates a new manuscript repository.
func New(pool postgres.Querier) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a manuscript by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate returns a manuscript and locks its row until the
// surrounding transaction ends.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error) {
	return r.get(ctx, id, postgres.InTx(ctx))
}

func (r *Repo) get(ctx context.Context, id uuid.UUID, lock bool) (*domain.Manuscript, error) {
	b := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get manuscript: %w", err)
	}

	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.pool), &dst, query, args...); err != nil {
		return nil, postgres.MapError(err, "manuscript", id)
	}
	return dst.toDomain()
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new manuscript.
func (r *Repo) Create(ctx context.Context, m *domain.Manuscript) error {
	authors, err := json.Marshal(m.Authors)
	if err != nil {
		return fmt.Errorf("manuscript marshal authors: %w", err)
	}

	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(
			m.ID, m.Title, m.Abstract, m.SubmitterID, authors, string(m.Status),
			string(m.Precheck.Status), roleToString(m.Precheck.CurrentRole), m.Precheck.CurrentAssignee,
			m.Precheck.TechnicalPassed, m.Precheck.AcademicPassed, m.Precheck.Comment,
			m.OwnerID, m.EditorID, string(m.Invoice), m.FinalFileRef, m.Version, m.ReviewRound,
			m.PublishedAt, m.CreatedAt, m.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert manuscript: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "manuscript", m.ID)
	}
	return nil
}

// Update writes every mutable column of m if the stored updated_at equals
// expected. A stale token yields *domain.ConflictError.
func (r *Repo) Update(ctx context.Context, m *domain.Manuscript, expected time.Time) error {
	authors, err := json.Marshal(m.Authors)
	if err != nil {
		return fmt.Errorf("manuscript marshal authors: %w", err)
	}

	return postgres.UpdateCAS(ctx, postgres.QuerierFromCtx(ctx, r.pool), table, domain.EntityTypeManuscript, m.ID, expected,
		map[string]any{
			"title":                      m.Title,
			"abstract":                   m.Abstract,
			"manuscript_authors":         authors,
			"status":                     string(m.Status),
			"pre_check_status":           string(m.Precheck.Status),
			"pre_check_current_role":     roleToString(m.Precheck.CurrentRole),
			"pre_check_current_assignee": m.Precheck.CurrentAssignee,
			"pre_check_technical_passed": m.Precheck.TechnicalPassed,
			"pre_check_academic_passed":  m.Precheck.AcademicPassed,
			"pre_check_comment":          m.Precheck.Comment,
			"owner_id":                   m.OwnerID,
			"editor_id":                  m.EditorID,
			"invoice":                    string(m.Invoice),
			"final_file_ref":             m.FinalFileRef,
			"version":                    m.Version,
			"review_round":               m.ReviewRound,
			"published_at":               m.PublishedAt,
			"updated_at":                 m.UpdatedAt,
		})
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID                      uuid.UUID  `db:"id"`
	Title                   string     `db:"title"`
	Abstract                string     `db:"abstract"`
	SubmitterID             uuid.UUID  `db:"submitter_id"`
	Authors                 []byte     `db:"manuscript_authors"`
	Status                  string     `db:"status"`
	PrecheckStatus          string     `db:"pre_check_status"`
	PrecheckCurrentRole     *string    `db:"pre_check_current_role"`
	PrecheckCurrentAssignee *uuid.UUID `db:"pre_check_current_assignee"`
	PrecheckTechnicalPassed bool       `db:"pre_check_technical_passed"`
	PrecheckAcademicPassed  bool       `db:"pre_check_academic_passed"`
	PrecheckComment         *string    `db:"pre_check_comment"`
	OwnerID                 *uuid.UUID `db:"owner_id"`
	EditorID                *uuid.UUID `db:"editor_id"`
	Invoice                 string     `db:"invoice"`
	FinalFileRef            *string    `db:"final_file_ref"`
	Version                 int        `db:"version"`
	ReviewRound             int        `db:"review_round"`
	PublishedAt             *time.Time `db:"published_at"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
}

func (r row) toDomain() (*domain.Manuscript, error) {
	m := &domain.Manuscript{
		ID:          r.ID,
		Title:       r.Title,
		Abstract:    r.Abstract,
		SubmitterID: r.SubmitterID,
		Status:      domain.ManuscriptStatus(r.Status),
		Precheck: domain.PrecheckState{
			Status:          domain.PrecheckStatus(r.PrecheckStatus),
			CurrentAssignee: r.PrecheckCurrentAssignee,
			TechnicalPassed: r.PrecheckTechnicalPassed,
			AcademicPassed:  r.PrecheckAcademicPassed,
			Comment:         r.PrecheckComment,
		},
		OwnerID:      r.OwnerID,
		EditorID:     r.EditorID,
		Invoice:      domain.InvoiceStatus(r.Invoice),
		FinalFileRef: r.FinalFileRef,
		Version:      r.Version,
		ReviewRound:  r.ReviewRound,
		PublishedAt:  r.PublishedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.PrecheckCurrentRole != nil {
		role := domain.Role(*r.PrecheckCurrentRole)
		m.Precheck.CurrentRole = &role
	}
	if len(r.Authors) > 0 {
		if err := json.Unmarshal(r.Authors, &m.Authors); err != nil {
			return nil, fmt.Errorf("manuscript %s unmarshal authors: %w", r.ID, err)
		}
	}
	return m, nil
}

func roleToString(r *domain.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}
