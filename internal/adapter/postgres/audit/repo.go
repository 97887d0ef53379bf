// Package audit stores the append-only workflow history in PostgreSQL.
package audit

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

const table = "audit_log"

var columns = []string{
	"id", "user_id", "manuscript_id", "entity_type", "entity_id", "action", "changes", "created_at",
}

// Repo appends and reads audit records. Writes join the transaction carried
// on the context so a transition and its record commit together.
type Repo struct {
	q postgres.Querier
}

// New creates an audit repository.
func New(q postgres.Querier) *Repo {
	return &Repo{q: q}
}

// Log appends rec. A zero ID or CreatedAt is filled in; nil Changes is
// stored as {}.
func (r *Repo) Log(ctx context.Context, rec domain.AuditRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	changes := []byte("{}")
	if len(rec.Changes) > 0 {
		var err error
		if changes, err = json.Marshal(rec.Changes); err != nil {
			return fmt.Errorf("audit_record %s: encode changes: %w", rec.ID, err)
		}
	}

	query, args, err := postgres.Builder().
		Insert(table).
		Columns(columns...).
		Values(rec.ID, rec.UserID, rec.ManuscriptID, string(rec.EntityType),
			rec.EntityID, string(rec.Action), changes, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit_record: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.q).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "audit_record", rec.ID)
	}
	return nil
}

// ListByManuscript returns the newest limit records of a manuscript older
// than the record before, oldest first. A nil before starts from the newest
// record; an unknown one yields an empty page. A non-positive limit returns
// every record.
func (r *Repo) ListByManuscript(ctx context.Context, manuscriptID, before uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	q := postgres.Builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"manuscript_id": manuscriptID}).
		OrderBy("created_at DESC", "id DESC")
	if before != uuid.Nil {
		q = q.Where("(created_at, id) < (SELECT created_at, id FROM "+table+" WHERE id = ?)", before)
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit_records: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.q), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list audit_records: %w", err)
	}

	out := make([]domain.AuditRecord, len(rows))
	for i, rw := range rows {
		out[len(rows)-1-i] = rw.record()
	}
	return out, nil
}

type row struct {
	ID           uuid.UUID      `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	ManuscriptID *uuid.UUID     `db:"manuscript_id"`
	EntityType   string         `db:"entity_type"`
	EntityID     *uuid.UUID     `db:"entity_id"`
	Action       string         `db:"action"`
	Changes      map[string]any `db:"changes"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r row) record() domain.AuditRecord {
	return domain.AuditRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		ManuscriptID: r.ManuscriptID,
		EntityType:   domain.EntityType(r.EntityType),
		EntityID:     r.EntityID,
		Action:       domain.AuditAction(r.Action),
		Changes:      r.Changes,
		CreatedAt:    r.CreatedAt,
	}
}
