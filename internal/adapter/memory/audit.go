package memory

import (
	"bytes"
	"context"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// AuditRepo is the in-memory append-only audit log.
type AuditRepo struct{ s *Store }

// Audit returns the audit repository of s.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// Log appends rec.
func (r *AuditRepo) Log(ctx context.Context, rec domain.AuditRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.s.clock.Now().UTC()
	}
	rec.Changes = maps.Clone(rec.Changes)
	return r.s.write(ctx, []rowKey{{tableAudit, rec.ID}}, func(t *tables) error {
		t.audit = append(t.audit, rec)
		return nil
	})
}

// ListByManuscript returns the newest limit records of a manuscript older
// than the record before, oldest first. A nil before starts from the newest
// record; an unknown one yields an empty page.
func (r *AuditRepo) ListByManuscript(_ context.Context, manuscriptID, before uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	out := []domain.AuditRecord{}
	var (
		cursor domain.AuditRecord
		found  bool
	)
	r.s.read(func(t *tables) {
		for _, rec := range t.audit {
			if rec.ManuscriptID != nil && *rec.ManuscriptID == manuscriptID {
				out = append(out, rec)
			}
			if before != uuid.Nil && rec.ID == before {
				cursor, found = rec, true
			}
		}
	})
	if before != uuid.Nil {
		if !found {
			return []domain.AuditRecord{}, nil
		}
		out = slices.DeleteFunc(out, func(rec domain.AuditRecord) bool { return compareAudit(rec, cursor) >= 0 })
	}
	slices.SortFunc(out, compareAudit)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// compareAudit orders records by (created_at, id) like the SQL index.
func compareAudit(a, b domain.AuditRecord) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
