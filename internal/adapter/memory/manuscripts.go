package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// ManuscriptRepo is the in-memory manuscript repository.
type ManuscriptRepo struct{ s *Store }

// Manuscripts returns the manuscript repository of s.
func (s *Store) Manuscripts() *ManuscriptRepo { return &ManuscriptRepo{s: s} }

// GetByID returns a copy of the stored manuscript.
func (r *ManuscriptRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Manuscript, error) {
	var (
		m  domain.Manuscript
		ok bool
	)
	r.s.read(func(t *tables) {
		m, ok = t.manuscripts[id]
		m = m.Clone()
	})
	if !ok {
		return nil, fmt.Errorf("manuscript %s: %w", id, domain.ErrNotFound)
	}
	return &m, nil
}

// GetByIDForUpdate locks the manuscript row until the transaction on ctx
// ends, then reads it.
func (r *ManuscriptRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error) {
	if err := r.s.lockForUpdate(ctx, rowKey{tableManuscripts, id}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Create stores a new manuscript.
func (r *ManuscriptRepo) Create(ctx context.Context, m *domain.Manuscript) error {
	return r.s.write(ctx, []rowKey{{tableManuscripts, m.ID}}, func(t *tables) error {
		if _, exists := t.manuscripts[m.ID]; exists {
			return fmt.Errorf("manuscript %s: %w", m.ID, domain.ErrAlreadyExists)
		}
		t.manuscripts[m.ID] = m.Clone()
		return nil
	})
}

// Update replaces the stored manuscript if its updated_at equals expected.
func (r *ManuscriptRepo) Update(ctx context.Context, m *domain.Manuscript, expected time.Time) error {
	return r.s.write(ctx, []rowKey{{tableManuscripts, m.ID}}, func(t *tables) error {
		cur, ok := t.manuscripts[m.ID]
		if !ok {
			return fmt.Errorf("manuscript %s: %w", m.ID, domain.ErrNotFound)
		}
		if !cur.UpdatedAt.Equal(expected) {
			return &domain.ConflictError{Entity: domain.EntityTypeManuscript, ID: m.ID, Expected: expected, Actual: cur.UpdatedAt}
		}
		next := m.Clone()
		next.SubmitterID = cur.SubmitterID
		next.CreatedAt = cur.CreatedAt
		t.manuscripts[m.ID] = next
		return nil
	})
}
