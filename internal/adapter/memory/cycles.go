package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// CycleRepo is the in-memory production cycle repository.
type CycleRepo struct{ s *Store }

// Cycles returns the production cycle repository of s.
func (s *Store) Cycles() *CycleRepo { return &CycleRepo{s: s} }

// GetByID returns a copy of the stored cycle.
func (r *CycleRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ProductionCycle, error) {
	var (
		c  domain.ProductionCycle
		ok bool
	)
	r.s.read(func(t *tables) {
		c, ok = t.cycles[id]
		c = c.Clone()
	})
	if !ok {
		return nil, fmt.Errorf("production_cycle %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

// Latest returns the cycle with the highest cycle_no for the manuscript.
func (r *CycleRepo) Latest(ctx context.Context, manuscriptID uuid.UUID) (*domain.ProductionCycle, error) {
	all, _ := r.ListByManuscript(ctx, manuscriptID)
	if len(all) == 0 {
		return nil, fmt.Errorf("production_cycle %s: %w", manuscriptID, domain.ErrNotFound)
	}
	latest := all[len(all)-1]
	return &latest, nil
}

// ListByManuscript returns all cycles of a manuscript ordered by cycle_no.
func (r *CycleRepo) ListByManuscript(_ context.Context, manuscriptID uuid.UUID) ([]domain.ProductionCycle, error) {
	out := []domain.ProductionCycle{}
	r.s.read(func(t *tables) {
		for _, c := range t.cycles {
			if c.ManuscriptID == manuscriptID {
				out = append(out, c.Clone())
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.ProductionCycle) int { return a.CycleNo - b.CycleNo })
	return out, nil
}

// Create stores a new cycle. Reusing a cycle number yields domain.ErrAlreadyExists.
func (r *CycleRepo) Create(ctx context.Context, c *domain.ProductionCycle) error {
	return r.s.write(ctx, []rowKey{{tableCycles, c.ID}}, func(t *tables) error {
		for _, other := range t.cycles {
			if other.ID == c.ID || (other.ManuscriptID == c.ManuscriptID && other.CycleNo == c.CycleNo) {
				return fmt.Errorf("production_cycle %s: %w", c.ID, domain.ErrAlreadyExists)
			}
		}
		t.cycles[c.ID] = c.Clone()
		return nil
	})
}

// Update replaces the stored cycle if its updated_at equals expected.
func (r *CycleRepo) Update(ctx context.Context, c *domain.ProductionCycle, expected time.Time) error {
	return r.s.write(ctx, []rowKey{{tableCycles, c.ID}}, func(t *tables) error {
		cur, ok := t.cycles[c.ID]
		if !ok {
			return fmt.Errorf("production_cycle %s: %w", c.ID, domain.ErrNotFound)
		}
		if !cur.UpdatedAt.Equal(expected) {
			return &domain.ConflictError{Entity: domain.EntityTypeProductionCycle, ID: c.ID, Expected: expected, Actual: cur.UpdatedAt}
		}
		t.cycles[c.ID] = c.Clone()
		return nil
	})
}
