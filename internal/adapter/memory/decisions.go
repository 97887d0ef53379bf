package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// DecisionRepo is the in-memory decision draft repository.
type DecisionRepo struct{ s *Store }

// Decisions returns the decision draft repository of s.
func (s *Store) Decisions() *DecisionRepo { return &DecisionRepo{s: s} }

// Get returns the draft keyed by (manuscript, stage, round).
func (r *DecisionRepo) Get(_ context.Context, manuscriptID uuid.UUID, stage domain.DecisionStage, round int) (*domain.DecisionDraft, error) {
	var (
		out domain.DecisionDraft
		ok  bool
	)
	r.s.read(func(t *tables) {
		for _, d := range t.drafts {
			if d.ManuscriptID == manuscriptID && d.Stage == stage && d.Round == round {
				out, ok = cloneDraft(d), true
				return
			}
		}
	})
	if !ok {
		return nil, fmt.Errorf("decision_draft %s: %w", manuscriptID, domain.ErrNotFound)
	}
	return &out, nil
}

// ListFinal returns submitted final-stage drafts ordered by round.
func (r *DecisionRepo) ListFinal(_ context.Context, manuscriptID uuid.UUID) ([]domain.DecisionDraft, error) {
	out := []domain.DecisionDraft{}
	r.s.read(func(t *tables) {
		for _, d := range t.drafts {
			if d.ManuscriptID == manuscriptID && d.Stage == domain.StageFinal && d.IsFinal {
				out = append(out, cloneDraft(d))
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.DecisionDraft) int { return a.Round - b.Round })
	return out, nil
}

// Create stores a new draft. A second draft for the same key yields
// domain.ErrAlreadyExists.
func (r *DecisionRepo) Create(ctx context.Context, d *domain.DecisionDraft) error {
	return r.s.write(ctx, []rowKey{{tableDrafts, d.ID}}, func(t *tables) error {
		for _, other := range t.drafts {
			if other.ID == d.ID || (other.ManuscriptID == d.ManuscriptID && other.Stage == d.Stage && other.Round == d.Round) {
				return fmt.Errorf("decision_draft %s: %w", d.ID, domain.ErrAlreadyExists)
			}
		}
		t.drafts[d.ID] = cloneDraft(*d)
		return nil
	})
}

// Update replaces the stored draft if its updated_at equals expected.
func (r *DecisionRepo) Update(ctx context.Context, d *domain.DecisionDraft, expected time.Time) error {
	return r.s.write(ctx, []rowKey{{tableDrafts, d.ID}}, func(t *tables) error {
		cur, ok := t.drafts[d.ID]
		if !ok {
			return fmt.Errorf("decision_draft %s: %w", d.ID, domain.ErrNotFound)
		}
		if !cur.UpdatedAt.Equal(expected) {
			return &domain.ConflictError{Entity: domain.EntityTypeDecisionDraft, ID: d.ID, Expected: expected, Actual: cur.UpdatedAt}
		}
		t.drafts[d.ID] = cloneDraft(*d)
		return nil
	})
}
