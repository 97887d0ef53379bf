package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// AssignmentRepo is the in-memory review assignment repository.
type AssignmentRepo struct{ s *Store }

// Assignments returns the review assignment repository of s.
func (s *Store) Assignments() *AssignmentRepo { return &AssignmentRepo{s: s} }

// GetByID returns a copy of the stored assignment.
func (r *AssignmentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ReviewAssignment, error) {
	var (
		a  domain.ReviewAssignment
		ok bool
	)
	r.s.read(func(t *tables) {
		a, ok = t.assignments[id]
		a = cloneAssignment(a)
	})
	if !ok {
		return nil, fmt.Errorf("review_assignment %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

// ListByManuscript returns all assignments of a manuscript, oldest first.
func (r *AssignmentRepo) ListByManuscript(_ context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error) {
	return r.filter(func(a domain.ReviewAssignment) bool { return a.ManuscriptID == manuscriptID }), nil
}

// ListByReviewer returns every assignment the reviewer ever held.
func (r *AssignmentRepo) ListByReviewer(_ context.Context, reviewerID uuid.UUID) ([]domain.ReviewAssignment, error) {
	return r.filter(func(a domain.ReviewAssignment) bool { return a.ReviewerID == reviewerID }), nil
}

// CountCompletedReports counts completed assignments with a report for the
// manuscript and review round.
func (r *AssignmentRepo) CountCompletedReports(_ context.Context, manuscriptID uuid.UUID, round int) (int, error) {
	n := len(r.filter(func(a domain.ReviewAssignment) bool {
		return a.ManuscriptID == manuscriptID && a.RoundNumber == round && a.HasReport()
	}))
	return n, nil
}

func (r *AssignmentRepo) filter(keep func(domain.ReviewAssignment) bool) []domain.ReviewAssignment {
	out := []domain.ReviewAssignment{}
	r.s.read(func(t *tables) {
		for _, a := range t.assignments {
			if keep(a) {
				out = append(out, cloneAssignment(a))
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.ReviewAssignment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// Create stores a new assignment. A second active assignment for the same
// reviewer and manuscript yields domain.ErrAlreadyExists.
func (r *AssignmentRepo) Create(ctx context.Context, a *domain.ReviewAssignment) error {
	return r.s.write(ctx, []rowKey{{tableAssignments, a.ID}}, func(t *tables) error {
		if _, exists := t.assignments[a.ID]; exists {
			return fmt.Errorf("review_assignment %s: %w", a.ID, domain.ErrAlreadyExists)
		}
		if a.Status.IsActive() && activePairTaken(t, a) {
			return fmt.Errorf("review_assignment %s: %w", a.ID, domain.ErrAlreadyExists)
		}
		t.assignments[a.ID] = cloneAssignment(*a)
		return nil
	})
}

// Update replaces the stored assignment if its updated_at equals expected.
func (r *AssignmentRepo) Update(ctx context.Context, a *domain.ReviewAssignment, expected time.Time) error {
	return r.s.write(ctx, []rowKey{{tableAssignments, a.ID}}, func(t *tables) error {
		cur, ok := t.assignments[a.ID]
		if !ok {
			return fmt.Errorf("review_assignment %s: %w", a.ID, domain.ErrNotFound)
		}
		if !cur.UpdatedAt.Equal(expected) {
			return &domain.ConflictError{Entity: domain.EntityTypeAssignment, ID: a.ID, Expected: expected, Actual: cur.UpdatedAt}
		}
		if a.Status == domain.AssignmentCompleted && a.Report == nil {
			return fmt.Errorf("review_assignment %s: completed without report: %w", a.ID, domain.ErrValidation)
		}
		if a.Status.IsActive() && activePairTaken(t, a) {
			return fmt.Errorf("review_assignment %s: %w", a.ID, domain.ErrAlreadyExists)
		}
		t.assignments[a.ID] = cloneAssignment(*a)
		return nil
	})
}

func activePairTaken(t *tables, a *domain.ReviewAssignment) bool {
	for _, other := range t.assignments {
		if other.ID != a.ID && other.ManuscriptID == a.ManuscriptID &&
			other.ReviewerID == a.ReviewerID && other.Status.IsActive() {
			return true
		}
	}
	return false
}
