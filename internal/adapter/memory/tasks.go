package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// TaskRepo is the in-memory internal task repository.
type TaskRepo struct{ s *Store }

// Tasks returns the internal task repository of s.
func (s *Store) Tasks() *TaskRepo { return &TaskRepo{s: s} }

// GetByID returns a copy of the stored task.
func (r *TaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.InternalTask, error) {
	var (
		tk domain.InternalTask
		ok bool
	)
	r.s.read(func(t *tables) {
		tk, ok = t.tasks[id]
		tk = cloneTask(tk)
	})
	if !ok {
		return nil, fmt.Errorf("internal_task %s: %w", id, domain.ErrNotFound)
	}
	return &tk, nil
}

// ListByManuscript returns the tasks of one manuscript, oldest first.
func (r *TaskRepo) ListByManuscript(_ context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error) {
	return r.filter(func(tk domain.InternalTask) bool { return tk.ManuscriptID == manuscriptID }), nil
}

// ListByManuscripts returns the tasks of several manuscripts at once.
func (r *TaskRepo) ListByManuscripts(_ context.Context, manuscriptIDs []uuid.UUID) ([]domain.InternalTask, error) {
	return r.filter(func(tk domain.InternalTask) bool { return slices.Contains(manuscriptIDs, tk.ManuscriptID) }), nil
}

// ListNeedingEscalation returns open overdue tasks not yet escalated.
func (r *TaskRepo) ListNeedingEscalation(_ context.Context, now time.Time) ([]domain.InternalTask, error) {
	return r.filter(func(tk domain.InternalTask) bool {
		return tk.Status != domain.TaskDone && tk.DueAt != nil && tk.DueAt.Before(now) && tk.EscalatedAt == nil
	}), nil
}

func (r *TaskRepo) filter(keep func(domain.InternalTask) bool) []domain.InternalTask {
	out := []domain.InternalTask{}
	r.s.read(func(t *tables) {
		for _, tk := range t.tasks {
			if keep(tk) {
				out = append(out, cloneTask(tk))
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.InternalTask) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// Create stores a new task.
func (r *TaskRepo) Create(ctx context.Context, tk *domain.InternalTask) error {
	return r.s.write(ctx, []rowKey{{tableTasks, tk.ID}}, func(t *tables) error {
		if _, exists := t.tasks[tk.ID]; exists {
			return fmt.Errorf("internal_task %s: %w", tk.ID, domain.ErrAlreadyExists)
		}
		if _, ok := t.manuscripts[tk.ManuscriptID]; !ok {
			return fmt.Errorf("internal_task %s: manuscript %s: %w", tk.ID, tk.ManuscriptID, domain.ErrNotFound)
		}
		next := cloneTask(*tk)
		next.IsOverdue = false
		t.tasks[tk.ID] = next
		return nil
	})
}

// Update replaces the stored task if its updated_at equals expected.
func (r *TaskRepo) Update(ctx context.Context, tk *domain.InternalTask, expected time.Time) error {
	return r.s.write(ctx, []rowKey{{tableTasks, tk.ID}}, func(t *tables) error {
		cur, ok := t.tasks[tk.ID]
		if !ok {
			return fmt.Errorf("internal_task %s: %w", tk.ID, domain.ErrNotFound)
		}
		if !cur.UpdatedAt.Equal(expected) {
			return &domain.ConflictError{Entity: domain.EntityTypeTask, ID: tk.ID, Expected: expected, Actual: cur.UpdatedAt}
		}
		next := cloneTask(*tk)
		next.IsOverdue = false
		t.tasks[tk.ID] = next
		return nil
	})
}
