package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// IsOverdue reports whether an open task is past its due date.
func IsOverdue(t domain.InternalTask, now time.Time) bool {
	return t.DueAt != nil && t.DueAt.Before(now) && t.Status != domain.TaskDone
}

// Annotate sets the derived IsOverdue flag on every task.
func Annotate(tasks []domain.InternalTask, now time.Time) {
	for i := range tasks {
		tasks[i].IsOverdue = IsOverdue(tasks[i], now)
	}
}

// Summarize projects the open and overdue counts of one manuscript's tasks.
func Summarize(manuscriptID uuid.UUID, tasks []domain.InternalTask, now time.Time) domain.TaskSummary {
	s := domain.TaskSummary{ManuscriptID: manuscriptID}
	for _, t := range tasks {
		if t.ManuscriptID != manuscriptID || t.Status == domain.TaskDone {
			continue
		}
		s.OpenTasksCount++
		if IsOverdue(t, now) {
			s.OverdueTasksCount++
		}
	}
	return s
}

// SummarizeAll groups tasks by manuscript and summarizes each group.
func SummarizeAll(tasks []domain.InternalTask, now time.Time) []domain.TaskSummary {
	order := make([]uuid.UUID, 0)
	byID := make(map[uuid.UUID]*domain.TaskSummary)
	for _, t := range tasks {
		s, ok := byID[t.ManuscriptID]
		if !ok {
			s = &domain.TaskSummary{ManuscriptID: t.ManuscriptID}
			byID[t.ManuscriptID] = s
			order = append(order, t.ManuscriptID)
		}
		if t.Status == domain.TaskDone {
			continue
		}
		s.OpenTasksCount++
		if IsOverdue(t, now) {
			s.OverdueTasksCount++
		}
	}
	out := make([]domain.TaskSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// CanEditTask reports whether the actor may mutate the task: its assignee,
// or an internal editor for the task's manuscript.
func CanEditTask(t domain.InternalTask, actor domain.Actor, ms *domain.Manuscript) bool {
	if t.AssigneeID != nil && *t.AssigneeID == actor.ID {
		return true
	}
	return actor.IsInternalEditorFor(ms)
}

// NeedsEscalation reports whether an overdue task has not been escalated yet.
func NeedsEscalation(t domain.InternalTask, now time.Time) bool {
	return IsOverdue(t, now) && t.EscalatedAt == nil
}
