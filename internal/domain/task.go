package domain

import (
	"time"

	"github.com/google/uuid"
)

// InternalTask is an editorial to-do attached to a manuscript.
// IsOverdue is derived on read and never stored.
type InternalTask struct {
	ID           uuid.UUID
	ManuscriptID uuid.UUID
	Title        string
	Description  *string
	AssigneeID   *uuid.UUID
	Status       TaskStatus
	Priority     TaskPriority
	DueAt        *time.Time
	IsOverdue    bool
	EscalatedAt  *time.Time
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskPatch holds the fields of a task update. Nil means unchanged.
type TaskPatch struct {
	Title         *string
	Description   *string
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	Status        *TaskStatus
	Priority      *TaskPriority
	DueAt         *time.Time
	ClearDueAt    bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.AssigneeID == nil && !p.ClearAssignee &&
		p.Status == nil && p.Priority == nil && p.DueAt == nil && !p.ClearDueAt
}

// TaskSummary is a read-only per-manuscript projection of its tasks.
type TaskSummary struct {
	ManuscriptID      uuid.UUID `json:"manuscript_id"`
	OpenTasksCount    int       `json:"open_tasks_count"`
	OverdueTasksCount int       `json:"overdue_tasks_count"`
}
