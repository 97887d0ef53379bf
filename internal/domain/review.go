package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewReport is the content a reviewer submits when completing an assignment.
// CommentsToEditor is confidential to the editorial office.
type ReviewReport struct {
	Recommendation   Recommendation `json:"recommendation"`
	CommentsToAuthor string         `json:"comments_to_author"`
	CommentsToEditor string         `json:"comments_to_editor,omitempty"`
	Attachments      []string       `json:"attachments,omitempty"`
}

// ReviewAssignment binds one reviewer to one manuscript for one review round.
type ReviewAssignment struct {
	ID            uuid.UUID
	ManuscriptID  uuid.UUID
	ReviewerID    uuid.UUID
	Status        AssignmentStatus
	RoundNumber   int
	DueAt         time.Time
	InvitedBy     uuid.UUID
	OverrideUsed  bool
	RespondedAt   *time.Time
	CompletedAt   *time.Time
	DeclineReason *string
	DeclineNote   *string
	Report        *ReviewReport
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOverdue reports whether the assignment is still open past its due date.
func (a *ReviewAssignment) IsOverdue(now time.Time) bool {
	return a.Status.IsActive() && a.DueAt.Before(now)
}

// HasReport reports whether the assignment is completed with a report attached.
func (a *ReviewAssignment) HasReport() bool {
	return a.Status == AssignmentCompleted && a.Report != nil
}

// CooldownReason explains why a cooldown is active.
type CooldownReason string

const (
	CooldownRecentResponse CooldownReason = "recent_response"
	CooldownActiveLoad     CooldownReason = "active_load"
)

// InvitePolicySnapshot is computed fresh per (manuscript, reviewer) pair and
// never persisted as primary data.
type InvitePolicySnapshot struct {
	ManuscriptID          uuid.UUID       `json:"manuscript_id"`
	ReviewerID            uuid.UUID       `json:"reviewer_id"`
	Conflict              bool            `json:"conflict"`
	CooldownActive        bool            `json:"cooldown_active"`
	CooldownUntil         *time.Time      `json:"cooldown_until,omitempty"`
	CooldownReason        *CooldownReason `json:"cooldown_reason,omitempty"`
	OverdueOpenCount      int             `json:"overdue_open_count"`
	ActiveAssignmentCount int             `json:"active_assignment_count"`
	AllowOverride         bool            `json:"allow_override"`
	CanAssign             bool            `json:"can_assign"`
	EvaluatedAt           time.Time       `json:"evaluated_at"`
}
