package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DecisionDraft is the editable decision for one manuscript, stage and review
// round. Once IsFinal is set the draft is immutable history.
type DecisionDraft struct {
	ID           uuid.UUID
	ManuscriptID uuid.UUID
	Stage        DecisionStage
	Round        int
	Decision     DecisionKind
	Content      string
	Attachments  []string
	IsFinal      bool
	SubmittedAt  *time.Time
	SubmittedBy  *uuid.UUID
	UpdatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SameContent reports whether the draft already holds exactly this content.
func (d *DecisionDraft) SameContent(decision DecisionKind, content string, attachments []string) bool {
	return d.Decision == decision && d.Content == content && slices.Equal(d.Attachments, attachments)
}

// DecisionLetter is the author-visible view of a submitted final decision.
type DecisionLetter struct {
	ManuscriptID uuid.UUID    `json:"manuscript_id"`
	Round        int          `json:"round"`
	Decision     DecisionKind `json:"decision"`
	Content      string       `json:"content"`
	Attachments  []string     `json:"attachments,omitempty"`
	ReleasedAt   time.Time    `json:"released_at"`
}
