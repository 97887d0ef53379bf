package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author is one entry of a manuscript's author list. UserID is set when the
// author is a registered user.
type Author struct {
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// PrecheckState is the pre-check sub-state. It is meaningful only while the
// manuscript status is pre_check.
type PrecheckState struct {
	Status          PrecheckStatus
	CurrentRole     *Role
	CurrentAssignee *uuid.UUID
	TechnicalPassed bool
	AcademicPassed  bool
	Comment         *string
}

// Manuscript is the canonical record of a submission's lifecycle.
// UpdatedAt is the optimistic-concurrency token.
type Manuscript struct {
	ID           uuid.UUID
	Title        string
	Abstract     string
	SubmitterID  uuid.UUID
	Authors      []Author
	Status       ManuscriptStatus
	Precheck     PrecheckState
	OwnerID      *uuid.UUID
	EditorID     *uuid.UUID
	Invoice      InvoiceStatus
	FinalFileRef *string
	Version      int
	ReviewRound  int
	PublishedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasAuthor reports whether the user matches the submitter or any entry of
// the author list, by identity or by case-insensitive email.
func (m *Manuscript) HasAuthor(userID uuid.UUID, email string) bool {
	if m.SubmitterID == userID {
		return true
	}
	email = strings.TrimSpace(email)
	for _, a := range m.Authors {
		if a.UserID != nil && *a.UserID == userID {
			return true
		}
		if email != "" && strings.EqualFold(strings.TrimSpace(a.Email), email) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so that engine transitions never alias the input.
func (m Manuscript) Clone() Manuscript {
	c := m
	c.Authors = append([]Author(nil), m.Authors...)
	c.OwnerID = cloneUUID(m.OwnerID)
	c.EditorID = cloneUUID(m.EditorID)
	c.FinalFileRef = cloneString(m.FinalFileRef)
	c.PublishedAt = cloneTime(m.PublishedAt)
	c.Precheck.CurrentAssignee = cloneUUID(m.Precheck.CurrentAssignee)
	c.Precheck.Comment = cloneString(m.Precheck.Comment)
	if m.Precheck.CurrentRole != nil {
		r := *m.Precheck.CurrentRole
		c.Precheck.CurrentRole = &r
	}
	return c
}

func cloneUUID(p *uuid.UUID) *uuid.UUID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
