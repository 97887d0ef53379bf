package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

// CreateInput holds the parameters for a new task.
type CreateInput struct {
	ManuscriptID uuid.UUID
	Title        string
	Description  *string
	AssigneeID   *uuid.UUID
	Priority     domain.TaskPriority
	DueAt        *time.Time
}

// Validate checks all fields and collects all errors.
func (i CreateInput) Validate() error {
	var errs []domain.FieldError
	if i.ManuscriptID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "manuscript_id", Message: "required"})
	}
	errs = append(errs, titleErrors(&i.Title)...)
	errs = append(errs, descriptionErrors(i.Description)...)
	if i.Priority != "" && !i.Priority.IsValid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "must be one of low, normal, high, urgent"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// PatchInput holds a task update and the updated_at the caller last observed.
type PatchInput struct {
	TaskID            uuid.UUID
	ExpectedUpdatedAt time.Time
	Patch             domain.TaskPatch
}

// Validate checks all fields and collects all errors.
func (i PatchInput) Validate() error {
	var errs []domain.FieldError
	if i.TaskID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "task_id", Message: "required"})
	}
	if i.ExpectedUpdatedAt.IsZero() {
		errs = append(errs, domain.FieldError{Field: "updated_at", Message: "required"})
	}
	p := i.Patch
	if p.IsEmpty() {
		errs = append(errs, domain.FieldError{Field: "patch", Message: "at least one field required"})
	}
	if p.Title != nil {
		errs = append(errs, titleErrors(p.Title)...)
	}
	errs = append(errs, descriptionErrors(p.Description)...)
	if p.Status != nil && !p.Status.IsValid() {
		errs = append(errs, domain.FieldError{Field: "status", Message: "must be one of todo, in_progress, done"})
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "must be one of low, normal, high, urgent"})
	}
	if p.AssigneeID != nil && p.ClearAssignee {
		errs = append(errs, domain.FieldError{Field: "assignee_id", Message: "cannot set and clear at once"})
	}
	if p.DueAt != nil && p.ClearDueAt {
		errs = append(errs, domain.FieldError{Field: "due_at", Message: "cannot set and clear at once"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func titleErrors(title *string) []domain.FieldError {
	t := strings.TrimSpace(*title)
	if t == "" {
		return []domain.FieldError{{Field: "title", Message: "required"}}
	}
	if len(t) > maxTitleLength {
		return []domain.FieldError{{Field: "title", Message: fmt.Sprintf("max %d characters", maxTitleLength)}}
	}
	return nil
}

func descriptionErrors(d *string) []domain.FieldError {
	if d != nil && len(*d) > maxDescriptionLength {
		return []domain.FieldError{{Field: "description", Message: fmt.Sprintf("max %d characters", maxDescriptionLength)}}
	}
	return nil
}
