package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

const (
	maxReasonLength      = 200
	maxNoteLength        = 2000
	maxCommentsLength    = 50000
	maxReportAttachments = 20
)

// InviteInput holds the parameters for inviting a reviewer.
type InviteInput struct {
	ManuscriptID uuid.UUID
	ReviewerID   uuid.UUID
	Override     bool
}

// Validate checks all fields and collects all errors.
func (i InviteInput) Validate() error {
	var errs []domain.FieldError
	if i.ManuscriptID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "manuscript_id", Message: "required"})
	}
	if i.ReviewerID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "reviewer_id", Message: "required"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// RespondInput identifies an assignment and the updated_at the caller last
// observed.
type RespondInput struct {
	AssignmentID      uuid.UUID
	ExpectedUpdatedAt time.Time
}

func (i RespondInput) fieldErrors() []domain.FieldError {
	var errs []domain.FieldError
	if i.AssignmentID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "assignment_id", Message: "required"})
	}
	if i.ExpectedUpdatedAt.IsZero() {
		errs = append(errs, domain.FieldError{Field: "updated_at", Message: "required"})
	}
	return errs
}

// Validate checks all fields and collects all errors.
func (i RespondInput) Validate() error {
	if errs := i.fieldErrors(); len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// DeclineInput holds the parameters for declining an invitation.
type DeclineInput struct {
	RespondInput
	Reason string
	Note   string
}

// Validate checks all fields and collects all errors.
func (i DeclineInput) Validate() error {
	errs := i.fieldErrors()
	reason := strings.TrimSpace(i.Reason)
	if reason == "" {
		errs = append(errs, domain.FieldError{Field: "reason", Message: "required"})
	}
	if len(reason) > maxReasonLength {
		errs = append(errs, domain.FieldError{Field: "reason", Message: fmt.Sprintf("max %d characters", maxReasonLength)})
	}
	if len(i.Note) > maxNoteLength {
		errs = append(errs, domain.FieldError{Field: "note", Message: fmt.Sprintf("max %d characters", maxNoteLength)})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// SubmitReviewInput holds a reviewer's report.
type SubmitReviewInput struct {
	RespondInput
	Recommendation   domain.Recommendation
	CommentsToAuthor string
	CommentsToEditor string
	Attachments      []string
}

// Validate checks all fields and collects all errors.
func (i SubmitReviewInput) Validate() error {
	errs := i.fieldErrors()
	if !i.Recommendation.IsValid() {
		errs = append(errs, domain.FieldError{Field: "recommendation", Message: "must be one of accept, minor, major, reject"})
	}
	if strings.TrimSpace(i.CommentsToAuthor) == "" {
		errs = append(errs, domain.FieldError{Field: "comments_to_author", Message: "required"})
	}
	if len(i.CommentsToAuthor) > maxCommentsLength {
		errs = append(errs, domain.FieldError{Field: "comments_to_author", Message: fmt.Sprintf("max %d characters", maxCommentsLength)})
	}
	if len(i.CommentsToEditor) > maxCommentsLength {
		errs = append(errs, domain.FieldError{Field: "comments_to_editor", Message: fmt.Sprintf("max %d characters", maxCommentsLength)})
	}
	if len(i.Attachments) > maxReportAttachments {
		errs = append(errs, domain.FieldError{Field: "attachments", Message: fmt.Sprintf("max %d attachments", maxReportAttachments)})
	}
	for idx, ref := range i.Attachments {
		if strings.TrimSpace(ref) == "" {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("attachments[%d]", idx), Message: "required"})
		}
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
