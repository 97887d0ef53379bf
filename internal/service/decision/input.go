package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

const (
	maxContentLength = 100000
	maxAttachments   = 20
)

// SaveDraftInput holds a draft save. LastUpdatedAt is the draft's updated_at
// as last observed; nil when no draft has been seen yet.
type SaveDraftInput struct {
	ManuscriptID  uuid.UUID
	Stage         domain.DecisionStage
	Decision      domain.DecisionKind
	Content       string
	Attachments   []string
	LastUpdatedAt *time.Time
}

// Validate checks all fields and collects all errors.
func (i SaveDraftInput) Validate() error {
	var errs []domain.FieldError
	if i.ManuscriptID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "manuscript_id", Message: "required"})
	}
	if !i.Stage.IsValid() {
		errs = append(errs, domain.FieldError{Field: "stage", Message: "must be first or final"})
	}
	if i.Decision != "" && !i.Decision.IsValid() {
		errs = append(errs, domain.FieldError{Field: "decision", Message: "must be one of accept, minor, major, reject"})
	}
	errs = append(errs, contentErrors(i.Content, i.Attachments)...)
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// SubmitFinalInput holds a final decision. ExpectedUpdatedAt is the
// manuscript's token; DraftUpdatedAt optionally pins the final draft.
type SubmitFinalInput struct {
	ManuscriptID      uuid.UUID
	ExpectedUpdatedAt time.Time
	Decision          domain.DecisionKind
	Content           string
	Attachments       []string
	DraftUpdatedAt    *time.Time
}

// Validate checks all fields and collects all errors.
func (i SubmitFinalInput) Validate() error {
	var errs []domain.FieldError
	if i.ManuscriptID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "manuscript_id", Message: "required"})
	}
	if i.ExpectedUpdatedAt.IsZero() {
		errs = append(errs, domain.FieldError{Field: "updated_at", Message: "required"})
	}
	if !i.Decision.IsValid() {
		errs = append(errs, domain.FieldError{Field: "decision", Message: "must be one of accept, minor, major, reject"})
	}
	if strings.TrimSpace(i.Content) == "" {
		errs = append(errs, domain.FieldError{Field: "content", Message: "required"})
	}
	errs = append(errs, contentErrors(i.Content, i.Attachments)...)
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func contentErrors(content string, attachments []string) []domain.FieldError {
	var errs []domain.FieldError
	if len(content) > maxContentLength {
		errs = append(errs, domain.FieldError{Field: "content", Message: fmt.Sprintf("max %d characters", maxContentLength)})
	}
	if len(attachments) > maxAttachments {
		errs = append(errs, domain.FieldError{Field: "attachments", Message: fmt.Sprintf("max %d attachments", maxAttachments)})
	}
	for idx, ref := range attachments {
		if strings.TrimSpace(ref) == "" {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("attachments[%d]", idx), Message: "required"})
		}
	}
	return errs
}
