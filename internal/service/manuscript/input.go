package manuscript

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

const (
	maxTitleLength    = 500
	maxAbstractLength = 10000
	maxAuthors        = 50
)

// SubmitInput holds the parameters for a new submission.
type SubmitInput struct {
	Title    string
	Abstract string
	Authors  []domain.Author
}

// Validate checks all fields and collects all errors.
func (i SubmitInput) Validate() error {
	var errs []domain.FieldError

	title := strings.TrimSpace(i.Title)
	if title == "" {
		errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
	}
	if len(title) > maxTitleLength {
		errs = append(errs, domain.FieldError{Field: "title", Message: fmt.Sprintf("max %d characters", maxTitleLength)})
	}
	if len(i.Abstract) > maxAbstractLength {
		errs = append(errs, domain.FieldError{Field: "abstract", Message: fmt.Sprintf("max %d characters", maxAbstractLength)})
	}
	if len(i.Authors) > maxAuthors {
		errs = append(errs, domain.FieldError{Field: "authors", Message: fmt.Sprintf("max %d authors", maxAuthors)})
	}
	for idx, a := range i.Authors {
		if strings.TrimSpace(a.Name) == "" {
			errs = append(errs, domain.FieldError{Field: fmt.Sprintf("authors[%d].name", idx), Message: "required"})
		}
		if a.Email != "" {
			if _, err := mail.ParseAddress(a.Email); err != nil {
				errs = append(errs, domain.FieldError{Field: fmt.Sprintf("authors[%d].email", idx), Message: "invalid email"})
			}
		}
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// TransitionInput identifies a manuscript and the updated_at the caller last
// observed.
type TransitionInput struct {
	ManuscriptID      uuid.UUID
	ExpectedUpdatedAt time.Time
}

func (i TransitionInput) fieldErrors() []domain.FieldError {
	var errs []domain.FieldError
	if i.ManuscriptID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "manuscript_id", Message: "required"})
	}
	if i.ExpectedUpdatedAt.IsZero() {
		errs = append(errs, domain.FieldError{Field: "updated_at", Message: "required"})
	}
	return errs
}

// Validate checks all fields and collects all errors.
func (i TransitionInput) Validate() error {
	if errs := i.fieldErrors(); len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// PrecheckInput holds a quick, technical or academic pre-check decision.
type PrecheckInput struct {
	TransitionInput
	Decision domain.PrecheckDecision
	Comment  string
}

// Validate checks all fields and collects all errors.
func (i PrecheckInput) Validate() error {
	errs := i.fieldErrors()
	if !i.Decision.IsValid() {
		errs = append(errs, domain.FieldError{Field: "decision", Message: "must be approve or revision"})
	}
	if i.Decision == domain.PrecheckDecisionRevision && strings.TrimSpace(i.Comment) == "" {
		errs = append(errs, domain.FieldError{Field: "comment", Message: "required when requesting revision"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// AssignInput binds a user to a manuscript role slot.
type AssignInput struct {
	TransitionInput
	UserID uuid.UUID
}

// Validate checks all fields and collects all errors.
func (i AssignInput) Validate() error {
	errs := i.fieldErrors()
	if i.UserID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "user_id", Message: "required"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
