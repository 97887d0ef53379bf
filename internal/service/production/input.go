package production

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

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

// PaymentInput settles the invoice. Waive marks it waived instead of paid.
type PaymentInput struct {
	TransitionInput
	Waive bool
}

// FinalFileInput attaches the final typeset file.
type FinalFileInput struct {
	TransitionInput
	FileRef string
}

// Validate checks all fields and collects all errors.
func (i FinalFileInput) Validate() error {
	errs := i.fieldErrors()
	if strings.TrimSpace(i.FileRef) == "" {
		errs = append(errs, domain.FieldError{Field: "file_ref", Message: "required"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// CycleInput identifies a production cycle and the cycle updated_at the
// caller last observed.
type CycleInput struct {
	ManuscriptID      uuid.UUID
	CycleID           uuid.UUID
	ExpectedUpdatedAt time.Time
}

func (i CycleInput) fieldErrors() []domain.FieldError {
	var errs []domain.FieldError
	if i.ManuscriptID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "manuscript_id", Message: "required"})
	}
	if i.CycleID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "cycle_id", Message: "required"})
	}
	if i.ExpectedUpdatedAt.IsZero() {
		errs = append(errs, domain.FieldError{Field: "updated_at", Message: "required"})
	}
	return errs
}

// Validate checks all fields and collects all errors.
func (i CycleInput) Validate() error {
	if errs := i.fieldErrors(); len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// SendProofInput sends a proof file to the author.
type SendProofInput struct {
	CycleInput
	FileRef string
}

// Validate checks all fields and collects all errors.
func (i SendProofInput) Validate() error {
	errs := i.fieldErrors()
	if strings.TrimSpace(i.FileRef) == "" {
		errs = append(errs, domain.FieldError{Field: "file_ref", Message: "required"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ProofreadingInput is the author's answer to the active proof.
type ProofreadingInput struct {
	CycleInput
	Decision    domain.ProofreadingDecision
	Corrections []domain.CorrectionItem
}
