package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")

	ErrInvalidTransition   = errors.New("invalid transition")
	ErrPolicy              = errors.New("invite policy violation")
	ErrGate                = errors.New("gate not satisfied")
	ErrInsufficientReports = errors.New("insufficient review reports")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// GuardError reports an action that is not legal from the current state.
// It is never retried automatically.
type GuardError struct {
	Entity EntityType
	From   string
	Action string
	Reason string
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("%s: action %q not allowed from %q", strings.ToLower(string(e.Entity)), e.Action, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *GuardError) Unwrap() error { return ErrInvalidTransition }

// NewGuardError creates a GuardError.
func NewGuardError(entity EntityType, from, action, reason string) *GuardError {
	return &GuardError{Entity: entity, From: from, Action: action, Reason: reason}
}

// ConflictError reports a stale optimistic-concurrency token. Callers must
// re-fetch and may retry.
type ConflictError struct {
	Entity   EntityType
	ID       uuid.UUID
	Expected time.Time
	Actual   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: stale updated_at (expected %s, current %s)",
		strings.ToLower(string(e.Entity)), e.ID,
		e.Expected.UTC().Format(time.RFC3339Nano), e.Actual.UTC().Format(time.RFC3339Nano))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PolicyCode identifies the reviewer-invite policy rule that blocked an invite.
type PolicyCode string

const (
	PolicyConflictOfInterest PolicyCode = "conflict_of_interest"
	PolicyCooldownActive     PolicyCode = "cooldown_active"
)

// PolicyError reports a blocked reviewer invite. Conflict of interest is
// never overridable; an active cooldown is overridable when Overridable is set.
type PolicyError struct {
	Code          PolicyCode
	ReviewerID    uuid.UUID
	CooldownUntil *time.Time
	Overridable   bool
}

func (e *PolicyError) Error() string {
	switch e.Code {
	case PolicyConflictOfInterest:
		return fmt.Sprintf("reviewer %s: conflict of interest", e.ReviewerID)
	case PolicyCooldownActive:
		if e.CooldownUntil != nil {
			return fmt.Sprintf("reviewer %s: cooldown active until %s", e.ReviewerID, e.CooldownUntil.UTC().Format(time.RFC3339))
		}
		return fmt.Sprintf("reviewer %s: cooldown active", e.ReviewerID)
	}
	return fmt.Sprintf("reviewer %s: %s", e.ReviewerID, e.Code)
}

func (e *PolicyError) Unwrap() error { return ErrPolicy }

// GateCode names a precondition of an irreversible production transition.
type GateCode string

const (
	GatePaymentRequired  GateCode = "payment_required"
	GateFinalFileMissing GateCode = "final_file_missing"
	GateProofNotApproved GateCode = "proof_not_approved"
)

// GateError lists every unsatisfied gate so the caller can render each remediation.
type GateError struct {
	Gates []GateCode
}

func (e *GateError) Error() string {
	parts := make([]string, len(e.Gates))
	for i, g := range e.Gates {
		parts[i] = string(g)
	}
	return "gate: " + strings.Join(parts, ", ")
}

func (e *GateError) Unwrap() error { return ErrGate }

// Has reports whether the given gate is among the blocked ones.
func (e *GateError) Has(code GateCode) bool {
	for _, g := range e.Gates {
		if g == code {
			return true
		}
	}
	return false
}

// InsufficientReportsError is returned when a final decision is attempted
// without any completed review report.
type InsufficientReportsError struct {
	ManuscriptID uuid.UUID
	Completed    int
}

func (e *InsufficientReportsError) Error() string {
	return fmt.Sprintf("manuscript %s: %d completed review reports, at least 1 required", e.ManuscriptID, e.Completed)
}

func (e *InsufficientReportsError) Unwrap() error { return ErrInsufficientReports }
