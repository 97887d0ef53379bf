package user

import (
	"net/mail"
	"strings"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

const (
	maxNameLength  = 255
	maxEmailLength = 320
)

// SyncProfileInput holds the display name reported by the identity provider.
type SyncProfileInput struct {
	Name string
}

// Validate validates the sync profile input.
func (i SyncProfileInput) Validate() error {
	var errs []domain.FieldError

	name := strings.TrimSpace(i.Name)
	if name == "" {
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	} else if len(name) > maxNameLength {
		errs = append(errs, domain.FieldError{Field: "name", Message: "too long"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.NewValidationError("email", "required")
	}
	if len(email) > maxEmailLength {
		return domain.NewValidationError("email", "too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.NewValidationError("email", "invalid email")
	}
	return nil
}

// SetRolesInput holds the new role set of a directory entry.
type SetRolesInput struct {
	Roles []domain.Role
}

// Validate validates the set roles input.
func (i SetRolesInput) Validate() error {
	var errs []domain.FieldError
	if len(i.Roles) == 0 {
		errs = append(errs, domain.FieldError{Field: "roles", Message: "at least one role required"})
	}
	for _, r := range i.Roles {
		if !r.IsValid() {
			errs = append(errs, domain.FieldError{Field: "roles", Message: "invalid role: " + string(r)})
		}
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
