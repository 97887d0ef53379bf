package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Fields      []fieldError      `json:"fields,omitempty"`
	Gates       []domain.GateCode `json:"gates,omitempty"`
	Overridable *bool             `json:"overridable,omitempty"`
	Until       *time.Time        `json:"cooldown_until,omitempty"`
	UpdatedAt   *time.Time        `json:"current_updated_at,omitempty"`
	Completed   *int              `json:"completed_reports,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// handleError maps a service error to its HTTP status and error envelope.
// Unknown errors are logged and reported as 500 without details.
func handleError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ge *domain.GuardError
		ce *domain.ConflictError
		pe *domain.PolicyError
		gt *domain.GateError
		ir *domain.InsufficientReportsError
	)

	switch {
	case errors.As(err, &ve):
		d := errorDetail{Code: "validation_error", Message: ve.Error()}
		for _, fe := range ve.Errors {
			d.Fields = append(d.Fields, fieldError{Field: fe.Field, Message: fe.Message})
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: d})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.As(err, &ce):
		actual := ce.Actual
		writeJSON(w, http.StatusConflict, errorBody{Error: errorDetail{
			Code: "conflict", Message: ce.Error(), UpdatedAt: &actual,
		}})
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.As(err, &ge):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", ge.Error())
	case errors.As(err, &pe):
		overridable := pe.Overridable
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code: string(pe.Code), Message: pe.Error(), Overridable: &overridable, Until: pe.CooldownUntil,
		}})
	case errors.As(err, &gt):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code: "gate_blocked", Message: gt.Error(), Gates: gt.Gates,
		}})
	case errors.As(err, &ir):
		completed := ir.Completed
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code: "insufficient_reports", Message: ir.Error(), Completed: &completed,
		}})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	default:
		log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
