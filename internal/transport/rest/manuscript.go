package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/service/manuscript"
)

type manuscriptService interface {
	Submit(ctx context.Context, input manuscript.SubmitInput) (*domain.Manuscript, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error)
	History(ctx context.Context, id, before uuid.UUID, limit int) ([]domain.AuditRecord, error)
	QuickPrecheck(ctx context.Context, input manuscript.PrecheckInput) (*domain.Manuscript, error)
	TechnicalCheck(ctx context.Context, input manuscript.PrecheckInput) (*domain.Manuscript, error)
	AcademicCheck(ctx context.Context, input manuscript.PrecheckInput) (*domain.Manuscript, error)
	AssignAE(ctx context.Context, input manuscript.AssignInput) (*domain.Manuscript, error)
	BindOwner(ctx context.Context, input manuscript.AssignInput) (*domain.Manuscript, error)
	BindEditor(ctx context.Context, input manuscript.AssignInput) (*domain.Manuscript, error)
	Resubmit(ctx context.Context, input manuscript.TransitionInput) (*domain.Manuscript, error)
	RestartReview(ctx context.Context, input manuscript.TransitionInput) (*domain.Manuscript, error)
}

// ManuscriptHandler serves submission, pre-check and assignment endpoints.
type ManuscriptHandler struct {
	svc manuscriptService
	log *slog.Logger
}

// NewManuscriptHandler creates a ManuscriptHandler.
func NewManuscriptHandler(svc manuscriptService, logger *slog.Logger) *ManuscriptHandler {
	return &ManuscriptHandler{svc: svc, log: logger.With("handler", "manuscript")}
}

type submitRequest struct {
	Title    string          `json:"title"`
	Abstract string          `json:"abstract"`
	Authors  []domain.Author `json:"authors"`
}

type transitionRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type precheckRequest struct {
	UpdatedAt time.Time               `json:"updated_at"`
	Decision  domain.PrecheckDecision `json:"decision"`
	Comment   string                  `json:"comment"`
}

type assignRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uuid.UUID `json:"user_id"`
}

// Submit handles POST /manuscripts.
func (h *ManuscriptHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := h.svc.Submit(r.Context(), manuscript.SubmitInput{
		Title:    req.Title,
		Abstract: req.Abstract,
		Authors:  req.Authors,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toManuscript(ms))
}

// Get handles GET /manuscripts/{id}.
func (h *ManuscriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := h.svc.Get(r.Context(), id)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}

// History handles GET /manuscripts/{id}/history?limit=&before=. The newest
// records come first; pass the id of the oldest record of a page as before
// to read the page preceding it.
func (h *ManuscriptHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	before, err := queryUUID(r, "before")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	records, err := h.svc.History(r.Context(), id, before, limit)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAudit(records))
}

// QuickPrecheck handles POST /manuscripts/{id}/precheck.
func (h *ManuscriptHandler) QuickPrecheck(w http.ResponseWriter, r *http.Request) {
	h.precheck(w, r, h.svc.QuickPrecheck)
}

// TechnicalCheck handles POST /manuscripts/{id}/precheck/technical.
func (h *ManuscriptHandler) TechnicalCheck(w http.ResponseWriter, r *http.Request) {
	h.precheck(w, r, h.svc.TechnicalCheck)
}

// AcademicCheck handles POST /manuscripts/{id}/precheck/academic.
func (h *ManuscriptHandler) AcademicCheck(w http.ResponseWriter, r *http.Request) {
	h.precheck(w, r, h.svc.AcademicCheck)
}

func (h *ManuscriptHandler) precheck(w http.ResponseWriter, r *http.Request,
	call func(context.Context, manuscript.PrecheckInput) (*domain.Manuscript, error),
) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req precheckRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := call(r.Context(), manuscript.PrecheckInput{
		TransitionInput: manuscript.TransitionInput{ManuscriptID: id, ExpectedUpdatedAt: req.UpdatedAt},
		Decision:        req.Decision,
		Comment:         req.Comment,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}

// AssignAE handles POST /manuscripts/{id}/assign-ae.
func (h *ManuscriptHandler) AssignAE(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.svc.AssignAE)
}

// BindOwner handles POST /manuscripts/{id}/owner.
func (h *ManuscriptHandler) BindOwner(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.svc.BindOwner)
}

// BindEditor handles POST /manuscripts/{id}/editor.
func (h *ManuscriptHandler) BindEditor(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.svc.BindEditor)
}

func (h *ManuscriptHandler) assign(w http.ResponseWriter, r *http.Request,
	call func(context.Context, manuscript.AssignInput) (*domain.Manuscript, error),
) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := call(r.Context(), manuscript.AssignInput{
		TransitionInput: manuscript.TransitionInput{ManuscriptID: id, ExpectedUpdatedAt: req.UpdatedAt},
		UserID:          req.UserID,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}

// Resubmit handles POST /manuscripts/{id}/resubmit.
func (h *ManuscriptHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Resubmit)
}

// RestartReview handles POST /manuscripts/{id}/restart-review.
func (h *ManuscriptHandler) RestartReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.RestartReview)
}

func (h *ManuscriptHandler) transition(w http.ResponseWriter, r *http.Request,
	call func(context.Context, manuscript.TransitionInput) (*domain.Manuscript, error),
) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := call(r.Context(), manuscript.TransitionInput{ManuscriptID: id, ExpectedUpdatedAt: req.UpdatedAt})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}
