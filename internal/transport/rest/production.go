package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/service/production"
)

type productionService interface {
	Advance(ctx context.Context, input production.TransitionInput) (*production.AdvanceResult, error)
	Revert(ctx context.Context, input production.TransitionInput) (*domain.Manuscript, error)
	SettleInvoice(ctx context.Context, input production.PaymentInput) (*domain.Manuscript, error)
	AttachFinalFile(ctx context.Context, input production.FinalFileInput) (*domain.Manuscript, error)
	OpenCycle(ctx context.Context, input production.TransitionInput) (*domain.ProductionCycle, error)
	ListCycles(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ProductionCycle, error)
	SendProof(ctx context.Context, input production.SendProofInput) (*domain.ProductionCycle, error)
	SubmitProofreading(ctx context.Context, input production.ProofreadingInput) (*domain.ProductionCycle, error)
	StartLayoutRevision(ctx context.Context, input production.CycleInput) (*domain.ProductionCycle, error)
	ApproveCycle(ctx context.Context, input production.CycleInput) (*domain.ProductionCycle, error)
}

// ProductionHandler serves the production chain, gate and cycle endpoints.
type ProductionHandler struct {
	svc productionService
	log *slog.Logger
}

// NewProductionHandler creates a ProductionHandler.
func NewProductionHandler(svc productionService, logger *slog.Logger) *ProductionHandler {
	return &ProductionHandler{svc: svc, log: logger.With("handler", "production")}
}

type advanceResponse struct {
	Manuscript manuscriptResponse `json:"manuscript"`
	SLA        domain.TaskSummary `json:"sla"`
}

type paymentRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
	Waive     bool      `json:"waive"`
}

type fileRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
	FileRef   string    `json:"file_ref"`
}

type cycleRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type proofreadingRequest struct {
	UpdatedAt   time.Time                   `json:"updated_at"`
	Decision    domain.ProofreadingDecision `json:"decision"`
	Corrections []domain.CorrectionItem     `json:"corrections"`
}

// Advance handles POST /manuscripts/{id}/production/advance.
func (h *ProductionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	input, ok := h.transitionInput(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Advance(r.Context(), input)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, advanceResponse{Manuscript: toManuscript(&res.Manuscript), SLA: res.SLA})
}

// Revert handles POST /manuscripts/{id}/production/revert.
func (h *ProductionHandler) Revert(w http.ResponseWriter, r *http.Request) {
	input, ok := h.transitionInput(w, r)
	if !ok {
		return
	}

	ms, err := h.svc.Revert(r.Context(), input)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}

// Payment handles POST /manuscripts/{id}/production/payment. The body selects
// confirmation or waiver.
func (h *ProductionHandler) Payment(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := h.svc.SettleInvoice(r.Context(), production.PaymentInput{
		TransitionInput: production.TransitionInput{ManuscriptID: msID, ExpectedUpdatedAt: req.UpdatedAt},
		Waive:           req.Waive,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}

// FinalFile handles POST /manuscripts/{id}/production/final-file.
func (h *ProductionHandler) FinalFile(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req fileRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	ms, err := h.svc.AttachFinalFile(r.Context(), production.FinalFileInput{
		TransitionInput: production.TransitionInput{ManuscriptID: msID, ExpectedUpdatedAt: req.UpdatedAt},
		FileRef:         req.FileRef,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toManuscript(ms))
}

// OpenCycle handles POST /manuscripts/{id}/production/cycles.
func (h *ProductionHandler) OpenCycle(w http.ResponseWriter, r *http.Request) {
	input, ok := h.transitionInput(w, r)
	if !ok {
		return
	}

	c, err := h.svc.OpenCycle(r.Context(), input)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCycle(c))
}

// ListCycles handles GET /manuscripts/{id}/production/cycles.
func (h *ProductionHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	cycles, err := h.svc.ListCycles(r.Context(), msID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(cycles, toCycle))
}

// SendProof handles POST /manuscripts/{id}/production/cycles/{cycleId}/proof.
func (h *ProductionHandler) SendProof(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	input, ok := h.cycleInput(w, r, &req)
	if !ok {
		return
	}
	input.ExpectedUpdatedAt = req.UpdatedAt

	c, err := h.svc.SendProof(r.Context(), production.SendProofInput{CycleInput: input, FileRef: req.FileRef})
	h.writeCycle(w, r, c, err)
}

// Proofreading handles POST /manuscripts/{id}/production/cycles/{cycleId}/proofreading.
func (h *ProductionHandler) Proofreading(w http.ResponseWriter, r *http.Request) {
	var req proofreadingRequest
	input, ok := h.cycleInput(w, r, &req)
	if !ok {
		return
	}
	input.ExpectedUpdatedAt = req.UpdatedAt

	c, err := h.svc.SubmitProofreading(r.Context(), production.ProofreadingInput{
		CycleInput:  input,
		Decision:    req.Decision,
		Corrections: req.Corrections,
	})
	h.writeCycle(w, r, c, err)
}

// LayoutRevision handles POST /manuscripts/{id}/production/cycles/{cycleId}/layout-revision.
func (h *ProductionHandler) LayoutRevision(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	input, ok := h.cycleInput(w, r, &req)
	if !ok {
		return
	}
	input.ExpectedUpdatedAt = req.UpdatedAt

	c, err := h.svc.StartLayoutRevision(r.Context(), input)
	h.writeCycle(w, r, c, err)
}

// Approve handles POST /manuscripts/{id}/production/cycles/{cycleId}/approve.
func (h *ProductionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	input, ok := h.cycleInput(w, r, &req)
	if !ok {
		return
	}
	input.ExpectedUpdatedAt = req.UpdatedAt

	c, err := h.svc.ApproveCycle(r.Context(), input)
	h.writeCycle(w, r, c, err)
}

func (h *ProductionHandler) transitionInput(w http.ResponseWriter, r *http.Request) (production.TransitionInput, bool) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return production.TransitionInput{}, false
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return production.TransitionInput{}, false
	}
	return production.TransitionInput{ManuscriptID: msID, ExpectedUpdatedAt: req.UpdatedAt}, true
}

// cycleInput parses both path ids and decodes the body into req.
func (h *ProductionHandler) cycleInput(w http.ResponseWriter, r *http.Request, req any) (production.CycleInput, bool) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return production.CycleInput{}, false
	}
	cycleID, err := pathUUID(r, "cycleId")
	if err != nil {
		handleError(h.log, w, r, err)
		return production.CycleInput{}, false
	}
	if err := decodeJSON(r, req); err != nil {
		handleError(h.log, w, r, err)
		return production.CycleInput{}, false
	}
	return production.CycleInput{ManuscriptID: msID, CycleID: cycleID}, true
}

func (h *ProductionHandler) writeCycle(w http.ResponseWriter, r *http.Request, c *domain.ProductionCycle, err error) {
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycle(c))
}
