package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/service/decision"
)

type decisionService interface {
	SaveDraft(ctx context.Context, input decision.SaveDraftInput) (*domain.DecisionDraft, error)
	SubmitFinal(ctx context.Context, input decision.SubmitFinalInput) (*decision.FinalResult, error)
	GetDraft(ctx context.Context, manuscriptID uuid.UUID, stage domain.DecisionStage) (*domain.DecisionDraft, error)
	DecisionLetters(ctx context.Context, manuscriptID uuid.UUID) ([]domain.DecisionLetter, error)
}

// DecisionHandler serves decision draft and final decision endpoints.
type DecisionHandler struct {
	svc decisionService
	log *slog.Logger
}

// NewDecisionHandler creates a DecisionHandler.
func NewDecisionHandler(svc decisionService, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{svc: svc, log: logger.With("handler", "decision")}
}

type saveDraftRequest struct {
	Stage         domain.DecisionStage `json:"stage"`
	Decision      domain.DecisionKind  `json:"decision"`
	Content       string               `json:"content"`
	Attachments   []string             `json:"attachments"`
	LastUpdatedAt *time.Time           `json:"last_updated_at"`
}

type submitFinalRequest struct {
	UpdatedAt      time.Time           `json:"updated_at"`
	Decision       domain.DecisionKind `json:"decision"`
	Content        string              `json:"content"`
	Attachments    []string            `json:"attachments"`
	DraftUpdatedAt *time.Time          `json:"draft_updated_at"`
}

type finalResponse struct {
	Manuscript manuscriptResponse `json:"manuscript"`
	Draft      draftResponse      `json:"draft"`
}

// SaveDraft handles PUT /manuscripts/{id}/decision/draft.
func (h *DecisionHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req saveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	d, err := h.svc.SaveDraft(r.Context(), decision.SaveDraftInput{
		ManuscriptID:  msID,
		Stage:         req.Stage,
		Decision:      req.Decision,
		Content:       req.Content,
		Attachments:   req.Attachments,
		LastUpdatedAt: req.LastUpdatedAt,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDraft(d))
}

// GetDraft handles GET /manuscripts/{id}/decision/draft?stage=.
func (h *DecisionHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	stage := domain.DecisionStage(r.URL.Query().Get("stage"))
	if stage == "" {
		stage = domain.StageFinal
	}
	if !stage.IsValid() {
		handleError(h.log, w, r, domain.NewValidationError("stage", "must be first or final"))
		return
	}

	d, err := h.svc.GetDraft(r.Context(), msID, stage)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDraft(d))
}

// SubmitFinal handles POST /manuscripts/{id}/decision/final.
func (h *DecisionHandler) SubmitFinal(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req submitFinalRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	res, err := h.svc.SubmitFinal(r.Context(), decision.SubmitFinalInput{
		ManuscriptID:      msID,
		ExpectedUpdatedAt: req.UpdatedAt,
		Decision:          req.Decision,
		Content:           req.Content,
		Attachments:       req.Attachments,
		DraftUpdatedAt:    req.DraftUpdatedAt,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, finalResponse{
		Manuscript: toManuscript(&res.Manuscript),
		Draft:      toDraft(&res.Draft),
	})
}

// Letters handles GET /manuscripts/{id}/decision/letters.
func (h *DecisionHandler) Letters(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	letters, err := h.svc.DecisionLetters(r.Context(), msID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, letters)
}
