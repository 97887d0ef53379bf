package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/service/review"
)

type reviewService interface {
	EvaluateInvitePolicy(ctx context.Context, manuscriptID, reviewerID uuid.UUID) (*domain.InvitePolicySnapshot, error)
	InviteReviewer(ctx context.Context, input review.InviteInput) (*domain.ReviewAssignment, error)
	AcceptInvite(ctx context.Context, input review.RespondInput) (*domain.ReviewAssignment, error)
	DeclineInvite(ctx context.Context, input review.DeclineInput) (*domain.ReviewAssignment, error)
	SubmitReview(ctx context.Context, input review.SubmitReviewInput) (*domain.ReviewAssignment, error)
	ListAssignments(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error)
}

// ReviewHandler serves reviewer invitation and report endpoints.
type ReviewHandler struct {
	svc reviewService
	log *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(svc reviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, log: logger.With("handler", "review")}
}

type inviteRequest struct {
	ReviewerID uuid.UUID `json:"reviewer_id"`
	Override   bool      `json:"override"`
}

type declineRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
	Reason    string    `json:"reason"`
	Note      string    `json:"note"`
}

type reportRequest struct {
	UpdatedAt        time.Time             `json:"updated_at"`
	Recommendation   domain.Recommendation `json:"recommendation"`
	CommentsToAuthor string                `json:"comments_to_author"`
	CommentsToEditor string                `json:"comments_to_editor"`
	Attachments      []string              `json:"attachments"`
}

// Policy handles GET /manuscripts/{id}/reviewers/{reviewerId}/policy.
func (h *ReviewHandler) Policy(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	reviewerID, err := pathUUID(r, "reviewerId")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	snap, err := h.svc.EvaluateInvitePolicy(r.Context(), msID, reviewerID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Invite handles POST /manuscripts/{id}/reviewers.
func (h *ReviewHandler) Invite(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	a, err := h.svc.InviteReviewer(r.Context(), review.InviteInput{
		ManuscriptID: msID,
		ReviewerID:   req.ReviewerID,
		Override:     req.Override,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAssignment(a))
}

// List handles GET /manuscripts/{id}/assignments.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	list, err := h.svc.ListAssignments(r.Context(), msID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(list, toAssignment))
}

// Accept handles POST /assignments/{id}/accept.
func (h *ReviewHandler) Accept(w http.ResponseWriter, r *http.Request) {
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

	a, err := h.svc.AcceptInvite(r.Context(), review.RespondInput{AssignmentID: id, ExpectedUpdatedAt: req.UpdatedAt})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAssignment(a))
}

// Decline handles POST /assignments/{id}/decline.
func (h *ReviewHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req declineRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	a, err := h.svc.DeclineInvite(r.Context(), review.DeclineInput{
		RespondInput: review.RespondInput{AssignmentID: id, ExpectedUpdatedAt: req.UpdatedAt},
		Reason:       req.Reason,
		Note:         req.Note,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAssignment(a))
}

// Report handles POST /assignments/{id}/report.
func (h *ReviewHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	a, err := h.svc.SubmitReview(r.Context(), review.SubmitReviewInput{
		RespondInput:     review.RespondInput{AssignmentID: id, ExpectedUpdatedAt: req.UpdatedAt},
		Recommendation:   req.Recommendation,
		CommentsToAuthor: req.CommentsToAuthor,
		CommentsToEditor: req.CommentsToEditor,
		Attachments:      req.Attachments,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAssignment(a))
}
