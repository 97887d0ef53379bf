package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/service/task"
)

type taskService interface {
	List(ctx context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error)
	Create(ctx context.Context, input task.CreateInput) (*domain.InternalTask, error)
	Patch(ctx context.Context, input task.PatchInput) (*domain.InternalTask, error)
	Summaries(ctx context.Context, manuscriptIDs []uuid.UUID) ([]domain.TaskSummary, error)
}

// TaskHandler serves internal task endpoints.
type TaskHandler struct {
	svc taskService
	log *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(svc taskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, log: logger.With("handler", "task")}
}

type createTaskRequest struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	AssigneeID  *uuid.UUID          `json:"assignee_id"`
	Priority    domain.TaskPriority `json:"priority"`
	DueAt       *time.Time          `json:"due_at"`
}

type patchTaskRequest struct {
	UpdatedAt     time.Time            `json:"updated_at"`
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	AssigneeID    *uuid.UUID           `json:"assignee_id"`
	ClearAssignee bool                 `json:"clear_assignee"`
	Status        *domain.TaskStatus   `json:"status"`
	Priority      *domain.TaskPriority `json:"priority"`
	DueAt         *time.Time           `json:"due_at"`
	ClearDueAt    bool                 `json:"clear_due_at"`
}

// List handles GET /manuscripts/{id}/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	tasks, err := h.svc.List(r.Context(), msID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapSlice(tasks, toTask))
}

// Create handles POST /manuscripts/{id}/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	msID, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	t, err := h.svc.Create(r.Context(), task.CreateInput{
		ManuscriptID: msID,
		Title:        req.Title,
		Description:  req.Description,
		AssigneeID:   req.AssigneeID,
		Priority:     req.Priority,
		DueAt:        req.DueAt,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTask(t))
}

// Patch handles PATCH /tasks/{id}.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	var req patchTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(h.log, w, r, err)
		return
	}

	t, err := h.svc.Patch(r.Context(), task.PatchInput{
		TaskID:            id,
		ExpectedUpdatedAt: req.UpdatedAt,
		Patch: domain.TaskPatch{
			Title:         req.Title,
			Description:   req.Description,
			AssigneeID:    req.AssigneeID,
			ClearAssignee: req.ClearAssignee,
			Status:        req.Status,
			Priority:      req.Priority,
			DueAt:         req.DueAt,
			ClearDueAt:    req.ClearDueAt,
		},
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTask(t))
}

// Summaries handles GET /tasks/summary?manuscript_id=...&manuscript_id=...
func (h *TaskHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["manuscript_id"]
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			handleError(h.log, w, r, domain.NewValidationError("manuscript_id", "invalid uuid"))
			return
		}
		ids = append(ids, id)
	}

	out, err := h.svc.Summaries(r.Context(), ids)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}
