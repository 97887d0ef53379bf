package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// List returns the manuscript's tasks with IsOverdue derived at read time.
// Editorial staff see every task; anyone else sees only tasks assigned to them.
func (s *Service) List(ctx context.Context, manuscriptID uuid.UUID) ([]domain.InternalTask, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	ms, err := s.manuscripts.GetByID(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}

	tasks, err := s.tasks.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if !actor.Can(domain.CapViewEditorial) && !actor.IsInternalEditorFor(ms) {
		own := tasks[:0]
		for _, t := range tasks {
			if t.AssigneeID != nil && *t.AssigneeID == actor.ID {
				own = append(own, t)
			}
		}
		tasks = own
	}

	workflow.Annotate(tasks, s.now())
	return tasks, nil
}

// Create adds a task to a manuscript. Only internal editors for the
// manuscript may create tasks.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.InternalTask, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ms, err := s.manuscripts.GetByID(ctx, input.ManuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	if !actor.IsInternalEditorFor(ms) {
		return nil, domain.ErrForbidden
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	now := s.now()
	t := domain.InternalTask{
		ID:           uuid.New(),
		ManuscriptID: ms.ID,
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		AssigneeID:   input.AssigneeID,
		Status:       domain.TaskTodo,
		Priority:     priority,
		DueAt:        input.DueAt,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tasks.Create(txCtx, &t); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		if err := s.audit.Log(txCtx, taskRecord(actor.ID, &t, domain.AuditActionCreate, map[string]any{
			"title":    t.Title,
			"priority": string(t.Priority),
		})); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if t.AssigneeID != nil {
			if err := s.outbox.Enqueue(txCtx, []domain.Intent{assigneeIntent(&t, "task_assigned")}, now); err != nil {
				return fmt.Errorf("enqueue intents: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task created",
		slog.String("manuscript_id", t.ManuscriptID.String()),
		slog.String("task_id", t.ID.String()),
	)

	t.IsOverdue = workflow.IsOverdue(t, now)
	return &t, nil
}

// Patch updates a task. The assignee or an internal editor for the
// manuscript may patch it. Moving the due date re-arms escalation.
func (s *Service) Patch(ctx context.Context, input PatchInput) (*domain.InternalTask, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var next domain.InternalTask
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		cur, err := s.tasks.GetByID(txCtx, input.TaskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		ms, err := s.manuscripts.GetByID(txCtx, cur.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		if !workflow.CanEditTask(*cur, actor, ms) {
			return domain.ErrForbidden
		}
		if !cur.UpdatedAt.Equal(input.ExpectedUpdatedAt) {
			return &domain.ConflictError{
				Entity:   domain.EntityTypeTask,
				ID:       cur.ID,
				Expected: input.ExpectedUpdatedAt,
				Actual:   cur.UpdatedAt,
			}
		}

		now := s.now()
		var changes map[string]any
		next, changes = applyPatch(*cur, input.Patch)
		next.UpdatedAt = workflow.NextToken(cur.UpdatedAt, now)
		if err := s.tasks.Update(txCtx, &next, cur.UpdatedAt); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := s.audit.Log(txCtx, taskRecord(actor.ID, &next, domain.AuditActionUpdate, changes)); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if _, reassigned := changes["assignee_id"]; reassigned && next.AssigneeID != nil {
			if err := s.outbox.Enqueue(txCtx, []domain.Intent{assigneeIntent(&next, "task_assigned")}, now); err != nil {
				return fmt.Errorf("enqueue intents: %w", err)
			}
		}
		next.IsOverdue = workflow.IsOverdue(next, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task updated",
		slog.String("manuscript_id", next.ManuscriptID.String()),
		slog.String("task_id", next.ID.String()),
		slog.String("status", string(next.Status)),
	)

	return &next, nil
}

func applyPatch(t domain.InternalTask, p domain.TaskPatch) (domain.InternalTask, map[string]any) {
	changes := map[string]any{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		changes["title"] = map[string]any{"old": t.Title, "new": title}
		t.Title = title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
		changes["description"] = "updated"
	}
	switch {
	case p.ClearAssignee && t.AssigneeID != nil:
		changes["assignee_id"] = map[string]any{"old": t.AssigneeID.String(), "new": nil}
		t.AssigneeID = nil
	case p.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *p.AssigneeID):
		id := *p.AssigneeID
		changes["assignee_id"] = map[string]any{"new": id.String()}
		t.AssigneeID = &id
	}
	if p.Status != nil && *p.Status != t.Status {
		changes["status"] = map[string]any{"old": string(t.Status), "new": string(*p.Status)}
		t.Status = *p.Status
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		changes["priority"] = map[string]any{"old": string(t.Priority), "new": string(*p.Priority)}
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueAt && t.DueAt != nil:
		t.DueAt = nil
		t.EscalatedAt = nil
		changes["due_at"] = map[string]any{"new": nil}
	case p.DueAt != nil && (t.DueAt == nil || !t.DueAt.Equal(*p.DueAt)):
		due := *p.DueAt
		t.DueAt = &due
		t.EscalatedAt = nil
		changes["due_at"] = map[string]any{"new": due}
	}
	return t, changes
}
