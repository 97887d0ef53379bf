package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// Summaries returns open and overdue task counts per manuscript, in the
// order requested. Manuscripts without tasks get zero counts.
func (s *Service) Summaries(ctx context.Context, manuscriptIDs []uuid.UUID) ([]domain.TaskSummary, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !actor.Can(domain.CapViewEditorial) {
		return nil, domain.ErrForbidden
	}
	if len(manuscriptIDs) == 0 {
		return []domain.TaskSummary{}, nil
	}

	tasks, err := s.tasks.ListByManuscripts(ctx, manuscriptIDs)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	byID := make(map[uuid.UUID]domain.TaskSummary, len(manuscriptIDs))
	for _, sum := range workflow.SummarizeAll(tasks, s.now()) {
		byID[sum.ManuscriptID] = sum
	}
	out := make([]domain.TaskSummary, 0, len(manuscriptIDs))
	for _, id := range manuscriptIDs {
		sum, ok := byID[id]
		if !ok {
			sum = domain.TaskSummary{ManuscriptID: id}
		}
		out = append(out, sum)
	}
	return out, nil
}

// EscalateOverdue marks every newly overdue task as escalated and emits one
// task_overdue intent for each. A task escalates once per due date. It
// returns the number of tasks escalated.
func (s *Service) EscalateOverdue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.tasks.ListNeedingEscalation(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue tasks: %w", err)
	}

	escalated := 0
	for _, t := range due {
		if !workflow.NeedsEscalation(t, now) {
			continue
		}
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			next := t
			next.EscalatedAt = &now
			next.UpdatedAt = workflow.NextToken(t.UpdatedAt, now)
			if err := s.tasks.Update(txCtx, &next, t.UpdatedAt); err != nil {
				return err
			}
			if err := s.audit.Log(txCtx, taskRecord(uuid.Nil, &next, domain.AuditActionUpdate, map[string]any{
				"escalated_at": now,
			})); err != nil {
				return fmt.Errorf("audit log: %w", err)
			}
			intent := domain.Intent{
				Kind:         domain.IntentTaskOverdue,
				ManuscriptID: t.ManuscriptID,
				RecipientID:  t.AssigneeID,
				Event:        "task_overdue",
				Data: map[string]any{
					"task_id": t.ID.String(),
					"title":   t.Title,
					"due_at":  t.DueAt.UTC(),
				},
			}
			return s.outbox.Enqueue(txCtx, []domain.Intent{intent}, now)
		})
		if errors.Is(err, domain.ErrConflict) {
			s.log.DebugContext(ctx, "task changed during escalation", slog.String("task_id", t.ID.String()))
			continue
		}
		if err != nil {
			return escalated, fmt.Errorf("escalate task %s: %w", t.ID, err)
		}
		escalated++
	}

	if escalated > 0 {
		s.log.InfoContext(ctx, "overdue tasks escalated", slog.Int("count", escalated))
	}
	return escalated, nil
}
