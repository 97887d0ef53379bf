package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// assignmentChange mutates a loaded assignment and returns the intent event
// name announced to the handling editor.
type assignmentChange func(a *domain.ReviewAssignment, ms *domain.Manuscript, actor domain.Actor, now time.Time) (string, error)

// AcceptInvite records the reviewer's acceptance of a pending invitation.
func (s *Service) AcceptInvite(ctx context.Context, input RespondInput) (*domain.ReviewAssignment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.respond(ctx, "accept_invite", input, func(a *domain.ReviewAssignment, _ *domain.Manuscript, actor domain.Actor, now time.Time) (string, error) {
		if a.ReviewerID != actor.ID {
			return "", fmt.Errorf("%w: only the invited reviewer may accept", domain.ErrForbidden)
		}
		if a.Status != domain.AssignmentPending {
			return "", domain.NewGuardError(domain.EntityTypeAssignment, string(a.Status), "accept_invite", "")
		}
		a.Status = domain.AssignmentAccepted
		a.RespondedAt = &now
		return "review_accepted", nil
	})
}

// DeclineInvite declines an active invitation. The reviewer may decline their
// own invitation; editorial staff allowed to invite may withdraw it.
func (s *Service) DeclineInvite(ctx context.Context, input DeclineInput) (*domain.ReviewAssignment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.respond(ctx, "decline_invite", input.RespondInput, func(a *domain.ReviewAssignment, _ *domain.Manuscript, actor domain.Actor, now time.Time) (string, error) {
		if a.ReviewerID != actor.ID && !actor.Can(domain.CapInviteReviewer) {
			return "", fmt.Errorf("%w: only the invited reviewer may decline", domain.ErrForbidden)
		}
		if !a.Status.IsActive() {
			return "", domain.NewGuardError(domain.EntityTypeAssignment, string(a.Status), "decline_invite", "")
		}
		reason := strings.TrimSpace(input.Reason)
		a.Status = domain.AssignmentDeclined
		a.RespondedAt = &now
		a.DeclineReason = &reason
		if note := strings.TrimSpace(input.Note); note != "" {
			a.DeclineNote = &note
		}
		return "review_declined", nil
	})
}

// SubmitReview attaches the reviewer's report and completes the assignment.
// A pending invitation is accepted implicitly.
func (s *Service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*domain.ReviewAssignment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.respond(ctx, "submit_review", input.RespondInput, func(a *domain.ReviewAssignment, ms *domain.Manuscript, actor domain.Actor, now time.Time) (string, error) {
		if a.ReviewerID != actor.ID {
			return "", fmt.Errorf("%w: only the assigned reviewer may submit a report", domain.ErrForbidden)
		}
		if !a.Status.IsActive() {
			return "", domain.NewGuardError(domain.EntityTypeAssignment, string(a.Status), "submit_review", "")
		}
		if ms.Status != domain.StatusUnderReview && ms.Status != domain.StatusDecision {
			return "", domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), "submit_review",
				"manuscript is not under review")
		}
		if a.RoundNumber != ms.ReviewRound {
			return "", domain.NewGuardError(domain.EntityTypeAssignment, string(a.Status), "submit_review",
				fmt.Sprintf("assignment belongs to round %d, current round is %d", a.RoundNumber, ms.ReviewRound))
		}

		if a.RespondedAt == nil {
			a.RespondedAt = &now
		}
		a.Status = domain.AssignmentCompleted
		a.CompletedAt = &now
		a.Report = &domain.ReviewReport{
			Recommendation:   input.Recommendation,
			CommentsToAuthor: strings.TrimSpace(input.CommentsToAuthor),
			CommentsToEditor: strings.TrimSpace(input.CommentsToEditor),
			Attachments:      append([]string(nil), input.Attachments...),
		}
		return "review_submitted", nil
	})
}

func (s *Service) respond(ctx context.Context, action string, input RespondInput, change assignmentChange) (*domain.ReviewAssignment, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var (
		updated domain.ReviewAssignment
		from    domain.AssignmentStatus
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.assignments.GetByID(txCtx, input.AssignmentID)
		if err != nil {
			return fmt.Errorf("get assignment: %w", err)
		}
		if !a.UpdatedAt.Equal(input.ExpectedUpdatedAt) {
			return &domain.ConflictError{
				Entity:   domain.EntityTypeAssignment,
				ID:       a.ID,
				Expected: input.ExpectedUpdatedAt,
				Actual:   a.UpdatedAt,
			}
		}
		ms, err := s.manuscripts.GetByID(txCtx, a.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}

		now := s.now()
		from = a.Status
		updated = *a
		event, err := change(&updated, ms, actor, now)
		if err != nil {
			return err
		}
		updated.UpdatedAt = workflow.NextToken(a.UpdatedAt, now)

		if err := s.assignments.Update(txCtx, &updated, input.ExpectedUpdatedAt); err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}
		if err := s.audit.Log(txCtx, assignmentRecord(actor.ID, &updated, domain.AuditActionTransition, map[string]any{
			"action": action,
			"status": map[string]any{"old": string(from), "new": string(updated.Status)},
		})); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}

		intents := []domain.Intent{{
			Kind:         domain.IntentNotifyEditor,
			ManuscriptID: ms.ID,
			RecipientID:  handlingEditor(ms),
			Event:        event,
			Data:         map[string]any{"assignment_id": updated.ID.String(), "reviewer_id": updated.ReviewerID.String()},
		}}
		if err := s.outbox.Enqueue(txCtx, intents, now); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "assignment updated",
		slog.String("manuscript_id", updated.ManuscriptID.String()),
		slog.String("assignment_id", updated.ID.String()),
		slog.String("action", action),
		slog.String("from", from.String()),
		slog.String("to", updated.Status.String()),
	)

	return &updated, nil
}

// ListAssignments returns the manuscript's assignments. Editorial staff see
// all of them; a reviewer sees only their own.
func (s *Service) ListAssignments(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ReviewAssignment, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if _, err := s.manuscripts.GetByID(ctx, manuscriptID); err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	all, err := s.assignments.ListByManuscript(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if actor.Can(domain.CapViewEditorial) {
		return all, nil
	}

	own := make([]domain.ReviewAssignment, 0)
	for _, a := range all {
		if a.ReviewerID == actor.ID {
			own = append(own, a)
		}
	}
	if len(own) == 0 {
		return nil, domain.ErrForbidden
	}
	return own, nil
}
