package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// EvaluateInvitePolicy computes a fresh policy snapshot for inviting the
// reviewer to the manuscript.
func (s *Service) EvaluateInvitePolicy(ctx context.Context, manuscriptID, reviewerID uuid.UUID) (*domain.InvitePolicySnapshot, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !actor.Can(domain.CapInviteReviewer) {
		return nil, domain.ErrForbidden
	}

	ms, err := s.manuscripts.GetByID(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	facts, err := s.inviteFacts(ctx, ms, reviewerID)
	if err != nil {
		return nil, err
	}

	snap := s.policy.Evaluate(facts, actor)
	return &snap, nil
}

// InviteReviewer creates a pending assignment for the reviewer in the
// manuscript's current review round. Conflicts of interest always block;
// an active cooldown blocks unless override is set by an actor allowed to
// override.
func (s *Service) InviteReviewer(ctx context.Context, input InviteInput) (*domain.ReviewAssignment, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !actor.Can(domain.CapInviteReviewer) {
		return nil, domain.ErrForbidden
	}

	var created domain.ReviewAssignment
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Locking the manuscript serializes invites per manuscript.
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, input.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		if ms.Status != domain.StatusUnderReview {
			return domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), "invite_reviewer",
				"manuscript is not under review")
		}

		facts, err := s.inviteFacts(txCtx, ms, input.ReviewerID)
		if err != nil {
			return err
		}
		snap := s.policy.Evaluate(facts, actor)
		if err := workflow.CheckInvite(snap, input.Override); err != nil {
			return err
		}
		for _, a := range facts.History {
			if a.Status.IsActive() {
				return fmt.Errorf("reviewer %s already holds assignment %s: %w", input.ReviewerID, a.ID, domain.ErrAlreadyExists)
			}
		}

		now := s.now()
		created = domain.ReviewAssignment{
			ID:           uuid.New(),
			ManuscriptID: ms.ID,
			ReviewerID:   input.ReviewerID,
			Status:       domain.AssignmentPending,
			RoundNumber:  ms.ReviewRound,
			DueAt:        now.Add(s.reviewDue),
			InvitedBy:    actor.ID,
			OverrideUsed: input.Override && snap.CooldownActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.assignments.Create(txCtx, &created); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}

		if err := s.audit.Log(txCtx, assignmentRecord(actor.ID, &created, domain.AuditActionCreate, map[string]any{
			"reviewer_id":   map[string]any{"new": created.ReviewerID.String()},
			"round_number":  map[string]any{"new": created.RoundNumber},
			"override_used": map[string]any{"new": created.OverrideUsed},
		})); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}

		reviewerID := created.ReviewerID
		intents := []domain.Intent{{
			Kind:         domain.IntentNotifyReviewer,
			ManuscriptID: ms.ID,
			RecipientID:  &reviewerID,
			Event:        "review_invited",
			Data:         map[string]any{"assignment_id": created.ID.String(), "due_at": created.DueAt.Format(time.RFC3339)},
		}}
		if err := s.outbox.Enqueue(txCtx, intents, now); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "reviewer invited",
		slog.String("manuscript_id", created.ManuscriptID.String()),
		slog.String("assignment_id", created.ID.String()),
		slog.String("reviewer_id", created.ReviewerID.String()),
		slog.Bool("override_used", created.OverrideUsed),
	)

	return &created, nil
}
