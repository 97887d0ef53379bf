package decision

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

// FinalResult is the outcome of a final decision.
type FinalResult struct {
	Manuscript domain.Manuscript
	Draft      domain.DecisionDraft
}

// SubmitFinal locks the final draft of the current round, moves the
// manuscript to the decision's target status and releases the decision
// letter. It requires at least one completed review report in the round.
// From under_review the manuscript passes through decision in the same
// compare-and-swap.
func (s *Service) SubmitFinal(ctx context.Context, input SubmitFinalInput) (*FinalResult, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var (
		out  FinalResult
		from domain.ManuscriptStatus
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, input.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		from = ms.Status

		completed, err := s.reports.CountCompletedReports(txCtx, ms.ID, ms.ReviewRound)
		if err != nil {
			return fmt.Errorf("count reports: %w", err)
		}
		facts := workflow.Facts{CompletedReports: completed}

		current := *ms
		token := input.ExpectedUpdatedAt
		var effects []domain.Intent
		if current.Status == domain.StatusUnderReview {
			res, err := s.machine.Apply(current, workflow.Command{Action: workflow.ActionStartDecision, Facts: facts}, actor, token)
			if err != nil {
				return err
			}
			current, token = res.Manuscript, res.Manuscript.UpdatedAt
			effects = append(effects, res.Effects...)
		}
		res, err := s.machine.Apply(current, workflow.Command{
			Action:   workflow.ActionFinalDecision,
			Decision: input.Decision,
			Facts:    facts,
		}, actor, token)
		if err != nil {
			return err
		}
		effects = append(effects, res.Effects...)

		draft, err := s.lockFinalDraft(txCtx, ms, input, actor)
		if err != nil {
			return err
		}

		if err := s.manuscripts.Update(txCtx, &res.Manuscript, input.ExpectedUpdatedAt); err != nil {
			return fmt.Errorf("update manuscript: %w", err)
		}

		msID := ms.ID
		if err := s.audit.Log(txCtx, domain.AuditRecord{
			UserID:       actor.ID,
			ManuscriptID: &msID,
			EntityType:   domain.EntityTypeManuscript,
			EntityID:     &msID,
			Action:       domain.AuditActionTransition,
			Changes: map[string]any{
				"action":   string(workflow.ActionFinalDecision),
				"decision": string(input.Decision),
				"status":   map[string]any{"old": string(from), "new": string(res.To)},
			},
		}); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if err := s.audit.Log(txCtx, draftRecord(actor.ID, &draft, domain.AuditActionUpdate, map[string]any{
			"stage":    string(draft.Stage),
			"is_final": map[string]any{"old": false, "new": true},
		})); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if err := s.outbox.Enqueue(txCtx, effects, res.Manuscript.UpdatedAt); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}

		out = FinalResult{Manuscript: res.Manuscript, Draft: draft}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "final decision submitted",
		slog.String("manuscript_id", out.Manuscript.ID.String()),
		slog.String("decision", string(input.Decision)),
		slog.String("from", from.String()),
		slog.String("to", out.Manuscript.Status.String()),
		slog.Int("round", out.Draft.Round),
	)

	return &out, nil
}

// lockFinalDraft writes the submitted content into the round's final draft
// and marks it immutable.
func (s *Service) lockFinalDraft(ctx context.Context, ms *domain.Manuscript, input SubmitFinalInput, actor domain.Actor) (domain.DecisionDraft, error) {
	now := s.machine.Now()
	attachments := normalizeAttachments(input.Attachments)

	existing, err := s.drafts.Get(ctx, ms.ID, domain.StageFinal, ms.ReviewRound)
	if errors.Is(err, domain.ErrNotFound) {
		d := domain.DecisionDraft{
			ID:           uuid.New(),
			ManuscriptID: ms.ID,
			Stage:        domain.StageFinal,
			Round:        ms.ReviewRound,
			Decision:     input.Decision,
			Content:      input.Content,
			Attachments:  attachments,
			IsFinal:      true,
			SubmittedAt:  &now,
			SubmittedBy:  &actor.ID,
			UpdatedBy:    actor.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.drafts.Create(ctx, &d); err != nil {
			return domain.DecisionDraft{}, fmt.Errorf("create draft: %w", err)
		}
		return d, nil
	}
	if err != nil {
		return domain.DecisionDraft{}, fmt.Errorf("get draft: %w", err)
	}

	if existing.IsFinal {
		return domain.DecisionDraft{}, domain.NewGuardError(domain.EntityTypeDecisionDraft, "submitted", "submit_final", "draft is locked")
	}
	if input.DraftUpdatedAt != nil && !existing.UpdatedAt.Equal(*input.DraftUpdatedAt) {
		return domain.DecisionDraft{}, &domain.ConflictError{
			Entity:   domain.EntityTypeDecisionDraft,
			ID:       existing.ID,
			Expected: *input.DraftUpdatedAt,
			Actual:   existing.UpdatedAt,
		}
	}

	d := *existing
	d.Decision = input.Decision
	d.Content = input.Content
	d.Attachments = attachments
	d.IsFinal = true
	d.SubmittedAt = &now
	d.SubmittedBy = &actor.ID
	d.UpdatedBy = actor.ID
	d.UpdatedAt = workflow.NextToken(existing.UpdatedAt, now)
	if err := s.drafts.Update(ctx, &d, existing.UpdatedAt); err != nil {
		return domain.DecisionDraft{}, fmt.Errorf("update draft: %w", err)
	}
	return d, nil
}
