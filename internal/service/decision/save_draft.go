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

// SaveDraft creates or updates the draft for the manuscript's current review
// round. Saving identical content against the current token is a no-op that
// returns the stored draft.
func (s *Service) SaveDraft(ctx context.Context, input SaveDraftInput) (*domain.DecisionDraft, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !actor.Can(domain.CapDecide) {
		return nil, domain.ErrForbidden
	}

	attachments := normalizeAttachments(input.Attachments)

	var (
		saved   domain.DecisionDraft
		changed bool
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, input.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		if !draftEditable(input.Stage, ms.Status) {
			return domain.NewGuardError(domain.EntityTypeDecisionDraft, string(ms.Status), "save_draft",
				fmt.Sprintf("%s decision drafts are not editable in this status", input.Stage))
		}

		now := s.machine.Now()
		existing, err := s.drafts.Get(txCtx, ms.ID, input.Stage, ms.ReviewRound)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			saved = domain.DecisionDraft{
				ID:           uuid.New(),
				ManuscriptID: ms.ID,
				Stage:        input.Stage,
				Round:        ms.ReviewRound,
				Decision:     input.Decision,
				Content:      input.Content,
				Attachments:  attachments,
				UpdatedBy:    actor.ID,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.drafts.Create(txCtx, &saved); err != nil {
				return fmt.Errorf("create draft: %w", err)
			}
			changed = true
			return s.audit.Log(txCtx, draftRecord(actor.ID, &saved, domain.AuditActionCreate, map[string]any{
				"stage":    string(saved.Stage),
				"decision": map[string]any{"new": string(saved.Decision)},
			}))
		case err != nil:
			return fmt.Errorf("get draft: %w", err)
		}

		if existing.IsFinal {
			return domain.NewGuardError(domain.EntityTypeDecisionDraft, "submitted", "save_draft", "draft is locked")
		}
		if input.LastUpdatedAt == nil || !existing.UpdatedAt.Equal(*input.LastUpdatedAt) {
			ce := &domain.ConflictError{Entity: domain.EntityTypeDecisionDraft, ID: existing.ID, Actual: existing.UpdatedAt}
			if input.LastUpdatedAt != nil {
				ce.Expected = *input.LastUpdatedAt
			}
			return ce
		}
		if existing.SameContent(input.Decision, input.Content, attachments) {
			saved = *existing
			return nil
		}

		old := *existing
		saved = *existing
		saved.Decision = input.Decision
		saved.Content = input.Content
		saved.Attachments = attachments
		saved.UpdatedBy = actor.ID
		saved.UpdatedAt = workflow.NextToken(existing.UpdatedAt, now)
		if err := s.drafts.Update(txCtx, &saved, existing.UpdatedAt); err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		changed = true
		return s.audit.Log(txCtx, draftRecord(actor.ID, &saved, domain.AuditActionUpdate, map[string]any{
			"stage":    string(saved.Stage),
			"decision": map[string]any{"old": string(old.Decision), "new": string(saved.Decision)},
		}))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.InfoContext(ctx, "decision draft saved",
			slog.String("manuscript_id", saved.ManuscriptID.String()),
			slog.String("draft_id", saved.ID.String()),
			slog.String("stage", string(saved.Stage)),
			slog.Int("round", saved.Round),
		)
	}

	return &saved, nil
}

func normalizeAttachments(in []string) []string {
	out := make([]string, 0, len(in))
	return append(out, in...)
}
