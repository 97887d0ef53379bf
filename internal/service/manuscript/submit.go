package manuscript

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// Submit creates a manuscript in the submitted status. The caller becomes the
// submitting author.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*domain.Manuscript, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	authors := make([]domain.Author, 0, len(input.Authors)+1)
	for _, a := range input.Authors {
		authors = append(authors, domain.Author{
			Name:   strings.TrimSpace(a.Name),
			Email:  strings.TrimSpace(a.Email),
			UserID: a.UserID,
		})
	}

	now := s.machine.Now()
	ms := &domain.Manuscript{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(input.Title),
		Abstract:    strings.TrimSpace(input.Abstract),
		SubmitterID: actor.ID,
		Authors:     authors,
		Status:      domain.StatusSubmitted,
		Precheck:    domain.PrecheckState{Status: domain.PrecheckPending},
		Invoice:     domain.InvoiceUnpaid,
		Version:     1,
		ReviewRound: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.manuscripts.Create(txCtx, ms); err != nil {
			return fmt.Errorf("create manuscript: %w", err)
		}
		if err := s.audit.Log(txCtx, domain.AuditRecord{
			UserID:       actor.ID,
			ManuscriptID: &ms.ID,
			EntityType:   domain.EntityTypeManuscript,
			EntityID:     &ms.ID,
			Action:       domain.AuditActionCreate,
			Changes: map[string]any{
				"title":  map[string]any{"new": ms.Title},
				"status": map[string]any{"new": string(ms.Status)},
			},
		}); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		intents := []domain.Intent{
			{Kind: domain.IntentNotifyEditor, ManuscriptID: ms.ID, Event: "manuscript_submitted"},
			{Kind: domain.IntentNotifyAuthor, ManuscriptID: ms.ID, RecipientID: &ms.SubmitterID, Event: "submission_received"},
		}
		if err := s.outbox.Enqueue(txCtx, intents, now); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "manuscript submitted",
		slog.String("manuscript_id", ms.ID.String()),
		slog.String("submitter_id", actor.ID.String()),
	)

	return ms, nil
}
