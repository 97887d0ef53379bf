package decision

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// GetDraft returns the manuscript's draft of the given stage for the current
// review round. Drafts are editorial-only.
func (s *Service) GetDraft(ctx context.Context, manuscriptID uuid.UUID, stage domain.DecisionStage) (*domain.DecisionDraft, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !stage.IsValid() {
		return nil, domain.NewValidationError("stage", "must be first or final")
	}
	if !actor.Can(domain.CapViewEditorial) {
		return nil, domain.ErrForbidden
	}

	ms, err := s.manuscripts.GetByID(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	d, err := s.drafts.Get(ctx, ms.ID, stage, ms.ReviewRound)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return d, nil
}

// DecisionLetters returns the released final decisions, one per review
// round. Authors see nothing else of the decision process.
func (s *Service) DecisionLetters(ctx context.Context, manuscriptID uuid.UUID) ([]domain.DecisionLetter, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	ms, err := s.manuscripts.GetByID(ctx, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	if !actor.Can(domain.CapViewEditorial) && !ms.HasAuthor(actor.ID, actor.Email) {
		return nil, domain.ErrForbidden
	}

	finals, err := s.drafts.ListFinal(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list final drafts: %w", err)
	}
	letters := make([]domain.DecisionLetter, 0, len(finals))
	for _, d := range finals {
		if !d.IsFinal || d.SubmittedAt == nil {
			continue
		}
		letters = append(letters, domain.DecisionLetter{
			ManuscriptID: d.ManuscriptID,
			Round:        d.Round,
			Decision:     d.Decision,
			Content:      d.Content,
			Attachments:  d.Attachments,
			ReleasedAt:   *d.SubmittedAt,
		})
	}
	return letters, nil
}
