package manuscript

import (
	"context"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
)

// Resubmit is the author's answer to a revision request.
func (s *Service) Resubmit(ctx context.Context, input TransitionInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input.ManuscriptID, input.ExpectedUpdatedAt, workflow.Command{
		Action: workflow.ActionResubmit,
	})
}

// RestartReview opens the next review round for a resubmitted manuscript.
func (s *Service) RestartReview(ctx context.Context, input TransitionInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input.ManuscriptID, input.ExpectedUpdatedAt, workflow.Command{
		Action: workflow.ActionRestartReview,
	})
}
