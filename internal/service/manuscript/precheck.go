package manuscript

import (
	"context"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
)

// QuickPrecheck records a single-step pre-check decision: approve moves the
// manuscript to under_review, revision sends it back to the author.
func (s *Service) QuickPrecheck(ctx context.Context, input PrecheckInput) (*domain.Manuscript, error) {
	return s.precheck(ctx, workflow.ActionQuickPrecheck, input)
}

// TechnicalCheck records the assistant editor's half of the two-stage
// pre-check.
func (s *Service) TechnicalCheck(ctx context.Context, input PrecheckInput) (*domain.Manuscript, error) {
	return s.precheck(ctx, workflow.ActionTechnicalCheck, input)
}

// AcademicCheck records the editor-in-chief's half of the two-stage
// pre-check.
func (s *Service) AcademicCheck(ctx context.Context, input PrecheckInput) (*domain.Manuscript, error) {
	return s.precheck(ctx, workflow.ActionAcademicCheck, input)
}

func (s *Service) precheck(ctx context.Context, action workflow.Action, input PrecheckInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input.ManuscriptID, input.ExpectedUpdatedAt, workflow.Command{
		Action:           action,
		PrecheckDecision: input.Decision,
		Comment:          input.Comment,
	})
}
