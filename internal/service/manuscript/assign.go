package manuscript

import (
	"context"
	"fmt"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
)

// AssignAE assigns the assistant editor that runs the pre-check. On a
// freshly submitted manuscript this is the intake step into pre_check.
func (s *Service) AssignAE(ctx context.Context, input AssignInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ms, err := s.manuscripts.GetByID(ctx, input.ManuscriptID)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	action := workflow.ActionAssignAE
	if ms.Status == domain.StatusSubmitted {
		action = workflow.ActionAssignIntake
	}

	return s.apply(ctx, input.ManuscriptID, input.ExpectedUpdatedAt, workflow.Command{
		Action: action,
		UserID: &input.UserID,
	})
}

// BindOwner sets the internal administrative owner.
func (s *Service) BindOwner(ctx context.Context, input AssignInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input.ManuscriptID, input.ExpectedUpdatedAt, workflow.Command{
		Action: workflow.ActionBindOwner,
		UserID: &input.UserID,
	})
}

// BindEditor sets the handling editor.
func (s *Service) BindEditor(ctx context.Context, input AssignInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input.ManuscriptID, input.ExpectedUpdatedAt, workflow.Command{
		Action: workflow.ActionBindEditor,
		UserID: &input.UserID,
	})
}
