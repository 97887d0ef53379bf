package production

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// AdvanceResult is the advanced manuscript plus informational SLA counts of
// its internal tasks. The counts never block the transition.
type AdvanceResult struct {
	Manuscript domain.Manuscript
	SLA        domain.TaskSummary
}

// Advance moves the manuscript one step along
// approved -> layout -> english_editing -> proofreading -> published.
// Publishing requires every publish gate at once.
func (s *Service) Advance(ctx context.Context, input TransitionInput) (*AdvanceResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	ms, err := s.apply(ctx, input, workflow.Command{Action: workflow.ActionAdvanceProduction}, true)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &AdvanceResult{
		Manuscript: *ms,
		SLA:        workflow.Summarize(ms.ID, tasks, s.machine.Now()),
	}, nil
}

// Revert moves the manuscript one production step back.
func (s *Service) Revert(ctx context.Context, input TransitionInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input, workflow.Command{Action: workflow.ActionRevertProduction}, false)
}

// SettleInvoice confirms payment or waives the invoice.
func (s *Service) SettleInvoice(ctx context.Context, input PaymentInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	action := workflow.ActionConfirmPayment
	if input.Waive {
		action = workflow.ActionWaiveInvoice
	}
	return s.apply(ctx, input.TransitionInput, workflow.Command{Action: action}, false)
}

// ConfirmPayment marks the invoice paid.
func (s *Service) ConfirmPayment(ctx context.Context, input TransitionInput) (*domain.Manuscript, error) {
	return s.SettleInvoice(ctx, PaymentInput{TransitionInput: input})
}

// WaiveInvoice marks the invoice waived.
func (s *Service) WaiveInvoice(ctx context.Context, input TransitionInput) (*domain.Manuscript, error) {
	return s.SettleInvoice(ctx, PaymentInput{TransitionInput: input, Waive: true})
}

// AttachFinalFile records the final typeset file reference.
func (s *Service) AttachFinalFile(ctx context.Context, input FinalFileInput) (*domain.Manuscript, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, input.TransitionInput, workflow.Command{
		Action:  workflow.ActionAttachFinalFile,
		FileRef: input.FileRef,
	}, false)
}

// apply runs one manuscript transition in a transaction. withCycle loads the
// latest production cycle as a fact for the publish gates.
func (s *Service) apply(ctx context.Context, input TransitionInput, cmd workflow.Command, withCycle bool) (*domain.Manuscript, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var res workflow.Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, input.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		if withCycle {
			latest, err := s.latestCycle(txCtx, ms.ID)
			if err != nil {
				return err
			}
			cmd.Facts.LatestCycle = latest
		}

		res, err = s.machine.Apply(*ms, cmd, actor, input.ExpectedUpdatedAt)
		if err != nil {
			return err
		}

		if err := s.manuscripts.Update(txCtx, &res.Manuscript, input.ExpectedUpdatedAt); err != nil {
			return fmt.Errorf("update manuscript: %w", err)
		}
		if err := s.audit.Log(txCtx, manuscriptRecord(actor.ID, cmd, res)); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if err := s.outbox.Enqueue(txCtx, res.Effects, res.Manuscript.UpdatedAt); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "manuscript transitioned",
		slog.String("manuscript_id", input.ManuscriptID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("action", string(cmd.Action)),
		slog.String("from", res.From.String()),
		slog.String("to", res.To.String()),
	)

	return &res.Manuscript, nil
}
