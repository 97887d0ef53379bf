package production

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// OpenCycle starts the next production cycle of a manuscript. The input
// carries the manuscript updated_at the caller last observed.
func (s *Service) OpenCycle(ctx context.Context, input TransitionInput) (*domain.ProductionCycle, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var res workflow.CycleResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, input.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		if !ms.UpdatedAt.Equal(input.ExpectedUpdatedAt) {
			return &domain.ConflictError{
				Entity:   domain.EntityTypeManuscript,
				ID:       ms.ID,
				Expected: input.ExpectedUpdatedAt,
				Actual:   ms.UpdatedAt,
			}
		}
		latest, err := s.latestCycle(txCtx, ms.ID)
		if err != nil {
			return err
		}

		res, err = s.cycleFSM.Open(*ms, latest, actor)
		if err != nil {
			return err
		}
		if err := s.cycles.Create(txCtx, &res.Cycle); err != nil {
			return fmt.Errorf("create cycle: %w", err)
		}
		if err := s.audit.Log(txCtx, cycleRecord(actor.ID, "open_cycle", res)); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "production cycle opened",
		slog.String("manuscript_id", input.ManuscriptID.String()),
		slog.String("cycle_id", res.Cycle.ID.String()),
		slog.Int("cycle_no", res.Cycle.CycleNo),
	)

	return &res.Cycle, nil
}

// SendProof sends the proof of the active cycle to the author.
func (s *Service) SendProof(ctx context.Context, input SendProofInput) (*domain.ProductionCycle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.step(ctx, input.CycleInput, "send_proof",
		func(ms domain.Manuscript, c domain.ProductionCycle, latestNo int, actor domain.Actor) (workflow.CycleResult, error) {
			return s.cycleFSM.SendProof(ms, c, latestNo, input.FileRef, actor)
		})
}

// SubmitProofreading records the author's confirmation or corrections.
func (s *Service) SubmitProofreading(ctx context.Context, input ProofreadingInput) (*domain.ProductionCycle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	answer := workflow.ProofreadingInput{Decision: input.Decision, Corrections: input.Corrections}
	if err := answer.Validate(); err != nil {
		return nil, err
	}
	return s.step(ctx, input.CycleInput, "submit_proofreading",
		func(ms domain.Manuscript, c domain.ProductionCycle, latestNo int, actor domain.Actor) (workflow.CycleResult, error) {
			return s.cycleFSM.SubmitProofreading(ms, c, latestNo, answer, actor)
		})
}

// StartLayoutRevision sends a cycle with author corrections back to layout.
func (s *Service) StartLayoutRevision(ctx context.Context, input CycleInput) (*domain.ProductionCycle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.step(ctx, input, "start_layout_revision", s.cycleFSM.StartLayoutRevision)
}

// ApproveCycle approves an author-confirmed cycle for publication.
func (s *Service) ApproveCycle(ctx context.Context, input CycleInput) (*domain.ProductionCycle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.step(ctx, input, "approve_cycle", s.cycleFSM.Approve)
}

// ListCycles returns the manuscript's cycles by cycle number. Authors see
// their own manuscripts' cycles.
func (s *Service) ListCycles(ctx context.Context, manuscriptID uuid.UUID) ([]domain.ProductionCycle, error) {
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
	cycles, err := s.cycles.ListByManuscript(ctx, ms.ID)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	return cycles, nil
}

type cycleStep func(ms domain.Manuscript, c domain.ProductionCycle, latestNo int, actor domain.Actor) (workflow.CycleResult, error)

// step runs one cycle transition under the manuscript row lock. The cycle
// must still carry the updated_at the caller observed.
func (s *Service) step(ctx context.Context, input CycleInput, action string, fn cycleStep) (*domain.ProductionCycle, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	var res workflow.CycleResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ms, err := s.manuscripts.GetByIDForUpdate(txCtx, input.ManuscriptID)
		if err != nil {
			return fmt.Errorf("get manuscript: %w", err)
		}
		cycle, err := s.cycles.GetByID(txCtx, input.CycleID)
		if err != nil {
			return fmt.Errorf("get cycle: %w", err)
		}
		if cycle.ManuscriptID != ms.ID {
			return fmt.Errorf("production_cycle %s: %w", cycle.ID, domain.ErrNotFound)
		}
		if !cycle.UpdatedAt.Equal(input.ExpectedUpdatedAt) {
			return &domain.ConflictError{
				Entity:   domain.EntityTypeProductionCycle,
				ID:       cycle.ID,
				Expected: input.ExpectedUpdatedAt,
				Actual:   cycle.UpdatedAt,
			}
		}
		latest, err := s.latestCycle(txCtx, ms.ID)
		if err != nil {
			return err
		}
		latestNo := cycle.CycleNo
		if latest != nil {
			latestNo = latest.CycleNo
		}

		res, err = fn(*ms, *cycle, latestNo, actor)
		if err != nil {
			return err
		}
		if err := s.cycles.Update(txCtx, &res.Cycle, cycle.UpdatedAt); err != nil {
			return fmt.Errorf("update cycle: %w", err)
		}
		if err := s.audit.Log(txCtx, cycleRecord(actor.ID, action, res)); err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		if err := s.outbox.Enqueue(txCtx, res.Effects, res.Cycle.UpdatedAt); err != nil {
			return fmt.Errorf("enqueue intents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "production cycle transitioned",
		slog.String("manuscript_id", input.ManuscriptID.String()),
		slog.String("cycle_id", res.Cycle.ID.String()),
		slog.Int("cycle_no", res.Cycle.CycleNo),
		slog.String("action", action),
		slog.String("from", res.From.String()),
		slog.String("to", res.To.String()),
	)

	return &res.Cycle, nil
}
