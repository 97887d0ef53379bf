package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// CycleResult is the outcome of a production cycle transition.
type CycleResult struct {
	Cycle   domain.ProductionCycle
	From    domain.CycleStatus
	To      domain.CycleStatus
	Effects []domain.Intent
}

// ProofreadingInput is the author's answer to a proof.
type ProofreadingInput struct {
	Decision    domain.ProofreadingDecision
	Corrections []domain.CorrectionItem
}

// Validate checks the decision and, for corrections, every item.
func (i ProofreadingInput) Validate() error {
	var errs []domain.FieldError
	if !i.Decision.IsValid() {
		errs = append(errs, domain.FieldError{Field: "decision", Message: "must be confirm_clean or submit_corrections"})
	}
	if i.Decision == domain.ProofSubmitCorrections {
		if len(i.Corrections) == 0 {
			errs = append(errs, domain.FieldError{Field: "corrections", Message: "at least one correction required"})
		}
		for idx, c := range i.Corrections {
			if strings.TrimSpace(c.SuggestedText) == "" {
				errs = append(errs, domain.FieldError{
					Field:   fmt.Sprintf("corrections[%d].suggested_text", idx),
					Message: "required",
				})
			}
		}
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// CycleMachine governs production cycles. Only the cycle with the highest
// cycle number is active; older cycles are never modified.
type CycleMachine struct {
	clock       clockwork.Clock
	proofWindow time.Duration
}

// NewCycleMachine creates a CycleMachine. proofWindow is the time the author
// has to answer a proof.
func NewCycleMachine(clock clockwork.Clock, proofWindow time.Duration) *CycleMachine {
	return &CycleMachine{clock: clock, proofWindow: proofWindow}
}

func (c *CycleMachine) now() time.Time {
	return c.clock.Now().UTC().Truncate(time.Microsecond)
}

func requireProductionStage(ms *domain.Manuscript, action string) error {
	if !ms.Status.IsProduction() {
		return domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), action, "manuscript is not in production")
	}
	return nil
}

func requireActive(cycle *domain.ProductionCycle, latestNo int, action string) error {
	if cycle.CycleNo != latestNo {
		return domain.NewGuardError(domain.EntityTypeProductionCycle, string(cycle.Status), action,
			fmt.Sprintf("cycle %d is superseded by cycle %d", cycle.CycleNo, latestNo))
	}
	return nil
}

func cycleGuard(cycle *domain.ProductionCycle, action string, allowed ...domain.CycleStatus) error {
	for _, s := range allowed {
		if cycle.Status == s {
			return nil
		}
	}
	return domain.NewGuardError(domain.EntityTypeProductionCycle, string(cycle.Status), action, "")
}

// Open creates the next cycle for the manuscript. A new cycle may be opened
// only when none exists or the latest one is in layout revision.
func (c *CycleMachine) Open(ms domain.Manuscript, latest *domain.ProductionCycle, actor domain.Actor) (CycleResult, error) {
	if !actor.Can(domain.CapManageProduction) {
		return CycleResult{}, fmt.Errorf("%w: requires %s", domain.ErrForbidden, domain.CapManageProduction)
	}
	if err := requireProductionStage(&ms, "open_cycle"); err != nil {
		return CycleResult{}, err
	}

	no := 1
	if latest != nil {
		if latest.Status != domain.CycleInLayoutRevision {
			return CycleResult{}, domain.NewGuardError(domain.EntityTypeProductionCycle, string(latest.Status),
				"open_cycle", "latest cycle must be in layout revision")
		}
		no = latest.CycleNo + 1
	}

	now := c.now()
	cycle := domain.ProductionCycle{
		ID:           uuid.New(),
		ManuscriptID: ms.ID,
		CycleNo:      no,
		Status:       domain.CycleDraft,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return CycleResult{Cycle: cycle, To: domain.CycleDraft}, nil
}

// SendProof uploads a proof to the author and starts the proofreading window.
func (c *CycleMachine) SendProof(ms domain.Manuscript, cycle domain.ProductionCycle, latestNo int, fileRef string, actor domain.Actor) (CycleResult, error) {
	const action = "send_proof"
	if !actor.Can(domain.CapManageProduction) {
		return CycleResult{}, fmt.Errorf("%w: requires %s", domain.ErrForbidden, domain.CapManageProduction)
	}
	if err := requireProductionStage(&ms, action); err != nil {
		return CycleResult{}, err
	}
	if err := requireActive(&cycle, latestNo, action); err != nil {
		return CycleResult{}, err
	}
	if err := cycleGuard(&cycle, action, domain.CycleDraft, domain.CycleInLayoutRevision); err != nil {
		return CycleResult{}, err
	}
	ref := strings.TrimSpace(fileRef)
	if ref == "" {
		return CycleResult{}, domain.NewValidationError("file_ref", "required")
	}

	now := c.now()
	due := now.Add(c.proofWindow)
	next := cycle.Clone()
	next.Status = domain.CycleAwaitingAuthor
	next.ProofFileRef = &ref
	next.ProofSentAt = &now
	next.ProofDueAt = &due
	next.UpdatedAt = NextToken(cycle.UpdatedAt, now)

	return CycleResult{
		Cycle: next,
		From:  cycle.Status,
		To:    next.Status,
		Effects: []domain.Intent{
			newIntent(domain.IntentProofReady, &ms, &ms.SubmitterID, "proof_ready", map[string]any{
				"cycle_no":     next.CycleNo,
				"proof_due_at": due.Format(time.RFC3339),
			}),
		},
	}, nil
}

// SubmitProofreading records the author's answer to the active proof.
func (c *CycleMachine) SubmitProofreading(ms domain.Manuscript, cycle domain.ProductionCycle, latestNo int, input ProofreadingInput, actor domain.Actor) (CycleResult, error) {
	const action = "submit_proofreading"
	if !ms.HasAuthor(actor.ID, actor.Email) {
		return CycleResult{}, fmt.Errorf("%w: only an author may answer a proof", domain.ErrForbidden)
	}
	if err := requireProductionStage(&ms, action); err != nil {
		return CycleResult{}, err
	}
	if err := requireActive(&cycle, latestNo, action); err != nil {
		return CycleResult{}, err
	}
	if err := cycleGuard(&cycle, action, domain.CycleAwaitingAuthor); err != nil {
		return CycleResult{}, err
	}
	if err := input.Validate(); err != nil {
		return CycleResult{}, err
	}

	now := c.now()
	next := cycle.Clone()
	resp := &domain.ProofreadingResponse{
		Decision:    input.Decision,
		SubmittedBy: actor.ID,
		SubmittedAt: now,
	}
	event := "proof_confirmed"
	if input.Decision == domain.ProofConfirmClean {
		next.Status = domain.CycleAuthorConfirmed
	} else {
		next.Status = domain.CycleAuthorCorrectionsSubmitted
		resp.Corrections = append([]domain.CorrectionItem(nil), input.Corrections...)
		event = "proof_corrections_submitted"
	}
	next.LatestResponse = resp
	next.UpdatedAt = NextToken(cycle.UpdatedAt, now)

	return CycleResult{
		Cycle: next,
		From:  cycle.Status,
		To:    next.Status,
		Effects: []domain.Intent{
			newIntent(domain.IntentNotifyEditor, &ms, handlingEditor(&ms), event,
				map[string]any{"cycle_no": next.CycleNo, "corrections": len(resp.Corrections)}),
		},
	}, nil
}

// StartLayoutRevision moves a cycle with author corrections back to layout.
func (c *CycleMachine) StartLayoutRevision(ms domain.Manuscript, cycle domain.ProductionCycle, latestNo int, actor domain.Actor) (CycleResult, error) {
	const action = "start_layout_revision"
	if !actor.Can(domain.CapManageProduction) {
		return CycleResult{}, fmt.Errorf("%w: requires %s", domain.ErrForbidden, domain.CapManageProduction)
	}
	if err := requireProductionStage(&ms, action); err != nil {
		return CycleResult{}, err
	}
	if err := requireActive(&cycle, latestNo, action); err != nil {
		return CycleResult{}, err
	}
	if err := cycleGuard(&cycle, action, domain.CycleAuthorCorrectionsSubmitted); err != nil {
		return CycleResult{}, err
	}

	now := c.now()
	next := cycle.Clone()
	next.Status = domain.CycleInLayoutRevision
	next.UpdatedAt = NextToken(cycle.UpdatedAt, now)
	return CycleResult{Cycle: next, From: cycle.Status, To: next.Status}, nil
}

// Approve marks an author-confirmed cycle approved for publication. It is the
// only way into approved_for_publish.
func (c *CycleMachine) Approve(ms domain.Manuscript, cycle domain.ProductionCycle, latestNo int, actor domain.Actor) (CycleResult, error) {
	const action = "approve_cycle"
	if !actor.Can(domain.CapApproveProduction) {
		return CycleResult{}, fmt.Errorf("%w: requires %s", domain.ErrForbidden, domain.CapApproveProduction)
	}
	if err := requireProductionStage(&ms, action); err != nil {
		return CycleResult{}, err
	}
	if err := requireActive(&cycle, latestNo, action); err != nil {
		return CycleResult{}, err
	}
	if err := cycleGuard(&cycle, action, domain.CycleAuthorConfirmed); err != nil {
		return CycleResult{}, err
	}

	now := c.now()
	next := cycle.Clone()
	next.Status = domain.CycleApprovedForPublish
	next.ApprovedBy = &actor.ID
	next.ApprovedAt = &now
	next.UpdatedAt = NextToken(cycle.UpdatedAt, now)
	return CycleResult{
		Cycle: next,
		From:  cycle.Status,
		To:    next.Status,
		Effects: []domain.Intent{
			newIntent(domain.IntentNotifyAuthor, &ms, &ms.SubmitterID, "proof_approved",
				map[string]any{"cycle_no": next.CycleNo}),
		},
	}, nil
}
