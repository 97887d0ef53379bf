// Package workflow is the pure editorial engine: the manuscript status
// machine, the production cycle machine, the reviewer invite policy and the
// task SLA rules. Nothing here performs I/O; side effects are returned as
// intents for the caller to persist and deliver.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// Action is a trigger of the manuscript status machine.
type Action string

const (
	ActionAssignIntake      Action = "assign_intake"
	ActionAssignAE          Action = "assign_ae"
	ActionBindOwner         Action = "bind_owner"
	ActionBindEditor        Action = "bind_editor"
	ActionQuickPrecheck     Action = "quick_precheck"
	ActionTechnicalCheck    Action = "technical_check"
	ActionAcademicCheck     Action = "academic_check"
	ActionStartDecision     Action = "start_decision"
	ActionFinalDecision     Action = "final_decision"
	ActionResubmit          Action = "resubmit"
	ActionRestartReview     Action = "restart_review"
	ActionAdvanceProduction Action = "advance_production"
	ActionRevertProduction  Action = "revert_production"
	ActionConfirmPayment    Action = "confirm_payment"
	ActionWaiveInvoice      Action = "waive_invoice"
	ActionAttachFinalFile   Action = "attach_final_file"
)

// Facts are externally loaded observations some guards depend on.
type Facts struct {
	// CompletedReports is the number of completed assignments with a report
	// in the current review round.
	CompletedReports int
	// LatestCycle is the active production cycle, nil when none exists.
	LatestCycle *domain.ProductionCycle
}

// Command is one requested transition.
type Command struct {
	Action           Action
	UserID           *uuid.UUID
	PrecheckDecision domain.PrecheckDecision
	Comment          string
	Decision         domain.DecisionKind
	FileRef          string
	Facts            Facts
}

// Result is the outcome of a successful transition.
type Result struct {
	Manuscript domain.Manuscript
	From       domain.ManuscriptStatus
	To         domain.ManuscriptStatus
	Effects    []domain.Intent
}

// Changed reports whether the status moved.
func (r Result) Changed() bool { return r.From != r.To }

// Machine is the manuscript status machine.
type Machine struct {
	clock clockwork.Clock
}

// NewMachine creates a Machine reading time from clock.
func NewMachine(clock clockwork.Clock) *Machine {
	return &Machine{clock: clock}
}

// Now returns the machine's current time at storage precision.
func (m *Machine) Now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Microsecond)
}

// Apply validates cmd against the manuscript and returns the next state.
// The input manuscript is never modified. A stale expectedUpdatedAt yields a
// *domain.ConflictError before any other check.
func (m *Machine) Apply(ms domain.Manuscript, cmd Command, actor domain.Actor, expectedUpdatedAt time.Time) (Result, error) {
	if !ms.UpdatedAt.Equal(expectedUpdatedAt) {
		return Result{}, &domain.ConflictError{
			Entity:   domain.EntityTypeManuscript,
			ID:       ms.ID,
			Expected: expectedUpdatedAt,
			Actual:   ms.UpdatedAt,
		}
	}

	r, ok := rules[cmd.Action]
	if !ok {
		return Result{}, domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), string(cmd.Action), "unknown action")
	}
	if !r.allowedFrom(ms.Status) {
		return Result{}, domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), string(cmd.Action), "")
	}
	if err := r.authorize(actor, &ms); err != nil {
		return Result{}, err
	}

	now := m.Now()
	next := ms.Clone()
	effects, err := r.apply(&next, cmd, actor, now)
	if err != nil {
		return Result{}, err
	}
	if !IsEdge(cmd.Action, ms.Status, next.Status) {
		return Result{}, domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), string(cmd.Action),
			fmt.Sprintf("no edge to %q", next.Status))
	}

	next.UpdatedAt = NextToken(ms.UpdatedAt, now)

	return Result{
		Manuscript: next,
		From:       ms.Status,
		To:         next.Status,
		Effects:    effects,
	}, nil
}

// NextToken returns a concurrency token strictly greater than prev.
func NextToken(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

type rule struct {
	from      []domain.ManuscriptStatus
	anyActive bool
	caps      []domain.Capability
	custom    func(actor domain.Actor, ms *domain.Manuscript) error
	apply     func(ms *domain.Manuscript, cmd Command, actor domain.Actor, now time.Time) ([]domain.Intent, error)
}

func (r rule) allowedFrom(s domain.ManuscriptStatus) bool {
	if r.anyActive {
		return !s.IsTerminal()
	}
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

// authorize passes when the actor holds any of the listed capabilities.
func (r rule) authorize(actor domain.Actor, ms *domain.Manuscript) error {
	if r.custom != nil {
		return r.custom(actor, ms)
	}
	for _, c := range r.caps {
		if actor.Can(c) {
			return nil
		}
	}
	return fmt.Errorf("%w: requires %s", domain.ErrForbidden, r.caps[0])
}

var productionNext = map[domain.ManuscriptStatus]domain.ManuscriptStatus{
	domain.StatusApproved:       domain.StatusLayout,
	domain.StatusLayout:         domain.StatusEnglishEditing,
	domain.StatusEnglishEditing: domain.StatusProofreading,
	domain.StatusProofreading:   domain.StatusPublished,
}

var productionPrev = map[domain.ManuscriptStatus]domain.ManuscriptStatus{
	domain.StatusLayout:         domain.StatusApproved,
	domain.StatusEnglishEditing: domain.StatusLayout,
	domain.StatusProofreading:   domain.StatusEnglishEditing,
}

var rules = map[Action]rule{
	ActionAssignIntake: {
		from:  []domain.ManuscriptStatus{domain.StatusSubmitted},
		caps:  []domain.Capability{domain.CapAssign},
		apply: applyAssignIntake,
	},
	ActionAssignAE: {
		from:  []domain.ManuscriptStatus{domain.StatusPreCheck},
		caps:  []domain.Capability{domain.CapAssign},
		apply: applyAssignAE,
	},
	ActionBindOwner: {
		anyActive: true,
		caps:      []domain.Capability{domain.CapAssign},
		apply:     applyBind(func(ms *domain.Manuscript) **uuid.UUID { return &ms.OwnerID }, "owner_bound"),
	},
	ActionBindEditor: {
		anyActive: true,
		caps:      []domain.Capability{domain.CapAssign},
		apply:     applyBind(func(ms *domain.Manuscript) **uuid.UUID { return &ms.EditorID }, "editor_bound"),
	},
	ActionQuickPrecheck: {
		from:  []domain.ManuscriptStatus{domain.StatusPreCheck},
		caps:  []domain.Capability{domain.CapPrecheck},
		apply: applyQuickPrecheck,
	},
	ActionTechnicalCheck: {
		from:  []domain.ManuscriptStatus{domain.StatusPreCheck},
		caps:  []domain.Capability{domain.CapTechnicalCheck},
		apply: applyStageCheck(true),
	},
	ActionAcademicCheck: {
		from:  []domain.ManuscriptStatus{domain.StatusPreCheck},
		caps:  []domain.Capability{domain.CapAcademicCheck},
		apply: applyStageCheck(false),
	},
	ActionStartDecision: {
		from:  []domain.ManuscriptStatus{domain.StatusUnderReview},
		caps:  []domain.Capability{domain.CapDecide},
		apply: applyStartDecision,
	},
	ActionFinalDecision: {
		from:  []domain.ManuscriptStatus{domain.StatusDecision, domain.StatusDecisionDone},
		caps:  []domain.Capability{domain.CapDecide},
		apply: applyFinalDecision,
	},
	ActionResubmit: {
		from:   []domain.ManuscriptStatus{domain.StatusMinorRevision, domain.StatusMajorRevision},
		custom: authorizeSubmitter,
		apply:  applyResubmit,
	},
	ActionRestartReview: {
		from:  []domain.ManuscriptStatus{domain.StatusResubmitted},
		caps:  []domain.Capability{domain.CapAssign, domain.CapDecide},
		apply: applyRestartReview,
	},
	ActionAdvanceProduction: {
		from: []domain.ManuscriptStatus{
			domain.StatusApproved, domain.StatusLayout, domain.StatusEnglishEditing, domain.StatusProofreading,
		},
		caps:  []domain.Capability{domain.CapManageProduction},
		apply: applyAdvance,
	},
	ActionRevertProduction: {
		from:  []domain.ManuscriptStatus{domain.StatusLayout, domain.StatusEnglishEditing, domain.StatusProofreading},
		caps:  []domain.Capability{domain.CapManageProduction},
		apply: applyRevert,
	},
	ActionConfirmPayment: {
		anyActive: true,
		caps:      []domain.Capability{domain.CapConfirmPayment},
		apply:     applySettleInvoice(domain.InvoicePaid),
	},
	ActionWaiveInvoice: {
		anyActive: true,
		caps:      []domain.Capability{domain.CapConfirmPayment},
		apply:     applySettleInvoice(domain.InvoiceWaived),
	},
	ActionAttachFinalFile: {
		from: []domain.ManuscriptStatus{
			domain.StatusApproved, domain.StatusLayout, domain.StatusEnglishEditing, domain.StatusProofreading,
		},
		caps:  []domain.Capability{domain.CapManageProduction},
		apply: applyAttachFinalFile,
	},
}

func authorizeSubmitter(actor domain.Actor, ms *domain.Manuscript) error {
	if actor.ID != ms.SubmitterID {
		return fmt.Errorf("%w: only the submitting author may resubmit", domain.ErrForbidden)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transition bodies
// ---------------------------------------------------------------------------

func requireUser(cmd Command, field string) (uuid.UUID, error) {
	if cmd.UserID == nil || *cmd.UserID == uuid.Nil {
		return uuid.Nil, domain.NewValidationError(field, "required")
	}
	return *cmd.UserID, nil
}

func applyAssignIntake(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	assignee, err := requireUser(cmd, "user_id")
	if err != nil {
		return nil, err
	}
	role := domain.RoleAssistantEditor
	ms.Status = domain.StatusPreCheck
	ms.Precheck = domain.PrecheckState{
		Status:          domain.PrecheckInProgress,
		CurrentRole:     &role,
		CurrentAssignee: &assignee,
	}
	return []domain.Intent{
		newIntent(domain.IntentNotifyAssignee, ms, &assignee, "precheck_assigned", nil),
	}, nil
}

func applyAssignAE(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	assignee, err := requireUser(cmd, "user_id")
	if err != nil {
		return nil, err
	}
	role := domain.RoleAssistantEditor
	ms.Precheck.CurrentRole = &role
	ms.Precheck.CurrentAssignee = &assignee
	if ms.Precheck.Status == domain.PrecheckPending || ms.Precheck.Status == "" {
		ms.Precheck.Status = domain.PrecheckInProgress
	}
	return []domain.Intent{
		newIntent(domain.IntentNotifyAssignee, ms, &assignee, "precheck_assigned", nil),
	}, nil
}

func applyBind(field func(*domain.Manuscript) **uuid.UUID, event string) func(*domain.Manuscript, Command, domain.Actor, time.Time) ([]domain.Intent, error) {
	return func(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
		userID, err := requireUser(cmd, "user_id")
		if err != nil {
			return nil, err
		}
		*field(ms) = &userID
		return []domain.Intent{
			newIntent(domain.IntentNotifyAssignee, ms, &userID, event, nil),
		}, nil
	}
}

func validatePrecheckDecision(cmd Command) error {
	if !cmd.PrecheckDecision.IsValid() {
		return domain.NewValidationError("decision", "must be approve or revision")
	}
	if cmd.PrecheckDecision == domain.PrecheckDecisionRevision && strings.TrimSpace(cmd.Comment) == "" {
		return domain.NewValidationError("comment", "required when requesting revision")
	}
	return nil
}

func requestPrecheckRevision(ms *domain.Manuscript, comment string) []domain.Intent {
	c := strings.TrimSpace(comment)
	ms.Status = domain.StatusMinorRevision
	ms.Precheck.Status = domain.PrecheckRevisionRequested
	ms.Precheck.Comment = &c
	ms.Precheck.CurrentRole = nil
	ms.Precheck.CurrentAssignee = nil
	return []domain.Intent{
		newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "precheck_revision_requested",
			map[string]any{"comment": c}),
	}
}

func passPrecheck(ms *domain.Manuscript) []domain.Intent {
	ms.Status = domain.StatusUnderReview
	ms.Precheck.Status = domain.PrecheckApproved
	ms.Precheck.CurrentRole = nil
	ms.Precheck.CurrentAssignee = nil
	return []domain.Intent{
		newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "precheck_passed", nil),
		newIntent(domain.IntentNotifyEditor, ms, handlingEditor(ms), "review_ready", nil),
	}
}

func applyQuickPrecheck(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	if err := validatePrecheckDecision(cmd); err != nil {
		return nil, err
	}
	if cmd.PrecheckDecision == domain.PrecheckDecisionRevision {
		return requestPrecheckRevision(ms, cmd.Comment), nil
	}
	return passPrecheck(ms), nil
}

// applyStageCheck records one half of the two-stage pre-check. The
// pre_check -> under_review edge fires only once both halves have passed.
func applyStageCheck(technical bool) func(*domain.Manuscript, Command, domain.Actor, time.Time) ([]domain.Intent, error) {
	return func(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
		if err := validatePrecheckDecision(cmd); err != nil {
			return nil, err
		}
		if cmd.PrecheckDecision == domain.PrecheckDecisionRevision {
			return requestPrecheckRevision(ms, cmd.Comment), nil
		}

		if technical {
			ms.Precheck.TechnicalPassed = true
		} else {
			ms.Precheck.AcademicPassed = true
		}
		if ms.Precheck.TechnicalPassed && ms.Precheck.AcademicPassed {
			return passPrecheck(ms), nil
		}

		ms.Precheck.Status = domain.PrecheckInProgress
		nextRole := domain.RoleEditorInChief
		if !ms.Precheck.TechnicalPassed {
			nextRole = domain.RoleAssistantEditor
		}
		ms.Precheck.CurrentRole = &nextRole
		ms.Precheck.CurrentAssignee = nil
		return []domain.Intent{
			newIntent(domain.IntentNotifyEditor, ms, handlingEditor(ms), "precheck_stage_passed",
				map[string]any{"next_role": string(nextRole)}),
		}, nil
	}
}

func requireReports(ms *domain.Manuscript, cmd Command) error {
	if cmd.Facts.CompletedReports < 1 {
		return &domain.InsufficientReportsError{ManuscriptID: ms.ID, Completed: cmd.Facts.CompletedReports}
	}
	return nil
}

func applyStartDecision(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	if err := requireReports(ms, cmd); err != nil {
		return nil, err
	}
	ms.Status = domain.StatusDecision
	return nil, nil
}

func applyFinalDecision(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	if !cmd.Decision.IsValid() {
		return nil, domain.NewValidationError("decision", "must be one of accept, minor, major, reject")
	}
	if err := requireReports(ms, cmd); err != nil {
		return nil, err
	}
	ms.Status = cmd.Decision.TargetStatus()

	effects := []domain.Intent{
		newIntent(domain.IntentReleaseDecisionLetter, ms, &ms.SubmitterID, "decision_released",
			map[string]any{"decision": string(cmd.Decision), "round": ms.ReviewRound}),
		newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "decision_"+string(cmd.Decision), nil),
	}
	if cmd.Decision == domain.DecisionAccept && !ms.Invoice.IsSettled() {
		effects = append(effects, newIntent(domain.IntentRequestPayment, ms, &ms.SubmitterID, "invoice_issued", nil))
	}
	return effects, nil
}

func applyResubmit(ms *domain.Manuscript, _ Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	ms.Status = domain.StatusResubmitted
	ms.Version++
	return []domain.Intent{
		newIntent(domain.IntentNotifyEditor, ms, handlingEditor(ms), "manuscript_resubmitted",
			map[string]any{"version": ms.Version}),
	}, nil
}

func applyRestartReview(ms *domain.Manuscript, _ Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	ms.Status = domain.StatusUnderReview
	ms.ReviewRound++
	return []domain.Intent{
		newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "review_restarted",
			map[string]any{"round": ms.ReviewRound}),
	}, nil
}

func applyAdvance(ms *domain.Manuscript, cmd Command, _ domain.Actor, now time.Time) ([]domain.Intent, error) {
	to := productionNext[ms.Status]
	if to == domain.StatusPublished {
		if err := PublishGates(ms, cmd.Facts.LatestCycle); err != nil {
			return nil, err
		}
		ms.Status = to
		ms.PublishedAt = &now
		return []domain.Intent{
			newIntent(domain.IntentPublishArticle, ms, nil, "article_published", nil),
			newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "article_published", nil),
		}, nil
	}
	ms.Status = to
	return []domain.Intent{
		newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "production_advanced",
			map[string]any{"stage": string(to)}),
	}, nil
}

func applyRevert(ms *domain.Manuscript, _ Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	ms.Status = productionPrev[ms.Status]
	return nil, nil
}

func applySettleInvoice(to domain.InvoiceStatus) func(*domain.Manuscript, Command, domain.Actor, time.Time) ([]domain.Intent, error) {
	return func(ms *domain.Manuscript, _ Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
		if ms.Invoice.IsSettled() {
			return nil, domain.NewGuardError(domain.EntityTypeManuscript, string(ms.Status), "settle_invoice",
				"invoice already "+string(ms.Invoice))
		}
		ms.Invoice = to
		return []domain.Intent{
			newIntent(domain.IntentNotifyAuthor, ms, &ms.SubmitterID, "invoice_"+string(to), nil),
		}, nil
	}
}

func applyAttachFinalFile(ms *domain.Manuscript, cmd Command, _ domain.Actor, _ time.Time) ([]domain.Intent, error) {
	ref := strings.TrimSpace(cmd.FileRef)
	if ref == "" {
		return nil, domain.NewValidationError("file_ref", "required")
	}
	ms.FinalFileRef = &ref
	return nil, nil
}

// PublishGates evaluates every precondition of proofreading -> published and
// reports all unsatisfied gates together.
func PublishGates(ms *domain.Manuscript, latest *domain.ProductionCycle) error {
	var gates []domain.GateCode
	if !ms.Invoice.IsSettled() {
		gates = append(gates, domain.GatePaymentRequired)
	}
	if ms.FinalFileRef == nil || strings.TrimSpace(*ms.FinalFileRef) == "" {
		gates = append(gates, domain.GateFinalFileMissing)
	}
	if latest == nil || latest.Status != domain.CycleApprovedForPublish {
		gates = append(gates, domain.GateProofNotApproved)
	}
	if len(gates) > 0 {
		return &domain.GateError{Gates: gates}
	}
	return nil
}

// handlingEditor returns the editor, falling back to the owner. Nil routes the
// notification to the editorial office.
func handlingEditor(ms *domain.Manuscript) *uuid.UUID {
	if ms.EditorID != nil {
		return ms.EditorID
	}
	return ms.OwnerID
}

func newIntent(kind domain.IntentKind, ms *domain.Manuscript, recipient *uuid.UUID, event string, data map[string]any) domain.Intent {
	var r *uuid.UUID
	if recipient != nil {
		v := *recipient
		r = &v
	}
	return domain.Intent{
		Kind:         kind,
		ManuscriptID: ms.ID,
		RecipientID:  r,
		Event:        event,
		Data:         data,
	}
}
