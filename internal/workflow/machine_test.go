package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestMachine() (*Machine, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(t0.Add(time.Hour))
	return NewMachine(clock), clock
}

func manuscriptIn(status domain.ManuscriptStatus) domain.Manuscript {
	return domain.Manuscript{
		ID:          uuid.New(),
		Title:       "On Lattices",
		SubmitterID: uuid.New(),
		Authors:     []domain.Author{{Name: "Ada", Email: "ada@uni.edu"}},
		Status:      status,
		Invoice:     domain.InvoiceUnpaid,
		Version:     1,
		ReviewRound: 1,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func actorWith(roles ...domain.Role) domain.Actor {
	return domain.NewActor(uuid.New(), "", roles)
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

// fullCommand builds a command for the action with every parameter filled, so
// that any rejection comes from the status guard rather than validation.
func fullCommand(a Action) Command {
	return Command{
		Action:           a,
		UserID:           ptrUUID(uuid.New()),
		PrecheckDecision: domain.PrecheckDecisionApprove,
		Decision:         domain.DecisionAccept,
		FileRef:          "files/final.pdf",
		Facts:            Facts{CompletedReports: 1},
	}
}

func TestApply_IllegalEdgesYieldGuardErrorAndLeaveStateUnchanged(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()

	for _, action := range Actions() {
		for _, status := range Statuses() {
			if CanFire(action, status) {
				continue
			}
			ms := manuscriptIn(status)
			before := ms.Clone()
			actor := domain.NewActor(ms.SubmitterID, "", []domain.Role{domain.RoleAdmin})

			_, err := m.Apply(ms, fullCommand(action), actor, ms.UpdatedAt)

			var ge *domain.GuardError
			require.ErrorAs(t, err, &ge, "action %s from %s", action, status)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.Equal(t, before, ms, "state must be unchanged for %s from %s", action, status)
		}
	}
}

func TestApply_SuccessfulTransitionsFollowEdges(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()

	for _, action := range Actions() {
		for _, status := range Statuses() {
			if !CanFire(action, status) {
				continue
			}
			ms := manuscriptIn(status)
			if status == domain.StatusProofreading {
				ref := "files/final.pdf"
				ms.FinalFileRef = &ref
				ms.Invoice = domain.InvoicePaid
			}
			cmd := fullCommand(action)
			cmd.Facts.LatestCycle = &domain.ProductionCycle{Status: domain.CycleApprovedForPublish}
			if action == ActionConfirmPayment || action == ActionWaiveInvoice {
				ms.Invoice = domain.InvoiceUnpaid
			}
			actor := domain.NewActor(ms.SubmitterID, "", []domain.Role{domain.RoleAdmin})

			res, err := m.Apply(ms, cmd, actor, ms.UpdatedAt)
			require.NoError(t, err, "action %s from %s", action, status)
			assert.True(t, IsEdge(action, res.From, res.To), "%s: %s -> %s", action, res.From, res.To)
			assert.True(t, res.Manuscript.UpdatedAt.After(ms.UpdatedAt))
		}
	}
}

func TestApply_StaleTokenIsConflict(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusPreCheck)

	_, err := m.Apply(ms, Command{
		Action:           ActionQuickPrecheck,
		PrecheckDecision: domain.PrecheckDecisionApprove,
	}, actorWith(domain.RoleManagingEditor), t0.Add(-time.Second))

	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ms.ID, ce.ID)
	assert.True(t, ce.Actual.Equal(t0))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestApply_ConflictCheckedBeforeGuard(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusPublished)

	_, err := m.Apply(ms, fullCommand(ActionAdvanceProduction), actorWith(domain.RoleAdmin), t0.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestApply_TokenStrictlyIncreasesEvenWhenClockLags(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClockAt(t0)
	m := NewMachine(clock)
	ms := manuscriptIn(domain.StatusPreCheck)

	res, err := m.Apply(ms, Command{
		Action:           ActionQuickPrecheck,
		PrecheckDecision: domain.PrecheckDecisionApprove,
	}, actorWith(domain.RoleEditorInChief), ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Microsecond), res.Manuscript.UpdatedAt)
}

func TestApply_MissingCapabilityIsForbidden(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusUnderReview)

	_, err := m.Apply(ms, Command{Action: ActionStartDecision, Facts: Facts{CompletedReports: 2}},
		actorWith(domain.RoleAssistantEditor), ms.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// ---------------------------------------------------------------------------
// Pre-check
// ---------------------------------------------------------------------------

func TestQuickPrecheck_RevisionRequiresComment(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()

	for _, comment := range []string{"", "   ", "\n\t"} {
		ms := manuscriptIn(domain.StatusPreCheck)
		_, err := m.Apply(ms, Command{
			Action:           ActionQuickPrecheck,
			PrecheckDecision: domain.PrecheckDecisionRevision,
			Comment:          comment,
		}, actorWith(domain.RoleAssistantEditor), ms.UpdatedAt)

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, "comment %q", comment)
		assert.Equal(t, "comment", ve.Errors[0].Field)
	}
}

func TestQuickPrecheck_RevisionWithComment(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusPreCheck)

	res, err := m.Apply(ms, Command{
		Action:           ActionQuickPrecheck,
		PrecheckDecision: domain.PrecheckDecisionRevision,
		Comment:          "  Please fix the figure captions. ",
	}, actorWith(domain.RoleAssistantEditor), ms.UpdatedAt)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusMinorRevision, res.To)
	assert.Equal(t, domain.PrecheckRevisionRequested, res.Manuscript.Precheck.Status)
	require.NotNil(t, res.Manuscript.Precheck.Comment)
	assert.Equal(t, "Please fix the figure captions.", *res.Manuscript.Precheck.Comment)
	require.Len(t, res.Effects, 1)
	assert.Equal(t, domain.IntentNotifyAuthor, res.Effects[0].Kind)
}

func TestPrecheckRevision_ClearsSubState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action Action
		actor  domain.Actor
	}{
		{"quick", ActionQuickPrecheck, actorWith(domain.RoleAssistantEditor)},
		{"technical", ActionTechnicalCheck, actorWith(domain.RoleAssistantEditor)},
		{"academic", ActionAcademicCheck, actorWith(domain.RoleEditorInChief)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMachine()
			ms := manuscriptIn(domain.StatusPreCheck)
			role, assignee := domain.RoleAssistantEditor, uuid.New()
			ms.Precheck = domain.PrecheckState{
				Status:          domain.PrecheckInProgress,
				CurrentRole:     &role,
				CurrentAssignee: &assignee,
			}

			res, err := m.Apply(ms, Command{
				Action:           tt.action,
				PrecheckDecision: domain.PrecheckDecisionRevision,
				Comment:          "Missing data availability statement.",
			}, tt.actor, ms.UpdatedAt)

			require.NoError(t, err)
			assert.Equal(t, domain.StatusMinorRevision, res.To)
			assert.Nil(t, res.Manuscript.Precheck.CurrentRole, "sub-state only exists in pre_check")
			assert.Nil(t, res.Manuscript.Precheck.CurrentAssignee)
			require.NotNil(t, ms.Precheck.CurrentRole, "input manuscript is not mutated")
		})
	}
}

func TestQuickPrecheck_Approve(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusPreCheck)

	res, err := m.Apply(ms, Command{
		Action:           ActionQuickPrecheck,
		PrecheckDecision: domain.PrecheckDecisionApprove,
	}, actorWith(domain.RoleAssistantEditor), ms.UpdatedAt)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, res.To)
	assert.Equal(t, domain.PrecheckApproved, res.Manuscript.Precheck.Status)
}

func TestTwoStagePrecheck_JoinsInEitherOrder(t *testing.T) {
	t.Parallel()

	orders := [][]Action{
		{ActionTechnicalCheck, ActionAcademicCheck},
		{ActionAcademicCheck, ActionTechnicalCheck},
	}
	actors := map[Action]domain.Actor{
		ActionTechnicalCheck: actorWith(domain.RoleAssistantEditor),
		ActionAcademicCheck:  actorWith(domain.RoleEditorInChief),
	}

	for _, order := range orders {
		m, _ := newTestMachine()
		ms := manuscriptIn(domain.StatusPreCheck)

		first, err := m.Apply(ms, Command{Action: order[0], PrecheckDecision: domain.PrecheckDecisionApprove},
			actors[order[0]], ms.UpdatedAt)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPreCheck, first.To, "one pass must not open review")
		require.NotNil(t, first.Manuscript.Precheck.CurrentRole)

		second, err := m.Apply(first.Manuscript, Command{Action: order[1], PrecheckDecision: domain.PrecheckDecisionApprove},
			actors[order[1]], first.Manuscript.UpdatedAt)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnderReview, second.To)
		assert.True(t, second.Manuscript.Precheck.TechnicalPassed)
		assert.True(t, second.Manuscript.Precheck.AcademicPassed)
	}
}

func TestTwoStagePrecheck_HandsOffToOtherRole(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusPreCheck)

	res, err := m.Apply(ms, Command{Action: ActionTechnicalCheck, PrecheckDecision: domain.PrecheckDecisionApprove},
		actorWith(domain.RoleAssistantEditor), ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditorInChief, *res.Manuscript.Precheck.CurrentRole)
}

func TestTwoStagePrecheck_RoleCapabilities(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusPreCheck)

	_, err := m.Apply(ms, Command{Action: ActionAcademicCheck, PrecheckDecision: domain.PrecheckDecisionApprove},
		actorWith(domain.RoleAssistantEditor), ms.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = m.Apply(ms, Command{Action: ActionTechnicalCheck, PrecheckDecision: domain.PrecheckDecisionApprove},
		actorWith(domain.RoleEditorInChief), ms.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAssignIntake_SetsSubState(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusSubmitted)
	ae := uuid.New()

	res, err := m.Apply(ms, Command{Action: ActionAssignIntake, UserID: &ae},
		actorWith(domain.RoleManagingEditor), ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreCheck, res.To)
	assert.Equal(t, ae, *res.Manuscript.Precheck.CurrentAssignee)
	assert.Equal(t, domain.RoleAssistantEditor, *res.Manuscript.Precheck.CurrentRole)

	_, err = m.Apply(ms, Command{Action: ActionAssignIntake}, actorWith(domain.RoleManagingEditor), ms.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBindOwnerAndEditor_AreIndependent(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusUnderReview)
	owner, editor := uuid.New(), uuid.New()
	me := actorWith(domain.RoleManagingEditor)

	r1, err := m.Apply(ms, Command{Action: ActionBindOwner, UserID: &owner}, me, ms.UpdatedAt)
	require.NoError(t, err)
	r2, err := m.Apply(r1.Manuscript, Command{Action: ActionBindEditor, UserID: &editor}, me, r1.Manuscript.UpdatedAt)
	require.NoError(t, err)

	assert.Equal(t, owner, *r2.Manuscript.OwnerID)
	assert.Equal(t, editor, *r2.Manuscript.EditorID)
	assert.Equal(t, domain.StatusUnderReview, r2.To)
}

// ---------------------------------------------------------------------------
// Decision
// ---------------------------------------------------------------------------

func TestFinalDecision_RequiresCompletedReport(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusDecision)

	_, err := m.Apply(ms, Command{Action: ActionFinalDecision, Decision: domain.DecisionAccept},
		actorWith(domain.RoleEditorInChief), ms.UpdatedAt)

	var ie *domain.InsufficientReportsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Completed)
}

func TestFinalDecision_Outcomes(t *testing.T) {
	t.Parallel()

	for _, kind := range []domain.DecisionKind{domain.DecisionAccept, domain.DecisionMinor, domain.DecisionMajor, domain.DecisionReject} {
		m, _ := newTestMachine()
		ms := manuscriptIn(domain.StatusDecision)

		res, err := m.Apply(ms, Command{
			Action:   ActionFinalDecision,
			Decision: kind,
			Facts:    Facts{CompletedReports: 1},
		}, actorWith(domain.RoleEditorInChief), ms.UpdatedAt)
		require.NoError(t, err)
		assert.Equal(t, kind.TargetStatus(), res.To)

		var released bool
		for _, e := range res.Effects {
			if e.Kind == domain.IntentReleaseDecisionLetter {
				released = true
				assert.Equal(t, ms.SubmitterID, *e.RecipientID)
			}
		}
		assert.True(t, released, "final decision must release the letter")
	}
}

func TestFinalDecision_AcceptedFromDecisionDone(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusDecisionDone)

	res, err := m.Apply(ms, Command{Action: ActionFinalDecision, Decision: domain.DecisionReject, Facts: Facts{CompletedReports: 3}},
		actorWith(domain.RoleManagingEditor), ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.To)
}

func TestNoEdgeLeadsIntoDecisionDone(t *testing.T) {
	t.Parallel()
	for _, e := range Edges() {
		assert.NotEqual(t, domain.StatusDecisionDone, e.To, "%+v", e)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	t.Parallel()
	for _, e := range Edges() {
		assert.False(t, e.From.IsTerminal(), "%+v", e)
	}
}

// ---------------------------------------------------------------------------
// Revision loop
// ---------------------------------------------------------------------------

func TestResubmit_OnlyBySubmitter(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusMajorRevision)

	_, err := m.Apply(ms, Command{Action: ActionResubmit}, actorWith(domain.RoleAdmin), ms.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	author := domain.NewActor(ms.SubmitterID, "ada@uni.edu", []domain.Role{domain.RoleAuthor})
	res, err := m.Apply(ms, Command{Action: ActionResubmit}, author, ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResubmitted, res.To)
	assert.Equal(t, 2, res.Manuscript.Version)

	again, err := m.Apply(res.Manuscript, Command{Action: ActionRestartReview}, actorWith(domain.RoleManagingEditor), res.Manuscript.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, again.To)
	assert.Equal(t, 2, again.Manuscript.ReviewRound)
}

// ---------------------------------------------------------------------------
// Production
// ---------------------------------------------------------------------------

func proofreadingManuscript(paid, file bool) domain.Manuscript {
	ms := manuscriptIn(domain.StatusProofreading)
	if paid {
		ms.Invoice = domain.InvoicePaid
	}
	if file {
		ref := "files/final.pdf"
		ms.FinalFileRef = &ref
	}
	return ms
}

func TestAdvance_PublishGates(t *testing.T) {
	t.Parallel()

	approved := &domain.ProductionCycle{Status: domain.CycleApprovedForPublish}
	tests := []struct {
		name  string
		paid  bool
		file  bool
		cycle *domain.ProductionCycle
		want  []domain.GateCode
	}{
		{"unpaid with file", false, true, approved, []domain.GateCode{domain.GatePaymentRequired}},
		{"paid without file", true, false, approved, []domain.GateCode{domain.GateFinalFileMissing}},
		{"proof not approved", true, true, &domain.ProductionCycle{Status: domain.CycleAuthorConfirmed}, []domain.GateCode{domain.GateProofNotApproved}},
		{"no cycle", true, true, nil, []domain.GateCode{domain.GateProofNotApproved}},
		{"everything missing", false, false, nil, []domain.GateCode{
			domain.GatePaymentRequired, domain.GateFinalFileMissing, domain.GateProofNotApproved,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMachine()
			ms := proofreadingManuscript(tt.paid, tt.file)
			before := ms.Clone()

			_, err := m.Apply(ms, Command{Action: ActionAdvanceProduction, Facts: Facts{LatestCycle: tt.cycle}},
				actorWith(domain.RoleProductionEditor), ms.UpdatedAt)

			var ge *domain.GateError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.want, ge.Gates)
			assert.Equal(t, before, ms)
		})
	}
}

func TestAdvance_WaivedInvoiceSatisfiesPaymentGate(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := proofreadingManuscript(false, true)
	ms.Invoice = domain.InvoiceWaived

	res, err := m.Apply(ms, Command{
		Action: ActionAdvanceProduction,
		Facts:  Facts{LatestCycle: &domain.ProductionCycle{Status: domain.CycleApprovedForPublish}},
	}, actorWith(domain.RoleProductionEditor), ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, res.To)
	require.NotNil(t, res.Manuscript.PublishedAt)
	assert.Equal(t, domain.IntentPublishArticle, res.Effects[0].Kind)
}

func TestAdvance_ForwardChainIsStrictlyOrdered(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusApproved)
	pe := actorWith(domain.RoleProductionEditor)

	want := []domain.ManuscriptStatus{domain.StatusLayout, domain.StatusEnglishEditing, domain.StatusProofreading}
	for _, w := range want {
		res, err := m.Apply(ms, Command{Action: ActionAdvanceProduction}, pe, ms.UpdatedAt)
		require.NoError(t, err)
		assert.Equal(t, w, res.To)
		ms = res.Manuscript
	}
}

func TestRevert_SingleStepProductionOnly(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	pe := actorWith(domain.RoleProductionEditor)

	tests := []struct {
		from domain.ManuscriptStatus
		to   domain.ManuscriptStatus
	}{
		{domain.StatusLayout, domain.StatusApproved},
		{domain.StatusEnglishEditing, domain.StatusLayout},
		{domain.StatusProofreading, domain.StatusEnglishEditing},
	}
	for _, tt := range tests {
		ms := manuscriptIn(tt.from)
		res, err := m.Apply(ms, Command{Action: ActionRevertProduction}, pe, ms.UpdatedAt)
		require.NoError(t, err)
		assert.Equal(t, tt.to, res.To)
	}

	for _, from := range []domain.ManuscriptStatus{domain.StatusApproved, domain.StatusUnderReview, domain.StatusDecision} {
		ms := manuscriptIn(from)
		_, err := m.Apply(ms, Command{Action: ActionRevertProduction}, pe, ms.UpdatedAt)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "revert from %s: %v", from, err)
	}
}

func TestSettleInvoice_Twice(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusLayout)
	me := actorWith(domain.RoleManagingEditor)

	res, err := m.Apply(ms, Command{Action: ActionConfirmPayment}, me, ms.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, res.Manuscript.Invoice)

	_, err = m.Apply(res.Manuscript, Command{Action: ActionWaiveInvoice}, me, res.Manuscript.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAttachFinalFile_RequiresRef(t *testing.T) {
	t.Parallel()
	m, _ := newTestMachine()
	ms := manuscriptIn(domain.StatusProofreading)

	_, err := m.Apply(ms, Command{Action: ActionAttachFinalFile, FileRef: "  "}, actorWith(domain.RoleProductionEditor), ms.UpdatedAt)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
