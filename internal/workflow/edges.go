package workflow

import "github.com/heartmarshall/journal-backend/internal/domain"

// Edge is one permitted (action, from, to) triple of the status machine.
type Edge struct {
	Action Action
	From   domain.ManuscriptStatus
	To     domain.ManuscriptStatus
}

var allStatuses = []domain.ManuscriptStatus{
	domain.StatusSubmitted, domain.StatusPreCheck, domain.StatusUnderReview,
	domain.StatusMajorRevision, domain.StatusMinorRevision, domain.StatusResubmitted,
	domain.StatusDecision, domain.StatusDecisionDone, domain.StatusApproved,
	domain.StatusLayout, domain.StatusEnglishEditing, domain.StatusProofreading,
	domain.StatusPublished, domain.StatusRejected,
}

// Statuses returns the full status vocabulary.
func Statuses() []domain.ManuscriptStatus {
	return append([]domain.ManuscriptStatus(nil), allStatuses...)
}

// Actions returns every action the machine understands.
func Actions() []Action {
	return []Action{
		ActionAssignIntake, ActionAssignAE, ActionBindOwner, ActionBindEditor,
		ActionQuickPrecheck, ActionTechnicalCheck, ActionAcademicCheck,
		ActionStartDecision, ActionFinalDecision, ActionResubmit, ActionRestartReview,
		ActionAdvanceProduction, ActionRevertProduction, ActionConfirmPayment,
		ActionWaiveInvoice, ActionAttachFinalFile,
	}
}

var edgeSet = buildEdges()

func buildEdges() map[Edge]struct{} {
	set := make(map[Edge]struct{})
	add := func(a Action, from domain.ManuscriptStatus, to ...domain.ManuscriptStatus) {
		for _, t := range to {
			set[Edge{Action: a, From: from, To: t}] = struct{}{}
		}
	}

	add(ActionAssignIntake, domain.StatusSubmitted, domain.StatusPreCheck)
	add(ActionAssignAE, domain.StatusPreCheck, domain.StatusPreCheck)
	add(ActionQuickPrecheck, domain.StatusPreCheck, domain.StatusUnderReview, domain.StatusMinorRevision)
	add(ActionTechnicalCheck, domain.StatusPreCheck, domain.StatusPreCheck, domain.StatusUnderReview, domain.StatusMinorRevision)
	add(ActionAcademicCheck, domain.StatusPreCheck, domain.StatusPreCheck, domain.StatusUnderReview, domain.StatusMinorRevision)
	add(ActionStartDecision, domain.StatusUnderReview, domain.StatusDecision)
	for _, from := range []domain.ManuscriptStatus{domain.StatusDecision, domain.StatusDecisionDone} {
		add(ActionFinalDecision, from,
			domain.StatusApproved, domain.StatusMajorRevision, domain.StatusMinorRevision, domain.StatusRejected)
	}
	add(ActionResubmit, domain.StatusMinorRevision, domain.StatusResubmitted)
	add(ActionResubmit, domain.StatusMajorRevision, domain.StatusResubmitted)
	add(ActionRestartReview, domain.StatusResubmitted, domain.StatusUnderReview)
	for from, to := range productionNext {
		add(ActionAdvanceProduction, from, to)
		add(ActionAttachFinalFile, from, from)
	}
	for from, to := range productionPrev {
		add(ActionRevertProduction, from, to)
	}
	for _, s := range allStatuses {
		if s.IsTerminal() {
			continue
		}
		add(ActionBindOwner, s, s)
		add(ActionBindEditor, s, s)
		add(ActionConfirmPayment, s, s)
		add(ActionWaiveInvoice, s, s)
	}
	return set
}

// IsEdge reports whether the status machine defines the given edge.
func IsEdge(a Action, from, to domain.ManuscriptStatus) bool {
	_, ok := edgeSet[Edge{Action: a, From: from, To: to}]
	return ok
}

// Edges returns every defined edge.
func Edges() []Edge {
	out := make([]Edge, 0, len(edgeSet))
	for e := range edgeSet {
		out = append(out, e)
	}
	return out
}

// CanFire reports whether some edge for the action leaves from.
func CanFire(a Action, from domain.ManuscriptStatus) bool {
	for e := range edgeSet {
		if e.Action == a && e.From == from {
			return true
		}
	}
	return false
}
