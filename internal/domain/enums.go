package domain

// ManuscriptStatus is the canonical lifecycle status of a manuscript.
// External collaborators key off these exact names.
type ManuscriptStatus string

const (
	StatusSubmitted      ManuscriptStatus = "submitted"
	StatusPreCheck       ManuscriptStatus = "pre_check"
	StatusUnderReview    ManuscriptStatus = "under_review"
	StatusMajorRevision  ManuscriptStatus = "major_revision"
	StatusMinorRevision  ManuscriptStatus = "minor_revision"
	StatusResubmitted    ManuscriptStatus = "resubmitted"
	StatusDecision       ManuscriptStatus = "decision"
	StatusDecisionDone   ManuscriptStatus = "decision_done"
	StatusApproved       ManuscriptStatus = "approved"
	StatusLayout         ManuscriptStatus = "layout"
	StatusEnglishEditing ManuscriptStatus = "english_editing"
	StatusProofreading   ManuscriptStatus = "proofreading"
	StatusPublished      ManuscriptStatus = "published"
	StatusRejected       ManuscriptStatus = "rejected"
)

func (s ManuscriptStatus) String() string { return string(s) }

func (s ManuscriptStatus) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusPreCheck, StatusUnderReview, StatusMajorRevision,
		StatusMinorRevision, StatusResubmitted, StatusDecision, StatusDecisionDone,
		StatusApproved, StatusLayout, StatusEnglishEditing, StatusProofreading,
		StatusPublished, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status.
func (s ManuscriptStatus) IsTerminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// IsProduction reports whether the status belongs to the post-acceptance
// production macro-state.
func (s ManuscriptStatus) IsProduction() bool {
	switch s {
	case StatusApproved, StatusLayout, StatusEnglishEditing, StatusProofreading:
		return true
	}
	return false
}

// PrecheckStatus is the sub-state of the pre-check stage.
type PrecheckStatus string

const (
	PrecheckPending           PrecheckStatus = "pending"
	PrecheckInProgress        PrecheckStatus = "in_progress"
	PrecheckApproved          PrecheckStatus = "approved"
	PrecheckRevisionRequested PrecheckStatus = "revision_requested"
)

func (s PrecheckStatus) String() string { return string(s) }

// PrecheckDecision is the outcome chosen by an editor during pre-check.
type PrecheckDecision string

const (
	PrecheckDecisionApprove  PrecheckDecision = "approve"
	PrecheckDecisionRevision PrecheckDecision = "revision"
)

func (d PrecheckDecision) IsValid() bool {
	return d == PrecheckDecisionApprove || d == PrecheckDecisionRevision
}

// InvoiceStatus is the payment status of the article processing charge.
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceWaived InvoiceStatus = "waived"
)

func (s InvoiceStatus) String() string { return string(s) }

// IsSettled reports whether the invoice no longer blocks publication.
func (s InvoiceStatus) IsSettled() bool {
	return s == InvoicePaid || s == InvoiceWaived
}

// AssignmentStatus is the status of a review assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
)

func (s AssignmentStatus) String() string { return string(s) }

// IsActive reports whether the assignment still occupies the reviewer.
func (s AssignmentStatus) IsActive() bool {
	return s == AssignmentPending || s == AssignmentAccepted
}

// Recommendation is a reviewer's recommendation in a submitted report.
type Recommendation string

const (
	RecommendAccept Recommendation = "accept"
	RecommendMinor  Recommendation = "minor"
	RecommendMajor  Recommendation = "major"
	RecommendReject Recommendation = "reject"
)

func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendAccept, RecommendMinor, RecommendMajor, RecommendReject:
		return true
	}
	return false
}

// DecisionStage distinguishes the advisory first decision from the final one.
type DecisionStage string

const (
	StageFirst DecisionStage = "first"
	StageFinal DecisionStage = "final"
)

func (s DecisionStage) IsValid() bool {
	return s == StageFirst || s == StageFinal
}

// DecisionKind is the editorial decision recorded in a draft.
type DecisionKind string

const (
	DecisionAccept DecisionKind = "accept"
	DecisionMinor  DecisionKind = "minor"
	DecisionMajor  DecisionKind = "major"
	DecisionReject DecisionKind = "reject"
)

func (d DecisionKind) IsValid() bool {
	switch d {
	case DecisionAccept, DecisionMinor, DecisionMajor, DecisionReject:
		return true
	}
	return false
}

// TargetStatus returns the manuscript status a submitted final decision leads to.
func (d DecisionKind) TargetStatus() ManuscriptStatus {
	switch d {
	case DecisionAccept:
		return StatusApproved
	case DecisionMinor:
		return StatusMinorRevision
	case DecisionMajor:
		return StatusMajorRevision
	default:
		return StatusRejected
	}
}

// CycleStatus is the status of a production (proofreading) cycle.
type CycleStatus string

const (
	CycleDraft                      CycleStatus = "draft"
	CycleAwaitingAuthor             CycleStatus = "awaiting_author"
	CycleAuthorCorrectionsSubmitted CycleStatus = "author_corrections_submitted"
	CycleInLayoutRevision           CycleStatus = "in_layout_revision"
	CycleAuthorConfirmed            CycleStatus = "author_confirmed"
	CycleApprovedForPublish         CycleStatus = "approved_for_publish"
)

func (s CycleStatus) String() string { return string(s) }

// ProofreadingDecision is the author's answer to a proof.
type ProofreadingDecision string

const (
	ProofConfirmClean      ProofreadingDecision = "confirm_clean"
	ProofSubmitCorrections ProofreadingDecision = "submit_corrections"
)

func (d ProofreadingDecision) IsValid() bool {
	return d == ProofConfirmClean || d == ProofSubmitCorrections
}

// TaskStatus is the status of an internal editorial task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) IsValid() bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskDone
}

// TaskPriority orders internal tasks in queues.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// EntityType identifies the kind of domain entity (used in audit logs).
type EntityType string

const (
	EntityTypeManuscript      EntityType = "MANUSCRIPT"
	EntityTypeAssignment      EntityType = "REVIEW_ASSIGNMENT"
	EntityTypeDecisionDraft   EntityType = "DECISION_DRAFT"
	EntityTypeProductionCycle EntityType = "PRODUCTION_CYCLE"
	EntityTypeTask            EntityType = "INTERNAL_TASK"
	EntityTypeUser            EntityType = "USER"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeManuscript, EntityTypeAssignment, EntityTypeDecisionDraft,
		EntityTypeProductionCycle, EntityTypeTask, EntityTypeUser:
		return true
	}
	return false
}

// AuditAction represents the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionTransition AuditAction = "TRANSITION"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionTransition:
		return true
	}
	return false
}
