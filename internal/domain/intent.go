package domain

import (
	"time"

	"github.com/google/uuid"
)

// IntentKind names a side effect that external collaborators carry out.
type IntentKind string

const (
	IntentNotifyAuthor          IntentKind = "notify_author"
	IntentNotifyEditor          IntentKind = "notify_editor"
	IntentNotifyAssignee        IntentKind = "notify_assignee"
	IntentNotifyReviewer        IntentKind = "notify_reviewer"
	IntentReleaseDecisionLetter IntentKind = "release_decision_letter"
	IntentRequestPayment        IntentKind = "request_payment"
	IntentProofReady            IntentKind = "proof_ready"
	IntentPublishArticle        IntentKind = "publish_article"
	IntentTaskOverdue           IntentKind = "task_overdue"
)

func (k IntentKind) String() string { return string(k) }

// Intent is a side effect returned by a transition. The engine never performs
// it; services persist intents to the outbox in the same transaction.
type Intent struct {
	Kind         IntentKind     `json:"kind"`
	ManuscriptID uuid.UUID      `json:"manuscript_id"`
	RecipientID  *uuid.UUID     `json:"recipient_id,omitempty"`
	Event        string         `json:"event"`
	Data         map[string]any `json:"data,omitempty"`
}

// OutboxStatus is the delivery status of an outbox message.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxMessage is a persisted intent awaiting delivery.
type OutboxMessage struct {
	ID          uuid.UUID
	Intent      Intent
	Status      OutboxStatus
	Attempts    int
	LastError   *string
	AvailableAt time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

// OutboxBacklog counts undelivered outbox messages.
type OutboxBacklog struct {
	Pending int
	Failed  int
}
