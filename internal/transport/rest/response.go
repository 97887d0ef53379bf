package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

type manuscriptResponse struct {
	ID           uuid.UUID        `json:"id"`
	Title        string           `json:"title"`
	Abstract     string           `json:"abstract,omitempty"`
	SubmitterID  uuid.UUID        `json:"submitter_id"`
	Authors      []domain.Author  `json:"authors"`
	Status       string           `json:"status"`
	Precheck     *precheckPayload `json:"precheck,omitempty"`
	OwnerID      *uuid.UUID       `json:"owner_id,omitempty"`
	EditorID     *uuid.UUID       `json:"editor_id,omitempty"`
	Invoice      string           `json:"invoice_status"`
	FinalFileRef *string          `json:"final_file_ref,omitempty"`
	Version      int              `json:"version"`
	ReviewRound  int              `json:"review_round"`
	PublishedAt  *time.Time       `json:"published_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type precheckPayload struct {
	Status          string     `json:"status"`
	CurrentRole     *string    `json:"current_role,omitempty"`
	CurrentAssignee *uuid.UUID `json:"current_assignee,omitempty"`
	TechnicalPassed bool       `json:"technical_passed"`
	AcademicPassed  bool       `json:"academic_passed"`
	Comment         *string    `json:"comment,omitempty"`
}

func toManuscript(m *domain.Manuscript) manuscriptResponse {
	out := manuscriptResponse{
		ID:           m.ID,
		Title:        m.Title,
		Abstract:     m.Abstract,
		SubmitterID:  m.SubmitterID,
		Authors:      m.Authors,
		Status:       string(m.Status),
		OwnerID:      m.OwnerID,
		EditorID:     m.EditorID,
		Invoice:      string(m.Invoice),
		FinalFileRef: m.FinalFileRef,
		Version:      m.Version,
		ReviewRound:  m.ReviewRound,
		PublishedAt:  m.PublishedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if out.Authors == nil {
		out.Authors = []domain.Author{}
	}
	if m.Status == domain.StatusPreCheck {
		p := &precheckPayload{
			Status:          string(m.Precheck.Status),
			CurrentAssignee: m.Precheck.CurrentAssignee,
			TechnicalPassed: m.Precheck.TechnicalPassed,
			AcademicPassed:  m.Precheck.AcademicPassed,
			Comment:         m.Precheck.Comment,
		}
		if m.Precheck.CurrentRole != nil {
			role := string(*m.Precheck.CurrentRole)
			p.CurrentRole = &role
		}
		out.Precheck = p
	}
	return out
}

type auditResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	EntityType string         `json:"entity_type"`
	EntityID   *uuid.UUID     `json:"entity_id,omitempty"`
	Action     string         `json:"action"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toAudit(records []domain.AuditRecord) []auditResponse {
	out := make([]auditResponse, len(records))
	for i, r := range records {
		out[i] = auditResponse{
			ID:         r.ID,
			UserID:     r.UserID,
			EntityType: string(r.EntityType),
			EntityID:   r.EntityID,
			Action:     string(r.Action),
			Changes:    r.Changes,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out
}

type assignmentResponse struct {
	ID            uuid.UUID            `json:"id"`
	ManuscriptID  uuid.UUID            `json:"manuscript_id"`
	ReviewerID    uuid.UUID            `json:"reviewer_id"`
	Status        string               `json:"status"`
	RoundNumber   int                  `json:"round_number"`
	DueAt         time.Time            `json:"due_at"`
	InvitedBy     uuid.UUID            `json:"invited_by"`
	OverrideUsed  bool                 `json:"override_used"`
	RespondedAt   *time.Time           `json:"responded_at,omitempty"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
	DeclineReason *string              `json:"decline_reason,omitempty"`
	DeclineNote   *string              `json:"decline_note,omitempty"`
	Report        *domain.ReviewReport `json:"report,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toAssignment(a *domain.ReviewAssignment) assignmentResponse {
	return assignmentResponse{
		ID:            a.ID,
		ManuscriptID:  a.ManuscriptID,
		ReviewerID:    a.ReviewerID,
		Status:        string(a.Status),
		RoundNumber:   a.RoundNumber,
		DueAt:         a.DueAt,
		InvitedBy:     a.InvitedBy,
		OverrideUsed:  a.OverrideUsed,
		RespondedAt:   a.RespondedAt,
		CompletedAt:   a.CompletedAt,
		DeclineReason: a.DeclineReason,
		DeclineNote:   a.DeclineNote,
		Report:        a.Report,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type draftResponse struct {
	ID           uuid.UUID  `json:"id"`
	ManuscriptID uuid.UUID  `json:"manuscript_id"`
	Stage        string     `json:"stage"`
	Round        int        `json:"round"`
	Decision     string     `json:"decision"`
	Content      string     `json:"content"`
	Attachments  []string   `json:"attachments"`
	IsFinal      bool       `json:"is_final"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy  *uuid.UUID `json:"submitted_by,omitempty"`
	UpdatedBy    uuid.UUID  `json:"updated_by"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toDraft(d *domain.DecisionDraft) draftResponse {
	out := draftResponse{
		ID:           d.ID,
		ManuscriptID: d.ManuscriptID,
		Stage:        string(d.Stage),
		Round:        d.Round,
		Decision:     string(d.Decision),
		Content:      d.Content,
		Attachments:  d.Attachments,
		IsFinal:      d.IsFinal,
		SubmittedAt:  d.SubmittedAt,
		SubmittedBy:  d.SubmittedBy,
		UpdatedBy:    d.UpdatedBy,
		UpdatedAt:    d.UpdatedAt,
	}
	if out.Attachments == nil {
		out.Attachments = []string{}
	}
	return out
}

type cycleResponse struct {
	ID             uuid.UUID                    `json:"id"`
	ManuscriptID   uuid.UUID                    `json:"manuscript_id"`
	CycleNo        int                          `json:"cycle_no"`
	Status         string                       `json:"status"`
	ProofFileRef   *string                      `json:"proof_file_ref,omitempty"`
	ProofSentAt    *time.Time                   `json:"proof_sent_at,omitempty"`
	ProofDueAt     *time.Time                   `json:"proof_due_at,omitempty"`
	LatestResponse *domain.ProofreadingResponse `json:"latest_response,omitempty"`
	ApprovedBy     *uuid.UUID                   `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time                   `json:"approved_at,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func toCycle(c *domain.ProductionCycle) cycleResponse {
	return cycleResponse{
		ID:             c.ID,
		ManuscriptID:   c.ManuscriptID,
		CycleNo:        c.CycleNo,
		Status:         string(c.Status),
		ProofFileRef:   c.ProofFileRef,
		ProofSentAt:    c.ProofSentAt,
		ProofDueAt:     c.ProofDueAt,
		LatestResponse: c.LatestResponse,
		ApprovedBy:     c.ApprovedBy,
		ApprovedAt:     c.ApprovedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type taskResponse struct {
	ID           uuid.UUID  `json:"id"`
	ManuscriptID uuid.UUID  `json:"manuscript_id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	AssigneeID   *uuid.UUID `json:"assignee_id,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	IsOverdue    bool       `json:"is_overdue"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toTask(t *domain.InternalTask) taskResponse {
	return taskResponse{
		ID:           t.ID,
		ManuscriptID: t.ManuscriptID,
		Title:        t.Title,
		Description:  t.Description,
		AssigneeID:   t.AssigneeID,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		DueAt:        t.DueAt,
		IsOverdue:    t.IsOverdue,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUser(u *domain.User) userResponse {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(*T) R) []R {
	out := make([]R, len(in))
	for i := range in {
		out[i] = fn(&in[i])
	}
	return out
}
