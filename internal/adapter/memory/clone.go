package memory

import (
	"slices"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

func cloneUser(u domain.User) domain.User {
	u.Roles = slices.Clone(u.Roles)
	return u
}

func cloneAssignment(a domain.ReviewAssignment) domain.ReviewAssignment {
	a.RespondedAt = ptr(a.RespondedAt)
	a.CompletedAt = ptr(a.CompletedAt)
	a.DeclineReason = ptr(a.DeclineReason)
	a.DeclineNote = ptr(a.DeclineNote)
	if a.Report != nil {
		r := *a.Report
		r.Attachments = slices.Clone(r.Attachments)
		a.Report = &r
	}
	return a
}

func cloneDraft(d domain.DecisionDraft) domain.DecisionDraft {
	d.Attachments = slices.Clone(d.Attachments)
	d.SubmittedAt = ptr(d.SubmittedAt)
	d.SubmittedBy = ptr(d.SubmittedBy)
	return d
}

func cloneTask(t domain.InternalTask) domain.InternalTask {
	t.Description = ptr(t.Description)
	t.AssigneeID = ptr(t.AssigneeID)
	t.DueAt = ptr(t.DueAt)
	t.EscalatedAt = ptr(t.EscalatedAt)
	return t
}

func cloneMessage(m domain.OutboxMessage) domain.OutboxMessage {
	m.Intent.RecipientID = ptr(m.Intent.RecipientID)
	if m.Intent.Data != nil {
		data := make(map[string]any, len(m.Intent.Data))
		for k, v := range m.Intent.Data {
			data[k] = v
		}
		m.Intent.Data = data
	}
	m.LastError = ptr(m.LastError)
	m.DeliveredAt = ptr(m.DeliveredAt)
	return m
}

func ptr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
