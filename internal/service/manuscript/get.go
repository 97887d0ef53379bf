package manuscript

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// Get returns a manuscript visible to the caller: editorial staff, its
// authors, and reviewers assigned to it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Manuscript, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	ms, err := s.manuscripts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}

	if actor.Can(domain.CapViewEditorial) || ms.HasAuthor(actor.ID, actor.Email) {
		return ms, nil
	}

	assignments, err := s.assignments.ListByManuscript(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range assignments {
		if a.ReviewerID == actor.ID && a.Status != domain.AssignmentDeclined {
			return ms, nil
		}
	}
	return nil, domain.ErrForbidden
}

// History returns a page of the audit trail of a manuscript: the newest limit
// records older than the record before, oldest first. A nil before starts
// from the latest record. Editorial staff only.
func (s *Service) History(ctx context.Context, id, before uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !actor.Can(domain.CapViewEditorial) {
		return nil, domain.ErrForbidden
	}

	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	if _, err := s.manuscripts.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("get manuscript: %w", err)
	}
	records, err := s.audit.ListByManuscript(ctx, id, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return records, nil
}
