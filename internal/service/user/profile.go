package user

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// GetProfile returns the authenticated user's directory entry.
// Returns ErrUnauthorized if no actor is found in context.
func (s *Service) GetProfile(ctx context.Context) (*domain.User, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("user.GetProfile: %w", err)
	}

	return user, nil
}

// SyncProfile upserts the caller's directory entry from the verified token:
// id, email and roles come from the token, the name from input.
func (s *Service) SyncProfile(ctx context.Context, input SyncProfileInput) (*domain.User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if err := validateEmail(actor.Email); err != nil {
		return nil, err
	}

	now := s.now()
	u := &domain.User{
		ID:        actor.ID,
		Email:     strings.TrimSpace(actor.Email),
		Name:      strings.TrimSpace(input.Name),
		Roles:     slices.Clone(actor.Roles),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var saved *domain.User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		saved, err = s.users.Upsert(txCtx, u)
		if err != nil {
			return fmt.Errorf("user.SyncProfile: %w", err)
		}
		id := saved.ID
		return s.audit.Log(txCtx, domain.AuditRecord{
			UserID:     actor.ID,
			EntityType: domain.EntityTypeUser,
			EntityID:   &id,
			Action:     domain.AuditActionUpdate,
			Changes:    map[string]any{"email": saved.Email, "name": saved.Name},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "profile synced",
		slog.String("user_id", saved.ID.String()))

	return saved, nil
}
