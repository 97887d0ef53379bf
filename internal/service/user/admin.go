package user

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

// SetRoles replaces the roles recorded for a directory entry (admin only).
func (s *Service) SetRoles(ctx context.Context, targetUserID uuid.UUID, input SetRolesInput) (*domain.User, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !actor.HasRole(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Prevent admin from demoting themselves.
	if actor.ID == targetUserID && !slices.Contains(input.Roles, domain.RoleAdmin) {
		return nil, domain.NewValidationError("roles", "cannot demote yourself")
	}

	var saved *domain.User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		cur, err := s.users.GetByID(txCtx, targetUserID)
		if err != nil {
			return fmt.Errorf("user.SetRoles: %w", err)
		}
		old := cur.Roles
		next := *cur
		next.Roles = slices.Clone(input.Roles)
		next.UpdatedAt = s.now()
		saved, err = s.users.Upsert(txCtx, &next)
		if err != nil {
			return fmt.Errorf("user.SetRoles: %w", err)
		}
		id := saved.ID
		return s.audit.Log(txCtx, domain.AuditRecord{
			UserID:     actor.ID,
			EntityType: domain.EntityTypeUser,
			EntityID:   &id,
			Action:     domain.AuditActionUpdate,
			Changes:    map[string]any{"roles": map[string]any{"old": rolesStrings(old), "new": rolesStrings(saved.Roles)}},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user roles updated",
		slog.String("target_user_id", targetUserID.String()),
		slog.Any("roles", rolesStrings(saved.Roles)),
	)

	return saved, nil
}

// ListUsers returns a paginated list of directory entries to editorial staff.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	actor, ok := ctxutil.ActorFromCtx(ctx)
	if !ok {
		return nil, 0, domain.ErrUnauthorized
	}
	if !actor.Can(domain.CapViewEditorial) {
		return nil, 0, domain.ErrForbidden
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("user.ListUsers: %w", err)
	}

	return users, total, nil
}

func rolesStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
