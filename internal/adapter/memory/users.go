package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// UserRepo is the in-memory user repository.
type UserRepo struct{ s *Store }

// Users returns the user repository of s.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// GetByID returns a copy of the stored user.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	var (
		u  domain.User
		ok bool
	)
	r.s.read(func(t *tables) {
		u, ok = t.users[id]
		u = cloneUser(u)
	})
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

// Upsert inserts the user or refreshes email, name and roles of an existing one.
// Emails are unique ignoring case.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	var out domain.User
	err := r.s.write(ctx, []rowKey{{tableUsers, u.ID}}, func(t *tables) error {
		for _, other := range t.users {
			if other.ID != u.ID && strings.EqualFold(other.Email, u.Email) {
				return fmt.Errorf("user %s: %w", u.ID, domain.ErrAlreadyExists)
			}
		}
		next := cloneUser(*u)
		if cur, ok := t.users[u.ID]; ok {
			next.CreatedAt = cur.CreatedAt
		}
		t.users[u.ID] = next
		out = cloneUser(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns users ordered by email with pagination, plus the total count.
func (r *UserRepo) List(_ context.Context, limit, offset int) ([]domain.User, int, error) {
	all := []domain.User{}
	r.s.read(func(t *tables) {
		for _, u := range t.users {
			all = append(all, cloneUser(u))
		}
	})
	slices.SortFunc(all, func(a, b domain.User) int { return strings.Compare(a.Email, b.Email) })

	total := len(all)
	if offset >= total {
		return []domain.User{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}
