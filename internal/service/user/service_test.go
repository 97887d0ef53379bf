package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

//go:generate moq -out user_repo_mock_test.go -pkg user . userRepo
//go:generate moq -out audit_logger_mock_test.go -pkg user . auditLogger

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type txManagerMock struct{}

func (txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(users userRepo, audit auditLogger) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(logger, users, audit, txManagerMock{}, clockwork.NewFakeClockAt(now))
}

func actorCtx(id uuid.UUID, email string, roles ...domain.Role) context.Context {
	return ctxutil.WithActor(context.Background(), domain.NewActor(id, email, roles))
}

func okAudit() *auditLoggerMock {
	return &auditLoggerMock{LogFunc: func(context.Context, domain.AuditRecord) error { return nil }}
}

func echoUpsert() *userRepoMock {
	return &userRepoMock{
		UpsertFunc: func(_ context.Context, u *domain.User) (*domain.User, error) {
			out := *u
			return &out, nil
		},
	}
}

// ---------------------------------------------------------------------------
// GetProfile tests
// ---------------------------------------------------------------------------

func TestService_GetProfile_Success(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	expected := domain.User{ID: userID, Email: "ada@uni.edu", Name: "Ada", CreatedAt: now, UpdatedAt: now}
	users := &userRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			assert.Equal(t, userID, id)
			return &expected, nil
		},
	}

	svc := newTestService(users, nil)
	user, err := svc.GetProfile(actorCtx(userID, "ada@uni.edu", domain.RoleAuthor))

	require.NoError(t, err)
	assert.Equal(t, &expected, user)
	assert.Len(t, users.GetByIDCalls(), 1)
}

func TestService_GetProfile_NoActorInContext(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)
	user, err := svc.GetProfile(context.Background())

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Nil(t, user)
}

func TestService_GetProfile_UserNotFound(t *testing.T) {
	t.Parallel()

	users := &userRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			return nil, domain.ErrNotFound
		},
	}

	svc := newTestService(users, nil)
	user, err := svc.GetProfile(actorCtx(uuid.New(), ""))

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, user)
}

// ---------------------------------------------------------------------------
// SyncProfile tests
// ---------------------------------------------------------------------------

func TestService_SyncProfile_Success(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	users := echoUpsert()
	audit := okAudit()

	svc := newTestService(users, audit)
	user, err := svc.SyncProfile(actorCtx(userID, " rev@lab.org ", domain.RoleReviewer), SyncProfileInput{Name: " Rev "})

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "rev@lab.org", user.Email)
	assert.Equal(t, "Rev", user.Name)
	assert.Equal(t, []domain.Role{domain.RoleReviewer}, user.Roles)
	assert.True(t, user.UpdatedAt.Equal(now))

	require.Len(t, audit.LogCalls(), 1)
	rec := audit.LogCalls()[0].Record
	assert.Equal(t, domain.EntityTypeUser, rec.EntityType)
	assert.Nil(t, rec.ManuscriptID)
}

func TestService_SyncProfile_TokenWithoutEmail(t *testing.T) {
	t.Parallel()

	users := &userRepoMock{}
	svc := newTestService(users, nil)
	_, err := svc.SyncProfile(actorCtx(uuid.New(), ""), SyncProfileInput{Name: "Anon"})

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, users.UpsertCalls())
}

func TestService_SyncProfile_EmailTaken(t *testing.T) {
	t.Parallel()

	users := &userRepoMock{
		UpsertFunc: func(context.Context, *domain.User) (*domain.User, error) {
			return nil, domain.ErrAlreadyExists
		},
	}
	audit := okAudit()
	svc := newTestService(users, audit)
	_, err := svc.SyncProfile(actorCtx(uuid.New(), "dup@lab.org"), SyncProfileInput{Name: "Dup"})

	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Empty(t, audit.LogCalls())
}

// ---------------------------------------------------------------------------
// SetRoles tests
// ---------------------------------------------------------------------------

func TestService_SetRoles_Success(t *testing.T) {
	t.Parallel()

	target := domain.User{ID: uuid.New(), Email: "x@lab.org", Roles: []domain.Role{domain.RoleAuthor}}
	users := echoUpsert()
	users.GetByIDFunc = func(context.Context, uuid.UUID) (*domain.User, error) {
		cp := target
		return &cp, nil
	}
	audit := okAudit()

	svc := newTestService(users, audit)
	user, err := svc.SetRoles(actorCtx(uuid.New(), "", domain.RoleAdmin), target.ID,
		SetRolesInput{Roles: []domain.Role{domain.RoleAuthor, domain.RoleReviewer}})

	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleAuthor, domain.RoleReviewer}, user.Roles)
	require.Len(t, audit.LogCalls(), 1)
	assert.Equal(t, map[string]any{"old": []string{"author"}, "new": []string{"author", "reviewer"}},
		audit.LogCalls()[0].Record.Changes["roles"])
}

func TestService_SetRoles_Rejections(t *testing.T) {
	t.Parallel()

	adminID := uuid.New()
	tests := []struct {
		name    string
		ctx     context.Context
		target  uuid.UUID
		input   SetRolesInput
		wantErr error
	}{
		{"no actor", context.Background(), uuid.New(), SetRolesInput{Roles: []domain.Role{domain.RoleReviewer}}, domain.ErrUnauthorized},
		{"not admin", actorCtx(uuid.New(), "", domain.RoleEditorInChief), uuid.New(), SetRolesInput{Roles: []domain.Role{domain.RoleReviewer}}, domain.ErrForbidden},
		{"invalid role", actorCtx(adminID, "", domain.RoleAdmin), uuid.New(), SetRolesInput{Roles: []domain.Role{"root"}}, domain.ErrValidation},
		{"self demotion", actorCtx(adminID, "", domain.RoleAdmin), adminID, SetRolesInput{Roles: []domain.Role{domain.RoleReviewer}}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			users := &userRepoMock{}
			svc := newTestService(users, nil)
			_, err := svc.SetRoles(tt.ctx, tt.target, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, users.GetByIDCalls())
		})
	}
}

func TestService_SetRoles_TargetMissing(t *testing.T) {
	t.Parallel()

	users := &userRepoMock{
		GetByIDFunc: func(context.Context, uuid.UUID) (*domain.User, error) { return nil, domain.ErrNotFound },
	}
	svc := newTestService(users, nil)
	_, err := svc.SetRoles(actorCtx(uuid.New(), "", domain.RoleAdmin), uuid.New(),
		SetRolesInput{Roles: []domain.Role{domain.RoleReviewer}})

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, users.UpsertCalls())
}

// ---------------------------------------------------------------------------
// ListUsers tests
// ---------------------------------------------------------------------------

func TestService_ListUsers_ClampsPaging(t *testing.T) {
	t.Parallel()

	users := &userRepoMock{
		ListFunc: func(_ context.Context, limit, offset int) ([]domain.User, int, error) {
			return []domain.User{{ID: uuid.New()}}, 7, nil
		},
	}
	svc := newTestService(users, nil)
	ctx := actorCtx(uuid.New(), "", domain.RoleAssistantEditor)

	list, total, err := svc.ListUsers(ctx, 0, -3)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 7, total)

	_, _, err = svc.ListUsers(ctx, 1000, 10)
	require.NoError(t, err)

	calls := users.ListCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 50, calls[0].Limit)
	assert.Equal(t, 0, calls[0].Offset)
	assert.Equal(t, 200, calls[1].Limit)
	assert.Equal(t, 10, calls[1].Offset)
}

func TestService_ListUsers_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := newTestService(&userRepoMock{}, nil).ListUsers(actorCtx(uuid.New(), "", domain.RoleAuthor), 10, 0)
	require.ErrorIs(t, err, domain.ErrForbidden)

	dbErr := errors.New("connection reset")
	users := &userRepoMock{
		ListFunc: func(context.Context, int, int) ([]domain.User, int, error) { return nil, 0, dbErr },
	}
	_, _, err = newTestService(users, nil).ListUsers(actorCtx(uuid.New(), "", domain.RoleAdmin), 10, 0)
	require.ErrorIs(t, err, dbErr)
}
