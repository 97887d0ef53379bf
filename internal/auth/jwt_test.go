package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager()
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID, "ae@journal.org", []domain.Role{domain.RoleAssistantEditor, "superuser"})
	require.NoError(t, err)

	actor, err := m.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, actor.ID)
	assert.Equal(t, "ae@journal.org", actor.Email)
	assert.Equal(t, []domain.Role{domain.RoleAssistantEditor}, actor.Roles)
	assert.True(t, actor.Can(domain.CapTechnicalCheck))
	assert.False(t, actor.Can(domain.CapDecide))
}

func TestJWTManager_Expiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		after   time.Duration
		wantErr bool
	}{
		{name: "fresh", after: time.Minute},
		{name: "within leeway", after: 15*time.Minute + 20*time.Second},
		{name: "expired", after: 16 * time.Minute, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, clock := newTestManager()
			token, err := m.GenerateAccessToken(uuid.New(), "", nil)
			require.NoError(t, err)

			clock.Advance(tt.after)
			_, err = m.ValidateAccessToken(token)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.True(t, IsExpired(err))
		})
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager()

	valid := func(mod func(c *accessClaims)) *accessClaims {
		c := &accessClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "journal",
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		}}
		if mod != nil {
			mod(c)
		}
		return c
	}

	tests := map[string]string{
		"empty":         "",
		"garbage":       "not-a-token",
		"two segments":  "header.payload",
		"other secret":  sign(jwt.SigningMethodHS256, []byte("another-secret-of-sufficient-length!"), valid(nil)),
		"hs512":         sign(jwt.SigningMethodHS512, []byte(testSecret), valid(nil)),
		"alg none":      sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(nil)),
		"wrong issuer":  sign(jwt.SigningMethodHS256, []byte(testSecret), valid(func(c *accessClaims) { c.Issuer = "elsewhere" })),
		"no expiry":     sign(jwt.SigningMethodHS256, []byte(testSecret), valid(func(c *accessClaims) { c.ExpiresAt = nil })),
		"non-uuid sub":  sign(jwt.SigningMethodHS256, []byte(testSecret), valid(func(c *accessClaims) { c.Subject = "ada" })),
		"not yet valid": sign(jwt.SigningMethodHS256, []byte(testSecret), valid(func(c *accessClaims) { c.NotBefore = jwt.NewNumericDate(issuedAt.Add(time.Hour)) })),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := m.ValidateAccessToken(token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
