// Package auth validates access tokens issued by the external identity
// provider and turns them into workflow actors.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// leeway tolerates clock skew between this service and the identity provider.
const leeway = 30 * time.Second

// JWTManager verifies HS256 access tokens shared with the identity provider.
// It can also mint tokens, which the provider's tooling and the end-to-end
// tests use; the service itself only verifies.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	clock     clockwork.Clock
}

// NewJWTManager creates a manager for the given shared secret and issuer.
func NewJWTManager(secret, issuer string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
		clock:     clockwork.NewRealClock(),
	}
}

// accessClaims are the provider's claims: subject is the user id, roles are
// workflow role names.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// GenerateAccessToken signs a token for userID valid for the configured TTL.
func (m *JWTManager) GenerateAccessToken(userID uuid.UUID, email string, roles []domain.Role) (string, error) {
	now := m.clock.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		Email: email,
		Roles: make([]string, 0, len(roles)),
	}
	for _, r := range roles {
		claims.Roles = append(claims.Roles, string(r))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, algorithm, issuer and expiry and
// returns the actor. Role names this service does not know are dropped.
// Every failure wraps domain.ErrUnauthorized.
func (m *JWTManager) ValidateAccessToken(raw string) (domain.Actor, error) {
	if raw == "" {
		return domain.Actor{}, fmt.Errorf("empty token: %w", domain.ErrUnauthorized)
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: subject is not a user id: %w", domain.ErrUnauthorized, err)
	}

	roles := make([]domain.Role, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		if r := domain.Role(name); r.IsValid() {
			roles = append(roles, r)
		}
	}
	return domain.NewActor(userID, claims.Email, roles), nil
}

// ValidateToken satisfies the HTTP auth middleware.
func (m *JWTManager) ValidateToken(_ context.Context, token string) (domain.Actor, error) {
	return m.ValidateAccessToken(token)
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
