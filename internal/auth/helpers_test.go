package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const testSecret = "provider-shared-hs256-secret-for-tests-only"

var issuedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newTestManager returns a manager for issuer "journal" on a fake clock.
func newTestManager() (*JWTManager, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(issuedAt)
	m := NewJWTManager(testSecret, "journal", 15*time.Minute)
	m.clock = clock
	return m, clock
}

func sign(method jwt.SigningMethod, key any, c jwt.Claims) string {
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		panic(err)
	}
	return s
}
