package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedUser creates a user with the given roles.
// Returns a filled domain.User.
func SeedUser(t *testing.T, pool *pgxpool.Pool, roles ...domain.Role) domain.User {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := domain.User{
		ID:        uuid.New(),
		Email:     "testuser-" + suffix + "@example.com",
		Name:      "Test User " + suffix,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, email, name, roles, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, names, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedUser insert user: %v", err)
	}

	return user
}

// SeedManuscript creates a submitted manuscript owned by submitter.
func SeedManuscript(t *testing.T, pool *pgxpool.Pool, submitter domain.User) domain.Manuscript {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	m := domain.Manuscript{
		ID:          uuid.New(),
		Title:       "Manuscript " + suffix,
		Abstract:    "Abstract " + suffix,
		SubmitterID: submitter.ID,
		Authors:     []domain.Author{{Name: submitter.Name, Email: submitter.Email, UserID: &submitter.ID}},
		Status:      domain.StatusSubmitted,
		Precheck:    domain.PrecheckState{Status: domain.PrecheckPending},
		Invoice:     domain.InvoiceUnpaid,
		Version:     1,
		ReviewRound: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	authors, err := json.Marshal(m.Authors)
	if err != nil {
		t.Fatalf("testhelper: SeedManuscript marshal authors: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO manuscripts (id, title, abstract, submitter_id, manuscript_authors, status,
		                          pre_check_status, invoice, version, review_round, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.Title, m.Abstract, m.SubmitterID, authors, string(m.Status),
		string(m.Precheck.Status), string(m.Invoice), m.Version, m.ReviewRound, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedManuscript insert: %v", err)
	}

	return m
}
