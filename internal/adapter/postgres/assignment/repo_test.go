package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/heartmarshall/journal-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestRepo_Create_DuplicateActiveAssignment(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	now := time.Now().UTC()
	a := &domain.ReviewAssignment{
		ID: uuid.New(), ManuscriptID: uuid.New(), ReviewerID: uuid.New(),
		Status: domain.AssignmentPending, RoundNumber: 1, DueAt: now.Add(time.Hour),
		InvitedBy: uuid.New(), CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO review_assignments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_review_assignments_active"})

	err := New(mock).Create(context.Background(), a)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Create() error = %v, want ErrAlreadyExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_CountCompletedReports(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	msID := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM review_assignments WHERE .+ AND report IS NOT NULL`).
		WithArgs(testhelper.UUIDArg(msID), 2, "completed").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := New(mock).CountCompletedReports(context.Background(), msID, 2)
	if err != nil {
		t.Fatalf("CountCompletedReports() unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("CountCompletedReports() = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_ListByManuscript_DecodesReport(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	now := time.Now().UTC()
	msID, id := uuid.New(), uuid.New()

	rows := pgxmock.NewRows(columns).AddRow(
		id, msID, uuid.New(), "completed", 1, now,
		uuid.New(), false, &now, &now,
		(*string)(nil), (*string)(nil), []byte(`{"recommendation":"minor","comments_to_author":"fine"}`), now, now,
	)
	mock.ExpectQuery(`SELECT .+ FROM review_assignments WHERE manuscript_id = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs(testhelper.UUIDArg(msID)).
		WillReturnRows(rows)

	got, err := New(mock).ListByManuscript(context.Background(), msID)
	if err != nil {
		t.Fatalf("ListByManuscript() unexpected error: %v", err)
	}
	if len(got) != 1 || !got[0].HasReport() {
		t.Fatalf("ListByManuscript() = %+v", got)
	}
	if got[0].Report.Recommendation != domain.RecommendMinor {
		t.Errorf("recommendation = %q", got[0].Report.Recommendation)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
