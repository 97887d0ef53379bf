package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"
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

func TestRepo_ListNeedingEscalation(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	msID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM internal_tasks WHERE \(status <> \$1 AND due_at < \$2 AND escalated_at IS NULL\) ORDER BY created_at ASC, id ASC`).
		WithArgs("done", now).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			uuid.New(), msID, "Chase reviewer", (*string)(nil), (*uuid.UUID)(nil), "todo",
			"high", &due, (*time.Time)(nil), uuid.New(), now, now,
		))

	got, err := New(mock).ListNeedingEscalation(context.Background(), now)
	if err != nil {
		t.Fatalf("ListNeedingEscalation() unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ManuscriptID != msID || got[0].Priority != "high" {
		t.Errorf("ListNeedingEscalation() = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_ListByManuscripts_EmptyInputSkipsQuery(t *testing.T) {
	t.Parallel()
	mock := newMock(t)

	got, err := New(mock).ListByManuscripts(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries: %v", err)
	}
}

func TestRepo_ListByManuscripts_UsesIn(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM internal_tasks WHERE manuscript_id IN \(\$1,\$2\)`).
		WithArgs(a, b).
		WillReturnRows(pgxmock.NewRows(columns))

	if _, err := New(mock).ListByManuscripts(context.Background(), []uuid.UUID{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
