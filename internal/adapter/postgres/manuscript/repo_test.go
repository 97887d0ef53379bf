package manuscript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleManuscript() *domain.Manuscript {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &domain.Manuscript{
		ID:          uuid.New(),
		Title:       "On Graphs",
		SubmitterID: uuid.New(),
		Authors:     []domain.Author{{Name: "A. Author", Email: "a@lab.org"}},
		Status:      domain.StatusPreCheck,
		Precheck:    domain.PrecheckState{Status: domain.PrecheckInProgress},
		Invoice:     domain.InvoiceUnpaid,
		Version:     1,
		ReviewRound: 1,
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Second),
	}
}

func TestRepo_Update_CompareAndSwapShape(t *testing.T) {
	t.Parallel()

	m := sampleManuscript()
	expected := m.UpdatedAt.Add(-time.Second)

	tests := []struct {
		name  string
		setup func(mock pgxmock.PgxPoolIface)
		check func(t *testing.T, err error)
	}{
		{
			name: "token matches",
			setup: func(mock pgxmock.PgxPoolIface) {
				args := append(anyArgs(18), testhelper.UUIDArg(m.ID), expected)
				mock.ExpectExec(`UPDATE manuscripts SET .+ WHERE id = \$19 AND updated_at = \$20`).
					WithArgs(args...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("Update() unexpected error: %v", err)
				}
			},
		},
		{
			name: "stale token",
			setup: func(mock pgxmock.PgxPoolIface) {
				args := append(anyArgs(18), testhelper.UUIDArg(m.ID), expected)
				mock.ExpectExec(`UPDATE manuscripts`).
					WithArgs(args...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				mock.ExpectQuery(`SELECT updated_at FROM manuscripts WHERE id = \$1`).
					WithArgs(m.ID).
					WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(m.UpdatedAt.Add(time.Hour)))
			},
			check: func(t *testing.T, err error) {
				var ce *domain.ConflictError
				if !errors.As(err, &ce) {
					t.Fatalf("Update() error = %v, want *domain.ConflictError", err)
				}
				if !ce.Expected.Equal(expected) || !ce.Actual.Equal(m.UpdatedAt.Add(time.Hour)) {
					t.Errorf("ConflictError tokens = %v/%v", ce.Expected, ce.Actual)
				}
			},
		},
		{
			name: "row missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE manuscripts`).
					WithArgs(append(anyArgs(18), testhelper.UUIDArg(m.ID), expected)...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				mock.ExpectQuery(`SELECT updated_at FROM manuscripts`).
					WithArgs(m.ID).
					WillReturnError(pgx.ErrNoRows)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Fatalf("Update() error = %v, want ErrNotFound", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := newMock(t)
			tt.setup(mock)

			err := New(mock).Update(context.Background(), m, expected)
			tt.check(t, err)

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestRepo_Create(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	m := sampleManuscript()

	mock.ExpectExec(`INSERT INTO manuscripts \(id,title,abstract`).
		WithArgs(anyArgs(len(columns))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := New(mock).Create(context.Background(), m); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_GetByID(t *testing.T) {
	t.Parallel()
	m := sampleManuscript()
	role := string(domain.RoleAssistantEditor)
	assignee := uuid.New()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		check   func(t *testing.T, got *domain.Manuscript)
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(columns).AddRow(
					m.ID, m.Title, m.Abstract, m.SubmitterID, []byte(`[{"name":"A. Author","email":"a@lab.org"}]`), string(m.Status),
					string(m.Precheck.Status), &role, &assignee,
					true, false, (*string)(nil),
					(*uuid.UUID)(nil), (*uuid.UUID)(nil), string(m.Invoice), (*string)(nil), 1, 1,
					(*time.Time)(nil), m.CreatedAt, m.UpdatedAt,
				)
				mock.ExpectQuery(`SELECT .+ FROM manuscripts WHERE id = \$1`).
					WithArgs(testhelper.UUIDArg(m.ID)).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, got *domain.Manuscript) {
				if got.ID != m.ID || got.Status != domain.StatusPreCheck {
					t.Errorf("GetByID() = %+v", got)
				}
				if len(got.Authors) != 1 || got.Authors[0].Email != "a@lab.org" {
					t.Errorf("authors = %+v", got.Authors)
				}
				if got.Precheck.CurrentRole == nil || *got.Precheck.CurrentRole != domain.RoleAssistantEditor {
					t.Errorf("current role = %v", got.Precheck.CurrentRole)
				}
				if !got.Precheck.TechnicalPassed || got.Precheck.AcademicPassed {
					t.Errorf("precheck flags = %+v", got.Precheck)
				}
			},
		},
		{
			name: "not found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT`).
					WithArgs(testhelper.UUIDArg(m.ID)).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := newMock(t)
			tt.setup(mock)

			got, err := New(mock).GetByID(context.Background(), m.ID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetByID() error = %v, want %v", err, tt.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("GetByID() unexpected error: %v", err)
				}
				tt.check(t, got)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}
