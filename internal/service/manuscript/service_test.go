package manuscript

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/journal-backend/internal/adapter/memory"
	"github.com/heartmarshall/journal-backend/internal/domain"
	"github.com/heartmarshall/journal-backend/internal/workflow"
	"github.com/heartmarshall/journal-backend/pkg/ctxutil"
)

//go:generate moq -out outbox_writer_mock_test.go -pkg manuscript . outboxWriter

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	store *memory.Store
	clock *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	store := memory.New(memory.WithClock(clock))
	svc := NewService(
		slog.Default(),
		store.Manuscripts(),
		store.Assignments(),
		store.Audit(),
		store.Outbox(),
		memory.NewTxManager(store),
		workflow.NewMachine(clock),
	)
	return &testEnv{svc: svc, store: store, clock: clock}
}

func actorCtx(roles ...domain.Role) (context.Context, domain.Actor) {
	a := domain.NewActor(uuid.New(), "", roles)
	return ctxutil.WithActor(context.Background(), a), a
}

func (e *testEnv) submit(t *testing.T) (*domain.Manuscript, context.Context) {
	t.Helper()
	ctx, _ := actorCtx(domain.RoleAuthor)
	ms, err := e.svc.Submit(ctx, SubmitInput{
		Title:   "  Sparse Lattices  ",
		Authors: []domain.Author{{Name: "Ada", Email: "ada@uni.edu"}},
	})
	require.NoError(t, err)
	return ms, ctx
}

// inPrecheck returns a manuscript that went through intake.
func (e *testEnv) inPrecheck(t *testing.T) *domain.Manuscript {
	t.Helper()
	ms, _ := e.submit(t)
	e.clock.Advance(time.Minute)
	ctx, _ := actorCtx(domain.RoleManagingEditor)
	out, err := e.svc.AssignAE(ctx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		UserID:          uuid.New(),
	})
	require.NoError(t, err)
	return out
}

func TestSubmit_Success(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	ms, ctx := e.submit(t)
	actor, _ := ctxutil.ActorFromCtx(ctx)

	assert.Equal(t, "Sparse Lattices", ms.Title)
	assert.Equal(t, domain.StatusSubmitted, ms.Status)
	assert.Equal(t, domain.PrecheckPending, ms.Precheck.Status)
	assert.Equal(t, actor.ID, ms.SubmitterID)
	assert.Equal(t, 1, ms.Version)
	assert.Equal(t, 1, ms.ReviewRound)
	assert.True(t, ms.UpdatedAt.Equal(t0))

	msgs := e.store.Outbox().Messages()
	require.Len(t, msgs, 2)
	kinds := []domain.IntentKind{msgs[0].Intent.Kind, msgs[1].Intent.Kind}
	assert.ElementsMatch(t, []domain.IntentKind{domain.IntentNotifyEditor, domain.IntentNotifyAuthor}, kinds)
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ctx, _ := actorCtx(domain.RoleAuthor)

	_, err := e.svc.Submit(ctx, SubmitInput{
		Title:   " ",
		Authors: []domain.Author{{Name: "", Email: "not-an-email"}},
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestSubmit_Unauthenticated(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	_, err := e.svc.Submit(context.Background(), SubmitInput{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAssignAE_IntakeThenReassign(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms := e.inPrecheck(t)

	assert.Equal(t, domain.StatusPreCheck, ms.Status)
	assert.Equal(t, domain.PrecheckInProgress, ms.Precheck.Status)
	require.NotNil(t, ms.Precheck.CurrentRole)
	assert.Equal(t, domain.RoleAssistantEditor, *ms.Precheck.CurrentRole)

	e.clock.Advance(time.Minute)
	ctx, _ := actorCtx(domain.RoleEditorInChief)
	other := uuid.New()
	out, err := e.svc.AssignAE(ctx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		UserID:          other,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreCheck, out.Status)
	assert.Equal(t, other, *out.Precheck.CurrentAssignee)
	assert.True(t, out.UpdatedAt.After(ms.UpdatedAt))
}

func TestAssignAE_RequiresAssignCapability(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms, _ := e.submit(t)

	ctx, _ := actorCtx(domain.RoleAssistantEditor)
	_, err := e.svc.AssignAE(ctx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		UserID:          uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := e.store.Manuscripts().GetByID(context.Background(), ms.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.Status)
}

func TestQuickPrecheck_RevisionRequiresComment(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms := e.inPrecheck(t)
	ctx, _ := actorCtx(domain.RoleAssistantEditor)

	for _, comment := range []string{"", "   \t"} {
		_, err := e.svc.QuickPrecheck(ctx, PrecheckInput{
			TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
			Decision:        domain.PrecheckDecisionRevision,
			Comment:         comment,
		})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, "comment %q", comment)
	}

	out, err := e.svc.QuickPrecheck(ctx, PrecheckInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		Decision:        domain.PrecheckDecisionRevision,
		Comment:         "Missing ethics statement",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMinorRevision, out.Status)
	assert.Equal(t, domain.PrecheckRevisionRequested, out.Precheck.Status)
}

func TestQuickPrecheck_ApproveAudited(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms := e.inPrecheck(t)
	e.clock.Advance(time.Minute)
	ctx, _ := actorCtx(domain.RoleAssistantEditor)

	out, err := e.svc.QuickPrecheck(ctx, PrecheckInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		Decision:        domain.PrecheckDecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, out.Status)

	editorCtx, _ := actorCtx(domain.RoleManagingEditor)
	history, err := e.svc.History(editorCtx, ms.ID, uuid.Nil, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	last := history[2]
	assert.Equal(t, domain.AuditActionTransition, last.Action)
	assert.Equal(t, "quick_precheck", last.Changes["action"])
}

func TestQuickPrecheck_StaleToken(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms := e.inPrecheck(t)
	ctx, _ := actorCtx(domain.RoleAssistantEditor)

	_, err := e.svc.QuickPrecheck(ctx, PrecheckInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt.Add(-time.Second)},
		Decision:        domain.PrecheckDecisionApprove,
	})
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Actual.Equal(ms.UpdatedAt))
}

func TestQuickPrecheck_ConcurrentCallsOneWins(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms := e.inPrecheck(t)
	e.clock.Advance(time.Minute)

	const callers = 2
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, _ := actorCtx(domain.RoleAssistantEditor)
			_, errs[i] = e.svc.QuickPrecheck(ctx, PrecheckInput{
				TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
				Decision:        domain.PrecheckDecisionApprove,
			})
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestTwoStagePrecheck_JoinInBothOrders(t *testing.T) {
	t.Parallel()

	orders := map[string][]domain.Role{
		"technical first": {domain.RoleAssistantEditor, domain.RoleEditorInChief},
		"academic first":  {domain.RoleEditorInChief, domain.RoleAssistantEditor},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e := newTestEnv(t)
			ms := e.inPrecheck(t)

			for i, role := range order {
				e.clock.Advance(time.Minute)
				ctx, _ := actorCtx(role)
				in := PrecheckInput{
					TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
					Decision:        domain.PrecheckDecisionApprove,
				}
				var err error
				if role == domain.RoleAssistantEditor {
					ms, err = e.svc.TechnicalCheck(ctx, in)
				} else {
					ms, err = e.svc.AcademicCheck(ctx, in)
				}
				require.NoError(t, err)
				if i == 0 {
					assert.Equal(t, domain.StatusPreCheck, ms.Status)
				}
			}
			assert.Equal(t, domain.StatusUnderReview, ms.Status)
			assert.True(t, ms.Precheck.TechnicalPassed)
			assert.True(t, ms.Precheck.AcademicPassed)
		})
	}
}

func TestRevisionLoop(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms, authorCtx := e.submit(t)
	e.clock.Advance(time.Minute)

	editorCtx, _ := actorCtx(domain.RoleManagingEditor)
	ms, err := e.svc.AssignAE(editorCtx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		UserID:          uuid.New(),
	})
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	ms, err = e.svc.QuickPrecheck(editorCtx, PrecheckInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		Decision:        domain.PrecheckDecisionRevision,
		Comment:         "format references",
	})
	require.NoError(t, err)

	// Only the submitting author may resubmit.
	e.clock.Advance(time.Minute)
	_, err = e.svc.Resubmit(editorCtx, TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	ms, err = e.svc.Resubmit(authorCtx, TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResubmitted, ms.Status)
	assert.Equal(t, 2, ms.Version)

	e.clock.Advance(time.Minute)
	ms, err = e.svc.RestartReview(editorCtx, TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, ms.Status)
	assert.Equal(t, 2, ms.ReviewRound)
}

func TestBindOwnerAndEditor(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms, _ := e.submit(t)
	ctx, _ := actorCtx(domain.RoleEditorInChief)

	owner, editor := uuid.New(), uuid.New()
	e.clock.Advance(time.Minute)
	ms, err := e.svc.BindOwner(ctx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		UserID:          owner,
	})
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	ms, err = e.svc.BindEditor(ctx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: ms.UpdatedAt},
		UserID:          editor,
	})
	require.NoError(t, err)

	assert.Equal(t, owner, *ms.OwnerID)
	assert.Equal(t, editor, *ms.EditorID)
	assert.Equal(t, domain.StatusSubmitted, ms.Status)
}

func TestApply_OutboxFailureRollsBack(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClockAt(t0)
	store := memory.New(memory.WithClock(clock))
	outbox := &outboxWriterMock{
		EnqueueFunc: func(ctx context.Context, intents []domain.Intent, now time.Time) error {
			return errors.New("outbox down")
		},
	}
	svc := NewService(slog.Default(), store.Manuscripts(), store.Assignments(), store.Audit(), outbox,
		memory.NewTxManager(store), workflow.NewMachine(clock))

	ms := &domain.Manuscript{
		ID: uuid.New(), Title: "T", SubmitterID: uuid.New(), Status: domain.StatusSubmitted,
		Invoice: domain.InvoiceUnpaid, Version: 1, ReviewRound: 1, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, store.Manuscripts().Create(context.Background(), ms))

	clock.Advance(time.Minute)
	ctx, _ := actorCtx(domain.RoleManagingEditor)
	_, err := svc.AssignAE(ctx, AssignInput{
		TransitionInput: TransitionInput{ManuscriptID: ms.ID, ExpectedUpdatedAt: t0},
		UserID:          uuid.New(),
	})
	require.Error(t, err)
	assert.Len(t, outbox.EnqueueCalls(), 1)

	got, err := store.Manuscripts().GetByID(context.Background(), ms.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.Status)
	audit, err := store.Audit().ListByManuscript(context.Background(), ms.ID, uuid.Nil, 10)
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestGet_Visibility(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms, authorCtx := e.submit(t)

	_, err := e.svc.Get(authorCtx, ms.ID)
	require.NoError(t, err)

	editorCtx, _ := actorCtx(domain.RoleAssistantEditor)
	_, err = e.svc.Get(editorCtx, ms.ID)
	require.NoError(t, err)

	strangerCtx, _ := actorCtx(domain.RoleReviewer)
	_, err = e.svc.Get(strangerCtx, ms.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.svc.History(authorCtx, ms.ID, uuid.Nil, 10)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = e.svc.Get(editorCtx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistory_ReturnsNewestPageAndPagesBack(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	ms, _ := e.submit(t)
	ctx := context.Background()

	trail, err := e.store.Audit().ListByManuscript(ctx, ms.ID, uuid.Nil, 0)
	require.NoError(t, err)
	for i := range 601 {
		require.NoError(t, e.store.Audit().Log(ctx, domain.AuditRecord{
			ID:           uuid.New(),
			ManuscriptID: &ms.ID,
			EntityType:   domain.EntityTypeManuscript,
			Action:       domain.AuditActionUpdate,
			Changes:      map[string]any{"i": i},
			CreatedAt:    t0.Add(time.Hour + time.Duration(i)*time.Second),
		}))
	}
	total := len(trail) + 601

	editorCtx, _ := actorCtx(domain.RoleManagingEditor)
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 100},
		{"capped", 10_000, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.svc.History(editorCtx, ms.ID, uuid.Nil, tt.limit)
			require.NoError(t, err)
			require.Len(t, got, tt.want)
			assert.Equal(t, 600, got[len(got)-1].Changes["i"], "newest record ends the page")
			assert.Equal(t, 601-tt.want, got[0].Changes["i"])
		})
	}

	var pages, seen int
	before := uuid.Nil
	for {
		page, err := e.svc.History(editorCtx, ms.ID, before, 500)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		pages++
		seen += len(page)
		before = page[0].ID
	}
	assert.Equal(t, 2, pages)
	assert.Equal(t, total, seen, "paging back reaches the first record")
}
