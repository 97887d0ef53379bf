package outbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/journal-backend/internal/adapter/mailer"
	"github.com/heartmarshall/journal-backend/internal/adapter/memory"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

//go:generate moq -out notifier_mock_test.go -pkg outbox . notifier

var t0 = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func newDispatcher(store *memory.Store, n notifier, clock clockwork.Clock) *Dispatcher {
	return NewDispatcher(slog.Default(), store.Outbox(), store.Users(), n, clock, Config{
		PollInterval: time.Second,
		BatchSize:    10,
		MaxAttempts:  2,
		RetryBackoff: time.Minute,
		ClaimLease:   10 * time.Minute,
	})
}

func TestDispatchOnce_ResolvesRecipientsAndMarksDelivered(t *testing.T) {
	t.Parallel()
	store := memory.New()
	clock := clockwork.NewFakeClockAt(t0)
	ctx := context.Background()

	u, err := store.Users().Upsert(ctx, &domain.User{ID: uuid.New(), Email: "ada@uni.edu", Name: "Ada"})
	require.NoError(t, err)
	ghost := uuid.New()
	msID := uuid.New()
	require.NoError(t, store.Outbox().Enqueue(ctx, []domain.Intent{
		{Kind: domain.IntentNotifyAuthor, ManuscriptID: msID, RecipientID: &u.ID, Event: "decision_accept"},
		{Kind: domain.IntentNotifyEditor, ManuscriptID: msID, Event: "manuscript_submitted"},
		{Kind: domain.IntentNotifyReviewer, ManuscriptID: msID, RecipientID: &ghost, Event: "review_invited"},
	}, t0))

	n := &notifierMock{NotifyFunc: func(context.Context, domain.Intent, *mailer.Recipient) error { return nil }}
	stats, err := newDispatcher(store, n, clock).DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Delivered: 3}, stats)

	byEvent := map[string]*mailer.Recipient{}
	for _, c := range n.NotifyCalls() {
		byEvent[c.In.Event] = c.Rcpt
	}
	require.Contains(t, byEvent, "decision_accept")
	assert.Equal(t, &mailer.Recipient{Email: "ada@uni.edu", Name: "Ada"}, byEvent["decision_accept"])
	assert.Nil(t, byEvent["manuscript_submitted"])
	assert.Nil(t, byEvent["review_invited"], "unknown users route to the office")

	for _, m := range store.Outbox().Messages() {
		assert.Equal(t, domain.OutboxDelivered, m.Status)
		assert.Equal(t, 1, m.Attempts)
	}

	stats, err = newDispatcher(store, n, clock).DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Len(t, n.NotifyCalls(), 3)
}

func TestDispatchOnce_RetriesThenParks(t *testing.T) {
	t.Parallel()
	store := memory.New()
	clock := clockwork.NewFakeClockAt(t0)
	ctx := context.Background()
	require.NoError(t, store.Outbox().Enqueue(ctx, []domain.Intent{
		{Kind: domain.IntentProofReady, ManuscriptID: uuid.New(), Event: "proof_ready"},
	}, t0))

	n := &notifierMock{NotifyFunc: func(context.Context, domain.Intent, *mailer.Recipient) error {
		return errors.New("smtp: 421 try later")
	}}
	d := newDispatcher(store, n, clock)

	stats, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Retried: 1}, stats)

	msgs := store.Outbox().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.OutboxPending, msgs[0].Status)
	assert.True(t, msgs[0].AvailableAt.Equal(t0.Add(time.Minute)))
	require.NotNil(t, msgs[0].LastError)

	stats, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "backoff not elapsed")

	clock.Advance(time.Minute)
	stats, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)

	msgs = store.Outbox().Messages()
	assert.Equal(t, domain.OutboxFailed, msgs[0].Status)
	assert.Equal(t, 2, msgs[0].Attempts)
}

func TestDispatchOnce_SlowNotifierDoesNotBlockTransitions(t *testing.T) {
	t.Parallel()
	store := memory.New()
	clock := clockwork.NewFakeClockAt(t0)
	ctx := context.Background()
	require.NoError(t, store.Outbox().Enqueue(ctx, []domain.Intent{
		{Kind: domain.IntentNotifyEditor, ManuscriptID: uuid.New(), Event: "manuscript_submitted"},
	}, t0))

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := &notifierMock{NotifyFunc: func(context.Context, domain.Intent, *mailer.Recipient) error {
		close(entered)
		<-release
		return nil
	}}

	done := make(chan Stats, 1)
	go func() {
		stats, err := newDispatcher(store, slow, clock).DispatchOnce(ctx)
		assert.NoError(t, err)
		done <- stats
	}()
	<-entered

	// A workflow transition commits while the notifier is stuck.
	committed := make(chan error, 1)
	go func() {
		committed <- memory.NewTxManager(store).RunInTx(ctx, func(ctx context.Context) error {
			m := &domain.Manuscript{ID: uuid.New(), Title: "Paper", SubmitterID: uuid.New(), Status: domain.StatusSubmitted, CreatedAt: t0, UpdatedAt: t0}
			if err := store.Manuscripts().Create(ctx, m); err != nil {
				return err
			}
			return store.Outbox().Enqueue(ctx, []domain.Intent{
				{Kind: domain.IntentNotifyAuthor, ManuscriptID: m.ID, Event: "manuscript_received"},
			}, t0)
		})
	}()
	select {
	case err := <-committed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("transition blocked behind delivery")
	}

	// The leased message is invisible to a second dispatcher; only the new one is claimed.
	other := &notifierMock{NotifyFunc: func(context.Context, domain.Intent, *mailer.Recipient) error { return nil }}
	stats, err := newDispatcher(store, other, clock).DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Delivered: 1}, stats)
	require.Len(t, other.NotifyCalls(), 1)
	assert.Equal(t, "manuscript_received", other.NotifyCalls()[0].In.Event)

	close(release)
	select {
	case stats := <-done:
		assert.Equal(t, Stats{Delivered: 1}, stats)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not finish")
	}
	for _, m := range store.Outbox().Messages() {
		assert.Equal(t, domain.OutboxDelivered, m.Status)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	store := memory.New()
	clock := clockwork.NewFakeClockAt(t0)
	n := &notifierMock{NotifyFunc: func(context.Context, domain.Intent, *mailer.Recipient) error { return nil }}
	d := newDispatcher(store, n, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, store.Outbox().Enqueue(context.Background(), []domain.Intent{
		{Kind: domain.IntentNotifyEditor, ManuscriptID: uuid.New(), Event: "x"},
	}, t0))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(n.NotifyCalls()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
