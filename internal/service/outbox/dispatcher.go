// Package outbox delivers the intents that workflow transitions persisted to
// the outbox. Delivery is at-least-once: a message is marked delivered only
// after the notifier returned without error. Messages are leased by the claim
// and the notifier runs outside any transaction, so a slow mail server never
// holds locks that workflow transitions need.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/journal-backend/internal/adapter/mailer"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

type outboxRepo interface {
	ClaimPending(ctx context.Context, now, leaseUntil time.Time, limit int) ([]domain.OutboxMessage, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, next time.Time, terminal bool) error
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type notifier interface {
	Notify(ctx context.Context, in domain.Intent, rcpt *mailer.Recipient) error
}

// Config holds dispatcher tuning.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	// ClaimLease is how long a claimed message stays invisible to other
	// claims. It must exceed the slowest expected delivery.
	ClaimLease time.Duration
}

// Stats counts the outcome of one dispatch pass.
type Stats struct {
	Delivered int
	Retried   int
	Failed    int
}

// Dispatcher claims pending outbox messages and hands them to a notifier.
type Dispatcher struct {
	repo     outboxRepo
	users    userReader
	notifier notifier
	clock    clockwork.Clock
	cfg      Config
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	log *slog.Logger,
	repo outboxRepo,
	users userReader,
	n notifier,
	clock clockwork.Clock,
	cfg Config,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	return &Dispatcher{
		repo:     repo,
		users:    users,
		notifier: n,
		clock:    clock,
		cfg:      cfg,
		log:      log.With("service", "outbox"),
	}
}

// Run dispatches on every poll interval until ctx is cancelled. Pass errors
// are logged and the loop keeps going.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.InfoContext(ctx, "outbox dispatcher started", slog.Duration("poll_interval", d.cfg.PollInterval))
	ticker := d.clock.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.InfoContext(ctx, "outbox dispatcher stopped")
			return nil
		case <-ticker.Chan():
			if _, err := d.DispatchOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.ErrorContext(ctx, "outbox dispatch failed", slog.String("error", err.Error()))
			}
		}
	}
}

// DispatchOnce leases one batch and delivers it. The claim and each outcome
// are separate auto-committed writes; a dispatcher that dies mid-batch leaves
// its messages to be reclaimed once the lease expires.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	now := d.clock.Now().UTC()
	msgs, err := d.repo.ClaimPending(ctx, now, now.Add(d.cfg.ClaimLease), d.cfg.BatchSize)
	if err != nil {
		return Stats{}, fmt.Errorf("claim pending: %w", err)
	}

	for _, m := range msgs {
		deliverErr := d.deliver(ctx, m)
		if deliverErr == nil {
			if err := d.repo.MarkDelivered(ctx, m.ID, d.clock.Now().UTC()); err != nil {
				return stats, fmt.Errorf("mark delivered: %w", err)
			}
			stats.Delivered++
			continue
		}

		attempt := m.Attempts + 1
		terminal := attempt >= d.cfg.MaxAttempts
		next := d.clock.Now().UTC().Add(d.cfg.RetryBackoff * time.Duration(attempt))
		if err := d.repo.MarkFailed(ctx, m.ID, deliverErr.Error(), next, terminal); err != nil {
			return stats, fmt.Errorf("mark failed: %w", err)
		}
		level := slog.LevelWarn
		if terminal {
			level = slog.LevelError
			stats.Failed++
		} else {
			stats.Retried++
		}
		d.log.Log(ctx, level, "intent delivery failed",
			slog.String("message_id", m.ID.String()),
			slog.String("kind", m.Intent.Kind.String()),
			slog.Int("attempt", attempt),
			slog.Bool("terminal", terminal),
			slog.String("error", deliverErr.Error()),
		)
	}

	if stats.Delivered+stats.Retried+stats.Failed > 0 {
		d.log.InfoContext(ctx, "outbox batch dispatched",
			slog.Int("delivered", stats.Delivered),
			slog.Int("retried", stats.Retried),
			slog.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

func (d *Dispatcher) deliver(ctx context.Context, m domain.OutboxMessage) error {
	rcpt, err := d.recipient(ctx, m.Intent.RecipientID)
	if err != nil {
		return err
	}
	return d.notifier.Notify(ctx, m.Intent, rcpt)
}

// recipient resolves the addressee. Unknown users fall back to the editorial
// office, like intents without a recipient.
func (d *Dispatcher) recipient(ctx context.Context, id *uuid.UUID) (*mailer.Recipient, error) {
	if id == nil {
		return nil, nil
	}
	u, err := d.users.GetByID(ctx, *id)
	if errors.Is(err, domain.ErrNotFound) {
		d.log.WarnContext(ctx, "intent recipient unknown, routing to office", slog.String("user_id", id.String()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	return &mailer.Recipient{Email: u.Email, Name: u.Name}, nil
}
