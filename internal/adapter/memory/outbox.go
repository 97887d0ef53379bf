package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// OutboxRepo is the in-memory intent outbox.
type OutboxRepo struct{ s *Store }

// Outbox returns the outbox repository of s.
func (s *Store) Outbox() *OutboxRepo { return &OutboxRepo{s: s} }

// Enqueue stores intents as pending messages available at now.
func (r *OutboxRepo) Enqueue(ctx context.Context, intents []domain.Intent, now time.Time) error {
	if len(intents) == 0 {
		return nil
	}
	msgs := make([]domain.OutboxMessage, len(intents))
	keys := make([]rowKey, len(intents))
	for i, in := range intents {
		msgs[i] = domain.OutboxMessage{
			ID:          uuid.New(),
			Intent:      in,
			Status:      domain.OutboxPending,
			AvailableAt: now,
			CreatedAt:   now,
		}
		keys[i] = rowKey{tableOutbox, msgs[i].ID}
	}
	return r.s.write(ctx, keys, func(t *tables) error {
		for _, m := range msgs {
			t.outbox[m.ID] = cloneMessage(m)
		}
		return nil
	})
}

// ClaimPending leases up to limit pending messages available at now, oldest
// first, by moving their available_at to leaseUntil. Messages locked by an
// open transaction are skipped, and a leased message is not claimed again
// until the lease runs out.
func (r *OutboxRepo) ClaimPending(ctx context.Context, now, leaseUntil time.Time, limit int) ([]domain.OutboxMessage, error) {
	tx, done := r.s.begin(ctx)
	defer done()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	due := []domain.OutboxMessage{}
	for _, m := range r.s.data.outbox {
		if m.Status == domain.OutboxPending && !m.AvailableAt.After(now) {
			due = append(due, m)
		}
	}
	slices.SortFunc(due, func(a, b domain.OutboxMessage) int {
		if c := a.AvailableAt.Compare(b.AvailableAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	out := []domain.OutboxMessage{}
	for _, m := range due {
		if limit > 0 && len(out) == limit {
			break
		}
		k := rowKey{tableOutbox, m.ID}
		if !tx.tryLock(k) {
			continue
		}
		tx.record(k)
		m.AvailableAt = leaseUntil
		r.s.data.outbox[m.ID] = m
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// MarkDelivered records a successful delivery.
func (r *OutboxRepo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, func(m *domain.OutboxMessage) {
		m.Status = domain.OutboxDelivered
		m.Attempts++
		m.DeliveredAt = &at
		m.LastError = nil
	})
}

// MarkFailed records a failed attempt; terminal parks the message as failed.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, cause string, next time.Time, terminal bool) error {
	return r.update(ctx, id, func(m *domain.OutboxMessage) {
		m.Status = domain.OutboxPending
		if terminal {
			m.Status = domain.OutboxFailed
		}
		m.Attempts++
		m.LastError = &cause
		m.AvailableAt = next
	})
}

// Backlog counts pending and parked messages.
func (r *OutboxRepo) Backlog(_ context.Context) (domain.OutboxBacklog, error) {
	var b domain.OutboxBacklog
	r.s.read(func(t *tables) {
		for _, m := range t.outbox {
			switch m.Status {
			case domain.OutboxPending:
				b.Pending++
			case domain.OutboxFailed:
				b.Failed++
			}
		}
	})
	return b, nil
}

// Messages returns every stored message regardless of status.
func (r *OutboxRepo) Messages() []domain.OutboxMessage {
	out := []domain.OutboxMessage{}
	r.s.read(func(t *tables) {
		for _, m := range t.outbox {
			out = append(out, cloneMessage(m))
		}
	})
	slices.SortFunc(out, func(a, b domain.OutboxMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (r *OutboxRepo) update(ctx context.Context, id uuid.UUID, fn func(m *domain.OutboxMessage)) error {
	return r.s.write(ctx, []rowKey{{tableOutbox, id}}, func(t *tables) error {
		m, ok := t.outbox[id]
		if !ok {
			return fmt.Errorf("outbox_message %s: %w", id, domain.ErrNotFound)
		}
		fn(&m)
		t.outbox[id] = m
		return nil
	})
}
