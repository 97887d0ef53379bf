// Package outbox implements the workflow intent outbox using PostgreSQL.
// Intents are written in the same transaction as the state change that
// produced them and delivered later by the dispatcher.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/journal-backend/internal/adapter/postgres"
	"github.com/heartmarshall/journal-backend/internal/domain"
)

const table = "workflow_outbox"

var columns = []string{
	"id", "kind", "manuscript_id", "recipient_id", "event", "data", "status",
	"attempts", "last_error", "available_at", "delivered_at", "created_at",
}

// Repo provides outbox persistence backed by PostgreSQL.
type Repo struct {
	pool postgres.Querier
}

// New creates a new outbox repository.
func New(pool postgres.Querier) *Repo {
	return &Repo{pool: pool}
}

// Enqueue stores intents as pending messages available immediately.
func (r *Repo) Enqueue(ctx context.Context, intents []domain.Intent, now time.Time) error {
	if len(intents) == 0 {
		return nil
	}

	b := postgres.Builder().Insert(table).Columns(columns...)
	for _, in := range intents {
		data, err := marshalData(in.Data)
		if err != nil {
			return err
		}
		b = b.Values(
			uuid.New(), string(in.Kind), in.ManuscriptID, in.RecipientID, in.Event, data,
			string(domain.OutboxPending), 0, nil, now, nil, now,
		)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build enqueue outbox: %w", err)
	}
	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("enqueue %d intents: %w", len(intents), err)
	}
	return nil
}

// ClaimPending leases up to limit pending messages whose available_at has
// passed by moving available_at to leaseUntil, in a single statement. Rows
// locked by a concurrent claim are skipped, and a leased message is claimed
// again only once its lease runs out without a MarkDelivered or MarkFailed.
func (r *Repo) ClaimPending(ctx context.Context, now, leaseUntil time.Time, limit int) ([]domain.OutboxMessage, error) {
	due := squirrel.Select("id").
		From(table).
		Where(squirrel.Eq{"status": string(domain.OutboxPending)}).
		Where(squirrel.LtOrEq{"available_at": now}).
		OrderBy("available_at ASC", "created_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")

	query, args, err := postgres.Builder().
		Update(table).
		Set("available_at", leaseUntil).
		Where(squirrel.Expr("id IN (?)", due)).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim outbox: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.pool), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("claim outbox: %w", err)
	}

	out := make([]domain.OutboxMessage, 0, len(rows))
	for _, rw := range rows {
		m, err := rw.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b domain.OutboxMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// MarkDelivered records a successful delivery.
func (r *Repo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":       string(domain.OutboxDelivered),
		"delivered_at": at,
		"attempts":     squirrel.Expr("attempts + 1"),
		"last_error":   nil,
	})
}

// MarkFailed records a failed attempt. The message is retried at next unless
// terminal is set, in which case it is parked as failed.
func (r *Repo) MarkFailed(ctx context.Context, id uuid.UUID, cause string, next time.Time, terminal bool) error {
	status := domain.OutboxPending
	if terminal {
		status = domain.OutboxFailed
	}
	return r.update(ctx, id, map[string]any{
		"status":       string(status),
		"attempts":     squirrel.Expr("attempts + 1"),
		"last_error":   cause,
		"available_at": next,
	})
}

// Backlog counts pending and parked messages.
func (r *Repo) Backlog(ctx context.Context) (domain.OutboxBacklog, error) {
	query, args, err := postgres.Builder().
		Select("status", "count(*) AS n").
		From(table).
		Where(squirrel.NotEq{"status": string(domain.OutboxDelivered)}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return domain.OutboxBacklog{}, fmt.Errorf("build outbox backlog: %w", err)
	}

	var counts []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.pool), &counts, query, args...); err != nil {
		return domain.OutboxBacklog{}, fmt.Errorf("outbox backlog: %w", err)
	}

	var b domain.OutboxBacklog
	for _, c := range counts {
		switch domain.OutboxStatus(c.Status) {
		case domain.OutboxPending:
			b.Pending = int(c.N)
		case domain.OutboxFailed:
			b.Failed = int(c.N)
		}
	}
	return b, nil
}

func (r *Repo) update(ctx context.Context, id uuid.UUID, set map[string]any) error {
	query, args, err := postgres.Builder().
		Update(table).
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update outbox: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "outbox_message", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox_message %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

type row struct {
	ID           uuid.UUID  `db:"id"`
	Kind         string     `db:"kind"`
	ManuscriptID uuid.UUID  `db:"manuscript_id"`
	RecipientID  *uuid.UUID `db:"recipient_id"`
	Event        string     `db:"event"`
	Data         []byte     `db:"data"`
	Status       string     `db:"status"`
	Attempts     int        `db:"attempts"`
	LastError    *string    `db:"last_error"`
	AvailableAt  time.Time  `db:"available_at"`
	DeliveredAt  *time.Time `db:"delivered_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (r row) toDomain() (domain.OutboxMessage, error) {
	m := domain.OutboxMessage{
		ID: r.ID,
		Intent: domain.Intent{
			Kind:         domain.IntentKind(r.Kind),
			ManuscriptID: r.ManuscriptID,
			RecipientID:  r.RecipientID,
			Event:        r.Event,
		},
		Status:      domain.OutboxStatus(r.Status),
		Attempts:    r.Attempts,
		LastError:   r.LastError,
		AvailableAt: r.AvailableAt,
		DeliveredAt: r.DeliveredAt,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &m.Intent.Data); err != nil {
			return domain.OutboxMessage{}, fmt.Errorf("outbox_message %s unmarshal data: %w", r.ID, err)
		}
	}
	return m, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("outbox marshal data: %w", err)
	}
	return b, nil
}
