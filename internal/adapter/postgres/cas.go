package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

// UpdateCAS writes set to the row of table identified by id, but only when its
// stored updated_at equals expected. Zero affected rows is reported as
// *domain.ConflictError carrying the current token, or as domain.ErrNotFound
// when the row does not exist.
func UpdateCAS(ctx context.Context, q Querier, table string, entity domain.EntityType, id uuid.UUID, expected time.Time, set map[string]any) error {
	name := strings.ToLower(string(entity))

	query, args, err := Builder().
		Update(table).
		SetMap(set).
		Where(squirrel.Eq{"id": id, "updated_at": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s: %w", name, err)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return MapError(err, name, id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var actual time.Time
	err = q.QueryRow(ctx, "SELECT updated_at FROM "+table+" WHERE id = $1", id).Scan(&actual)
	if errors.Is(err, pgx.ErrNoRows) {
		return MapError(err, name, id)
	}
	if err != nil {
		return fmt.Errorf("%s %s: read current token: %w", name, id, err)
	}
	return &domain.ConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}
