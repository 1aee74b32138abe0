package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/models"
)

// PostgresCounter increments counters/<key> documents under a row lock.
type PostgresCounter struct {
	db    *sql.DB
	table string
	start int64
}

func NewPostgresCounter(db *sql.DB, table string, start int64) *PostgresCounter {
	if table == "" {
		table = "documents"
	}
	return &PostgresCounter{db: db, table: table, start: start}
}

// Next reads, increments and writes the counter in one transaction. A missing
// counter is created with the start value inside the same transaction.
func (c *PostgresCounter) Next(ctx context.Context, key string) (int64, error) {
	selectQuery := fmt.Sprintf(
		`SELECT (data->>'currentId')::bigint FROM %s WHERE collection = $1 AND id = $2 FOR UPDATE`,
		c.table,
	)
	insertQuery := fmt.Sprintf(
		`INSERT INTO %s (collection, id, data) VALUES ($1, $2, jsonb_build_object('id', $2::text, 'currentId', $3::bigint))
		ON CONFLICT (collection, id) DO NOTHING`,
		c.table,
	)
	updateQuery := fmt.Sprintf(
		`UPDATE %s SET data = jsonb_set(data, '{currentId}', to_jsonb($3::bigint)), updated_at = NOW()
		WHERE collection = $1 AND id = $2`,
		c.table,
	)

	var next int64
	err := database.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, selectQuery, models.CollectionCounters, key).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			res, insertErr := tx.ExecContext(ctx, insertQuery, models.CollectionCounters, key, c.start)
			if insertErr != nil {
				return fmt.Errorf("initialize counter: %w", insertErr)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				next = c.start
				return nil
			}
			// A concurrent transaction created it first; lock its row.
			err = tx.QueryRowContext(ctx, selectQuery, models.CollectionCounters, key).Scan(&current)
		}
		if err != nil {
			return fmt.Errorf("lock counter: %w", err)
		}

		next = current + 1
		if _, err := tx.ExecContext(ctx, updateQuery, models.CollectionCounters, key, next); err != nil {
			return fmt.Errorf("advance counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCounterUnavailable, key, err)
	}
	return next, nil
}
