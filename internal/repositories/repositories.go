package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// counters maps a table to the single-row table holding its sequence.
var counters = map[string]string{
	"rolls": "rolls_sequence",
}

// nextSequence bumps and returns the counter for table. Callers run it in the same transaction
// as the insert that consumes the number so a failed insert does not leave a gap.
func nextSequence(q execer, table string) (int, error) {
	counter, ok := counters[table]
	if !ok {
		return 0, fmt.Errorf("no sequence for table %q", table)
	}

	var n int
	err := q.QueryRowContext(context.Background(),
		"UPDATE "+counter+" SET value = value + 1 WHERE id = 1 RETURNING value").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s: %w", counter, err)
	}
	return n, nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// affectedOne returns notFound when result touched no rows.
func affectedOne(result sql.Result, notFound error) error {
	switch n, err := result.RowsAffected(); {
	case err != nil:
		return fmt.Errorf("failed to get affected rows: %w", err)
	case n == 0:
		return notFound
	}
	return nil
}
