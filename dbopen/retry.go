package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	busyRetries = 3
	busyBackoff = 100 * time.Millisecond
)

// IsBusy reports whether err indicates an SQLite BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// Exec executes a statement, retrying on SQLITE_BUSY with linear backoff.
// Concurrent media upserts from parallel goroutines hit BUSY under WAL
// contention; a short retry absorbs that without surfacing errors.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for i := 0; i < busyRetries; i++ {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !IsBusy(err) {
			return nil, err
		}
		lastErr = err
		if err := sleepCtx(ctx, time.Duration(i+1)*busyBackoff); err != nil {
			return nil, fmt.Errorf("dbopen: retry interrupted: %w", err)
		}
	}
	return nil, fmt.Errorf("dbopen: exec busy after %d retries: %w", busyRetries, lastErr)
}

// RunTx executes fn inside a transaction, retrying the whole transaction
// on SQLITE_BUSY with linear backoff.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var lastErr error
	for i := 0; i < busyRetries; i++ {
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		lastErr = err
		if err := sleepCtx(ctx, time.Duration(i+1)*busyBackoff); err != nil {
			return fmt.Errorf("dbopen: retry interrupted: %w", err)
		}
	}
	return fmt.Errorf("dbopen: tx busy after %d retries: %w", busyRetries, lastErr)
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
