package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// UnitOfWork runs one session store operation in a transaction. The
// callback receives a DBTX backed by a *sql.Tx; callers build tx-scoped
// owner and session repositories from it. The callback may run more than
// once, so it must only assign results, never accumulate them.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

const (
	// maxBusyRetries bounds re-runs after SQLite reports the database busy.
	// Start and pause read the open session before writing, and a write from
	// another connection (a beacon pause, say) can invalidate that snapshot.
	maxBusyRetries = 5
	busyBackoff    = 10 * time.Millisecond
)

// SQLiteUnitOfWork implements UnitOfWork using database/sql transactions.
type SQLiteUnitOfWork struct {
	db    *sql.DB
	retry func(error) bool
}

func NewSQLiteUnitOfWork(db *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db, retry: IsBusy}
}

// WithinTx commits when fn returns nil and rolls back on error or panic. A
// transaction that fails because the database is busy is re-run from the
// start with a short linear backoff.
func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	for attempt := 1; ; attempt++ {
		err := u.runTx(ctx, fn)
		if err == nil || attempt > maxBusyRetries || !u.retry(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * busyBackoff):
		}
	}
}

func (u *SQLiteUnitOfWork) runTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsBusy reports whether err is SQLite's SQLITE_BUSY, including extended
// codes such as SQLITE_BUSY_SNAPSHOT.
func IsBusy(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY
}
