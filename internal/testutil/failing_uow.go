package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alexanderramin/tempo/internal/db"
)

// FailingExecUoW is a test UoW whose transactions fail the first write
// whose SQL contains FailOn, e.g. "UPDATE owners" to break the owner touch
// that follows a session insert. Store operations with several writes can
// then be checked for all-or-nothing behaviour. Reads pass through.
type FailingExecUoW struct {
	DB     *sql.DB
	FailOn string
	Err    error
}

func (u *FailingExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	wrapped := &failingExec{DBTX: tx, failOn: u.FailOn, err: u.Err}
	if fnErr := fn(ctx, wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failingExec struct {
	db.DBTX
	failOn string
	err    error
	failed bool
}

func (f *failingExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if !f.failed && strings.Contains(query, f.failOn) {
		f.failed = true
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
