package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errContended = errors.New("contended")

func retryingUoW(t *testing.T) *SQLiteUnitOfWork {
	t.Helper()
	database, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return &SQLiteUnitOfWork{db: database, retry: func(err error) bool { return errors.Is(err, errContended) }}
}

func TestWithinTx_RetriesBusyTransaction(t *testing.T) {
	uow := retryingUoW(t)
	const insert = `INSERT INTO owners (kind, id, created_at, updated_at) VALUES ('task', 't1', 'x', 'x')`

	runs := 0
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		runs++
		if _, err := tx.ExecContext(ctx, insert); err != nil {
			return err
		}
		if runs < 3 {
			return errContended
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, runs)

	var n int
	require.NoError(t, uow.db.QueryRow(`SELECT COUNT(*) FROM owners`).Scan(&n))
	assert.Equal(t, 1, n, "failed attempts roll back before the re-run")
}

func TestWithinTx_GivesUpAfterMaxBusyRetries(t *testing.T) {
	uow := retryingUoW(t)

	runs := 0
	err := uow.WithinTx(context.Background(), func(context.Context, DBTX) error {
		runs++
		return errContended
	})
	assert.ErrorIs(t, err, errContended)
	assert.Equal(t, maxBusyRetries+1, runs)
}

func TestWithinTx_OtherErrorsAreNotRetried(t *testing.T) {
	uow := retryingUoW(t)

	runs := 0
	err := uow.WithinTx(context.Background(), func(context.Context, DBTX) error {
		runs++
		return errors.New("constraint")
	})
	require.Error(t, err)
	assert.Equal(t, 1, runs)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("database is locked")))
}
