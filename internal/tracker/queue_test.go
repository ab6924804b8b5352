package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReplayer struct {
	errs      map[uint64]error
	reloadErr error
	replayed  []uint64
	reloaded  []domain.OwnerRef
}

func (s *scriptedReplayer) Replay(_ context.Context, a domain.PendingAction) error {
	s.replayed = append(s.replayed, a.Seq)
	return s.errs[a.Seq]
}

func (s *scriptedReplayer) Reload(_ context.Context, refs []domain.OwnerRef) error {
	if err := s.reloadErr; err != nil {
		s.reloadErr = nil
		return err
	}
	s.reloaded = append(s.reloaded, refs...)
	return nil
}

func TestQueue_EnqueueAssignsIncreasingSeq(t *testing.T) {
	q := NewQueue()
	a := q.Enqueue(domain.ActionStart, taskRef("t1"), testutil.FixedNow)
	b := q.Enqueue(domain.ActionPause, taskRef("t1"), testutil.FixedNow)
	assert.Less(t, a.Seq, b.Seq)
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.HasPending(taskRef("t1")))
	assert.False(t, q.HasPending(taskRef("t2")))
}

func TestQueue_FlushReplaysInOrderAndReloads(t *testing.T) {
	q := NewQueue()
	q.Enqueue(domain.ActionStart, taskRef("t1"), testutil.FixedNow)
	q.Enqueue(domain.ActionStart, employeeRef("e1"), testutil.FixedNow)
	q.Enqueue(domain.ActionPause, taskRef("t1"), testutil.FixedNow)

	r := &scriptedReplayer{}
	report, err := q.Flush(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3}, r.replayed)
	assert.Equal(t, []domain.OwnerRef{taskRef("t1"), employeeRef("e1")}, r.reloaded)
	assert.True(t, report.Complete())
	assert.Len(t, report.Replayed, 3)
	assert.Zero(t, q.Len())
}

func TestQueue_FlushStopsOnNetworkError(t *testing.T) {
	q := NewQueue()
	q.Enqueue(domain.ActionStart, taskRef("t1"), testutil.FixedNow)
	q.Enqueue(domain.ActionPause, taskRef("t1"), testutil.FixedNow)
	q.Enqueue(domain.ActionStart, taskRef("t2"), testutil.FixedNow)

	r := &scriptedReplayer{errs: map[uint64]error{
		2: &domain.NetworkError{Op: "pause", Err: errors.New("offline")},
	}}
	report, err := q.Flush(context.Background(), r)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	assert.Equal(t, []uint64{1, 2}, r.replayed)
	assert.Empty(t, r.reloaded)
	assert.Equal(t, 2, report.Remaining)
	assert.False(t, report.Complete())

	remaining := q.Snapshot()
	require.Len(t, remaining, 2)
	assert.Equal(t, uint64(2), remaining[0].Seq)
}

func TestQueue_FlushDropsRejectedActions(t *testing.T) {
	q := NewQueue()
	q.Enqueue(domain.ActionPause, taskRef("t1"), testutil.FixedNow)
	q.Enqueue(domain.ActionStart, taskRef("t2"), testutil.FixedNow)

	rejected := &domain.ApplicationError{Op: "pause", Code: domain.CodeNoOpenSession, Err: domain.ErrNoOpenSession}
	r := &scriptedReplayer{errs: map[uint64]error{1: rejected}}
	report, err := q.Flush(context.Background(), r)
	require.NoError(t, err)

	require.Len(t, report.Dropped, 1)
	assert.ErrorIs(t, report.Dropped[0].Err, domain.ErrNoOpenSession)
	assert.Len(t, report.Replayed, 1)
	assert.Equal(t, []domain.OwnerRef{taskRef("t1"), taskRef("t2")}, report.Reloaded)
	assert.Zero(t, q.Len())
}

func TestQueue_FlushEmptyIsNoop(t *testing.T) {
	r := &scriptedReplayer{}
	report, err := NewQueue().Flush(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Empty(t, r.replayed)
	assert.Empty(t, r.reloaded)
}

func TestQueue_FailedReloadIsRetriedByNextFlush(t *testing.T) {
	q := NewQueue()
	q.Enqueue(domain.ActionStart, taskRef("t1"), testutil.FixedNow)
	q.Enqueue(domain.ActionStart, employeeRef("e1"), testutil.FixedNow)

	r := &scriptedReplayer{reloadErr: &domain.NetworkError{Op: "get", Err: errors.New("offline")}}
	report, err := q.Flush(context.Background(), r)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Len(t, report.Replayed, 2)
	assert.Empty(t, report.Reloaded)
	assert.Zero(t, q.Len())
	assert.True(t, q.NeedsReload())

	report, err = q.Flush(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, r.replayed, "nothing is replayed twice")
	assert.Equal(t, []domain.OwnerRef{taskRef("t1"), employeeRef("e1")}, report.Reloaded)
	assert.False(t, q.NeedsReload())
}

func TestQueue_OwnersReplayedBeforeNetworkStopAreReloadedLater(t *testing.T) {
	q := NewQueue()
	q.Enqueue(domain.ActionStart, taskRef("t1"), testutil.FixedNow)
	q.Enqueue(domain.ActionStart, taskRef("t2"), testutil.FixedNow)

	r := &scriptedReplayer{errs: map[uint64]error{
		2: &domain.NetworkError{Op: "start", Err: errors.New("offline")},
	}}
	_, err := q.Flush(context.Background(), r)
	require.Error(t, err)
	assert.True(t, q.NeedsReload())

	delete(r.errs, 2)
	report, err := q.Flush(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []domain.OwnerRef{taskRef("t1"), taskRef("t2")}, report.Reloaded)
}
