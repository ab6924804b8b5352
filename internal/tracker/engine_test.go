package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/telemetry"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartThenPause_ElapsedHours(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestEmployee("o1"))
	ref := employeeRef("o1")

	r, err := h.engine.Start(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, r.Outcome)
	o := h.owner(t, ref)
	require.Len(t, o.Sessions, 1)
	assert.True(t, o.Sessions[0].IsOpen())
	assert.False(t, strings.HasPrefix(o.Sessions[0].ID, LocalSessionPrefix), "optimistic id must be replaced")

	h.clock.Advance(90 * time.Minute)
	r, err = h.engine.Pause(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, r.Outcome)

	o = h.owner(t, ref)
	require.Len(t, o.Sessions, 1)
	assert.False(t, o.Sessions[0].IsOpen())
	assert.InDelta(t, 1.5, o.ElapsedHours(), 1e-9)
}

func TestPause_WithoutOpenSessionIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1", testutil.WithClosedSession(testutil.FixedNow.Add(-time.Hour), 30*time.Minute)))
	require.NoError(t, h.engine.Load(ctx))
	before := h.owner(t, taskRef("t1"))

	r, err := h.engine.Pause(ctx, taskRef("t1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, r.Outcome)
	assert.Equal(t, before, h.owner(t, taskRef("t1")))
	assert.Zero(t, h.store.CallCount(testutil.OpPause))
}

func TestPause_UnknownOwnerIsNoop(t *testing.T) {
	h := newHarness(t)
	r, err := h.engine.Pause(context.Background(), taskRef("ghost"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, r.Outcome)
	assert.Empty(t, h.store.Calls())
}

func TestStart_TwiceYieldsOneOpenSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))

	first, err := h.engine.Start(ctx, taskRef("t1"))
	require.NoError(t, err)
	second, err := h.engine.Start(ctx, taskRef("t1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoop, second.Outcome)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, 1, openCount(h.owner(t, taskRef("t1"))))
	assert.Equal(t, 1, h.store.CallCount(testutil.OpStart))
}

func TestPause_TwiceSecondIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1", testutil.WithOpenSession(testutil.FixedNow)))
	require.NoError(t, h.engine.Load(ctx))
	h.clock.Advance(time.Minute)

	first, err := h.engine.Pause(ctx, taskRef("t1"))
	require.NoError(t, err)
	second, err := h.engine.Pause(ctx, taskRef("t1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, OutcomeNoop, second.Outcome)
	assert.Equal(t, 1, h.store.CallCount(testutil.OpPause))
}

func TestStartPause_BackToBackResolveInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestSubtask("s1", "t1"))
	ref := subtaskRef("s1")

	releaseStart := h.store.Hold(testutil.OpStart)
	releasePause := h.store.Hold(testutil.OpPause)
	defer releaseStart()
	defer releasePause()

	startCh := h.engine.Submit(ctx, Command{Action: domain.ActionStart, Owner: ref})
	pauseCh := h.engine.Submit(ctx, Command{Action: domain.ActionPause, Owner: ref})

	require.Eventually(t, func() bool { return h.store.CallCount(testutil.OpStart) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, h.store.CallCount(testutil.OpPause), "pause must wait for start to resolve")
	assert.Equal(t, 1, openCount(h.owner(t, ref)))

	releaseStart()
	require.Eventually(t, func() bool { return h.store.CallCount(testutil.OpPause) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.clock.Advance(5 * time.Minute)
	releasePause()

	start := <-startCh
	pause := <-pauseCh
	assert.Equal(t, OutcomeConfirmed, start.Outcome)
	assert.Equal(t, OutcomeConfirmed, pause.Outcome)

	o := h.owner(t, ref)
	require.Len(t, o.Sessions, 1)
	s := o.Sessions[0]
	require.False(t, s.IsOpen())
	assert.True(t, s.EndedAt.After(s.StartedAt))
	assert.Equal(t, h.store.Owner(ref).Sessions, o.Sessions)
}

func TestCommands_DifferentOwnersRunConcurrently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	h.store.Put(testutil.NewTestEmployee("e1", testutil.WithOpenSession(testutil.FixedNow)))
	require.NoError(t, h.engine.Load(ctx))

	release := h.store.Hold(testutil.OpStart)
	defer release()
	startCh := h.engine.Submit(ctx, Command{Action: domain.ActionStart, Owner: taskRef("t1")})
	require.Eventually(t, func() bool { return h.store.CallCount(testutil.OpStart) == 1 }, 2*time.Second, 5*time.Millisecond)

	h.clock.Advance(time.Hour)
	r, err := h.engine.Pause(ctx, employeeRef("e1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, r.Outcome)

	release()
	assert.Equal(t, OutcomeConfirmed, (<-startCh).Outcome)
}

func TestStart_NetworkErrorQueuesAndFlushes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	require.NoError(t, h.engine.Load(ctx))
	ref := taskRef("t1")

	h.store.SetOffline(true)
	r, err := h.engine.Start(ctx, ref)
	require.Error(t, err)
	assert.True(t, domain.IsNetworkError(err))
	assert.Equal(t, OutcomeQueued, r.Outcome)
	assert.EqualValues(t, 1, h.netErrs.Load())

	o := h.owner(t, ref)
	require.Equal(t, 1, openCount(o))
	assert.True(t, strings.HasPrefix(o.Sessions[0].ID, LocalSessionPrefix))
	pending := h.queue.Snapshot()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ActionStart, pending[0].Kind)
	assert.Equal(t, ref, pending[0].Owner)

	h.store.SetOffline(false)
	report, err := h.engine.FlushPending(ctx)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Zero(t, h.queue.Len())

	assert.Equal(t, h.store.Owner(ref).Sessions, h.owner(t, ref).Sessions)
}

func TestFlush_StillOfflineKeepsQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	require.NoError(t, h.engine.Load(ctx))

	h.store.SetOffline(true)
	_, _ = h.engine.Start(ctx, taskRef("t1"))

	report, err := h.engine.FlushPending(ctx)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 1, report.Remaining)
	assert.Equal(t, 1, h.queue.Len())
	assert.Equal(t, 1, openCount(h.owner(t, taskRef("t1"))))
}

func TestCommands_QueueBehindPendingActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	require.NoError(t, h.engine.Load(ctx))
	ref := taskRef("t1")

	h.store.SetOffline(true)
	_, _ = h.engine.Start(ctx, ref)
	h.store.SetOffline(false)

	h.clock.Advance(20 * time.Minute)
	r, err := h.engine.Pause(ctx, ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAwaitingReplay)
	assert.Equal(t, OutcomeQueued, r.Outcome)
	assert.Zero(t, h.store.CallCount(testutil.OpPause), "pause must not overtake the queued start")
	assert.Equal(t, 2, h.queue.Len())

	_, err = h.engine.FlushPending(ctx)
	require.NoError(t, err)

	o := h.owner(t, ref)
	require.Len(t, o.Sessions, 1)
	assert.False(t, o.Sessions[0].IsOpen())
	assert.Equal(t, h.store.Owner(ref).Sessions, o.Sessions)
}

func TestFlush_ReloadFailureIsRetriedWithEmptyQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	require.NoError(t, h.engine.Load(ctx))
	ref := taskRef("t1")

	h.store.SetOffline(true)
	_, _ = h.engine.Start(ctx, ref)
	h.store.SetOffline(false)

	h.store.FailNext(testutil.OpGet, &domain.NetworkError{Op: "get", Err: context.DeadlineExceeded})
	_, err := h.engine.FlushPending(ctx)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Zero(t, h.queue.Len())
	assert.True(t, strings.HasPrefix(h.owner(t, ref).Sessions[0].ID, LocalSessionPrefix))

	report, err := h.engine.FlushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.OwnerRef{ref}, report.Reloaded)
	assert.False(t, h.queue.NeedsReload())
	assert.Equal(t, h.store.Owner(ref).Sessions, h.owner(t, ref).Sessions)
	// One offline attempt and one replay.
	assert.Equal(t, 2, h.store.CallCount(testutil.OpStart))
}

func TestFlush_RejectedReplayDropsAndReloads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1", testutil.WithOpenSession(testutil.FixedNow)))
	require.NoError(t, h.engine.Load(ctx))
	ref := taskRef("t1")

	h.store.SetOffline(true)
	h.clock.Advance(10 * time.Minute)
	_, _ = h.engine.Pause(ctx, ref)
	h.store.SetOffline(false)

	// Paused elsewhere while we were offline.
	h.store.Put(testutil.NewTestTask("t1", testutil.WithClosedSession(testutil.FixedNow, 5*time.Minute)))

	report, err := h.engine.FlushPending(ctx)
	require.NoError(t, err)
	require.Len(t, report.Dropped, 1)
	assert.ErrorIs(t, report.Dropped[0].Err, domain.ErrNoOpenSession)
	assert.Equal(t, []domain.OwnerRef{ref}, report.Reloaded)
	assert.InDelta(t, 5.0/60, h.owner(t, ref).ElapsedHours(), 1e-9)
}

func TestStart_ApplicationErrorRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1", testutil.WithClosedSession(testutil.FixedNow.Add(-2*time.Hour), time.Hour)))
	require.NoError(t, h.engine.Load(ctx))
	before := h.owner(t, taskRef("t1"))

	h.store.FailNext(testutil.OpStart, &domain.ApplicationError{Op: "start", Code: domain.CodeOwnerCompleted, Err: domain.ErrOwnerCompleted})
	r, err := h.engine.Start(ctx, taskRef("t1"))
	require.Error(t, err)
	assert.True(t, domain.IsApplicationError(err))
	assert.ErrorIs(t, err, domain.ErrOwnerCompleted)
	assert.Equal(t, OutcomeRolledBack, r.Outcome)

	assert.Equal(t, before.Sessions, h.owner(t, taskRef("t1")).Sessions)
	assert.Zero(t, h.queue.Len())
	assert.Zero(t, h.netErrs.Load())
}

func TestPause_ApplicationErrorRestoresOpenSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestEmployee("e1", testutil.WithOpenSession(testutil.FixedNow)))
	require.NoError(t, h.engine.Load(ctx))

	h.store.FailNext(testutil.OpPause, errors.New("constraint failed"))
	r, err := h.engine.Pause(ctx, employeeRef("e1"))
	require.Error(t, err)
	assert.True(t, domain.IsApplicationError(err), "unclassified errors are treated as rejections")
	assert.Equal(t, OutcomeRolledBack, r.Outcome)
	assert.Equal(t, 1, openCount(h.owner(t, employeeRef("e1"))))
}

func TestStart_UnknownOwnerIsFetched(t *testing.T) {
	h := newHarness(t)
	h.store.Put(testutil.NewTestTask("t1", testutil.WithName("Write report")))

	_, err := h.engine.Start(context.Background(), taskRef("t1"))
	require.NoError(t, err)
	assert.Equal(t, "Write report", h.owner(t, taskRef("t1")).Name)
}

func TestStart_MissingOwnerIsRejected(t *testing.T) {
	h := newHarness(t)
	r, err := h.engine.Start(context.Background(), taskRef("ghost"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
	assert.Equal(t, OutcomeRolledBack, r.Outcome)
	_, ok := h.registry.Get(taskRef("ghost"))
	assert.False(t, ok)
}

func TestStart_UnknownOwnerWhileOffline(t *testing.T) {
	h := newHarness(t)
	h.store.Put(testutil.NewTestTask("t1"))
	h.store.SetOffline(true)

	r, err := h.engine.Start(context.Background(), taskRef("t1"))
	require.Error(t, err)
	assert.Equal(t, OutcomeQueued, r.Outcome)
	assert.Equal(t, 1, openCount(h.owner(t, taskRef("t1"))))
	assert.Equal(t, 1, h.queue.Len())
}

func TestStart_DeadlineCountsAsNetworkFailure(t *testing.T) {
	h := newHarness(t)
	h.store.Put(testutil.NewTestTask("t1"))
	require.NoError(t, h.engine.Load(context.Background()))
	release := h.store.Hold(testutil.OpStart)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r, err := h.engine.Start(ctx, taskRef("t1"))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, OutcomeQueued, r.Outcome)
	assert.Equal(t, 1, h.queue.Len())
}

func TestLoad_KeepsOwnersWithPendingActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	require.NoError(t, h.engine.Load(ctx))

	h.store.SetOffline(true)
	_, _ = h.engine.Start(ctx, taskRef("t1"))
	h.store.SetOffline(false)

	require.NoError(t, h.engine.Load(ctx, domain.OwnerTask))
	assert.Equal(t, 1, openCount(h.owner(t, taskRef("t1"))), "optimistic state must survive a reload")
}

func TestLoad_OfflineReportsNetworkError(t *testing.T) {
	h := newHarness(t)
	h.store.SetOffline(true)
	err := h.engine.Load(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsNetworkError(err))
}

func TestEngine_ObservesCommands(t *testing.T) {
	rec := &telemetry.Recorder{}
	h := newHarness(t, WithObserver(rec))
	h.store.Put(testutil.NewTestTask("t1"))

	_, err := h.engine.Start(context.Background(), taskRef("t1"))
	require.NoError(t, err)
	_, err = h.engine.Pause(context.Background(), taskRef("t1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "pause"}, rec.Names())
}

func TestEngine_InvariantHoldsUnderConcurrentCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("t1"))
	ref := taskRef("t1")
	changes := h.registry.Subscribe(256)

	var results []<-chan Result
	for i := 0; i < 20; i++ {
		action := domain.ActionStart
		if i%2 == 1 {
			action = domain.ActionPause
		}
		results = append(results, h.engine.Submit(ctx, Command{Action: action, Owner: ref}))
	}
	for _, ch := range results {
		<-ch
	}

	for {
		select {
		case c := <-changes:
			require.LessOrEqual(t, openCount(c.Owner), 1)
		default:
			assert.Equal(t, h.store.Owner(ref).Sessions, h.owner(t, ref).Sessions)
			return
		}
	}
}
