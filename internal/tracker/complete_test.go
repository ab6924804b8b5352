package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedScenarioTask(h *harness) {
	h.store.Put(testutil.NewTestTask("T"))
	h.store.Put(testutil.NewTestSubtask("S1", "T", testutil.WithClosedSession(testutil.FixedNow.Add(-time.Hour), 30*time.Minute)))
	h.store.Put(testutil.NewTestSubtask("S2", "T", testutil.WithOpenSession(testutil.FixedNow)))
}

func TestComplete_PausesRunningSubtasksAndSumsHours(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenarioTask(h)
	require.NoError(t, h.engine.Load(ctx))
	h.clock.Advance(45 * time.Minute)

	c, err := h.engine.Complete(ctx, "T")
	require.NoError(t, err)

	require.Len(t, c.Paused, 1)
	assert.Equal(t, subtaskRef("S2"), c.Paused[0].Command.Owner)
	assert.Equal(t, OutcomeConfirmed, c.Paused[0].Outcome)
	assert.InDelta(t, 1.25, c.HoursWorked, 1e-9)
	assert.True(t, c.Task.IsCompleted)

	stored := h.store.Owner(taskRef("T"))
	assert.True(t, stored.IsCompleted)
	assert.InDelta(t, 1.25, stored.HoursWorked, 1e-9)
	assert.True(t, h.owner(t, taskRef("T")).IsCompleted)
	assert.False(t, h.owner(t, subtaskRef("S2")).HasOpenSession())

	calls := h.store.Calls()
	pauseAt, completeAt := -1, -1
	for i, c := range calls {
		switch c {
		case "pause subtask:S2":
			pauseAt = i
		case "complete T":
			completeAt = i
		}
	}
	require.NotEqual(t, -1, pauseAt)
	assert.Less(t, pauseAt, completeAt, "subtask must be paused before the task completes")
}

func TestComplete_PausesSubtaskStartedSinceLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("T"))
	h.store.Put(testutil.NewTestSubtask("S1", "T"))
	require.NoError(t, h.engine.Load(ctx))
	require.False(t, h.owner(t, subtaskRef("S1")).HasOpenSession())

	// S1 was started on another device after the load.
	h.store.Put(testutil.NewTestSubtask("S1", "T", testutil.WithOpenSession(testutil.FixedNow)))
	h.clock.Advance(30 * time.Minute)

	c, err := h.engine.Complete(ctx, "T")
	require.NoError(t, err)

	require.Len(t, c.Paused, 1)
	assert.Equal(t, subtaskRef("S1"), c.Paused[0].Command.Owner)
	assert.Equal(t, OutcomeConfirmed, c.Paused[0].Outcome)
	assert.InDelta(t, 0.5, c.HoursWorked, 1e-9)
	assert.False(t, h.store.Owner(subtaskRef("S1")).HasOpenSession())
	assert.True(t, h.store.Owner(taskRef("T")).IsCompleted)
}

func TestComplete_PausesSubtaskCreatedSinceLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("T"))
	require.NoError(t, h.engine.Load(ctx))

	h.store.Put(testutil.NewTestSubtask("S9", "T", testutil.WithOpenSession(testutil.FixedNow)))
	h.clock.Advance(time.Hour)

	c, err := h.engine.Complete(ctx, "T")
	require.NoError(t, err)
	require.Len(t, c.Paused, 1)
	assert.InDelta(t, 1.0, c.HoursWorked, 1e-9)
	assert.False(t, h.store.Owner(subtaskRef("S9")).HasOpenSession())
}

func TestComplete_TaskWithoutSubtasks(t *testing.T) {
	h := newHarness(t)
	h.store.Put(testutil.NewTestTask("T", testutil.WithClosedSession(testutil.FixedNow, time.Hour)))

	c, err := h.engine.Complete(context.Background(), "T")
	require.NoError(t, err)
	assert.Zero(t, c.HoursWorked)
	assert.Empty(t, c.Paused)
}

func TestComplete_RejectedSubtaskPauseDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenarioTask(h)
	require.NoError(t, h.engine.Load(ctx))
	h.clock.Advance(time.Hour)

	h.store.FailNext(testutil.OpPause, &domain.ApplicationError{Op: "pause", Code: domain.CodeInvalidRequest, Err: errors.New("locked")})
	c, err := h.engine.Complete(ctx, "T")
	require.NoError(t, err)
	require.Len(t, c.Paused, 1)
	assert.Equal(t, OutcomeRolledBack, c.Paused[0].Outcome)
	// S2 is still open, so only S1 counts.
	assert.InDelta(t, 0.5, c.HoursWorked, 1e-9)
	assert.True(t, c.Task.IsCompleted)
}

func TestComplete_SubtaskPausedElsewhereIsNotPausedAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenarioTask(h)
	require.NoError(t, h.engine.Load(ctx))

	// S2 was paused on another device after 15 minutes.
	h.store.Put(testutil.NewTestSubtask("S2", "T", testutil.WithClosedSession(testutil.FixedNow, 15*time.Minute)))
	h.clock.Advance(time.Hour)

	c, err := h.engine.Complete(ctx, "T")
	require.NoError(t, err)
	assert.Empty(t, c.Paused)
	assert.Zero(t, h.store.CallCount(testutil.OpPause))
	assert.InDelta(t, 0.75, c.HoursWorked, 1e-9)
}

func TestComplete_AbortsWhenReReadFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(testutil.NewTestTask("T"))
	h.store.Put(testutil.NewTestSubtask("S1", "T", testutil.WithClosedSession(testutil.FixedNow, time.Hour)))
	require.NoError(t, h.engine.Load(ctx))

	// Every read fails: the refresh before the cascade, the subtask refresh
	// and the re-read after it.
	for range 3 {
		h.store.FailNext(testutil.OpGet, &domain.NetworkError{Op: "get", Err: context.DeadlineExceeded})
	}
	_, err := h.engine.Complete(ctx, "T")
	require.Error(t, err)
	assert.True(t, domain.IsNetworkError(err))
	assert.Zero(t, h.store.CallCount(testutil.OpComplete))
	assert.False(t, h.store.Owner(taskRef("T")).IsCompleted)
}

func TestComplete_OfflineSubtaskPauseAborts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedScenarioTask(h)
	require.NoError(t, h.engine.Load(ctx))
	h.store.SetOffline(true)

	_, err := h.engine.Complete(ctx, "T")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 1, h.queue.Len(), "the subtask pause stays queued")
	assert.False(t, h.owner(t, subtaskRef("S2")).HasOpenSession())
}

func TestComplete_AlreadyCompleted(t *testing.T) {
	h := newHarness(t)
	h.store.Put(testutil.NewTestTask("T", testutil.WithCompleted(testutil.FixedNow, 2)))

	_, err := h.engine.Complete(context.Background(), "T")
	require.Error(t, err)
	assert.True(t, domain.IsApplicationError(err))
	assert.ErrorIs(t, err, domain.ErrOwnerCompleted)
}

func TestComplete_RequiresCompleter(t *testing.T) {
	h := newHarness(t)
	e := NewEngine(h.store, h.registry, h.queue)
	_, err := e.Complete(context.Background(), "T")
	assert.ErrorIs(t, err, ErrNoCompleter)
}
