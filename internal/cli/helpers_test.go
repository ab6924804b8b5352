package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/alexanderramin/tempo/internal/tracking"
	"github.com/stretchr/testify/require"
)

type shellFixture struct {
	store *testutil.FakeStore
	clock *testutil.Clock
	rt    *tracking.Runtime
	out   *bytes.Buffer
	shell *trackShell
}

// newShellFixture seeds t1 with subtasks s1 and s2, plus employee e1.
func newShellFixture(t *testing.T) *shellFixture {
	t.Helper()
	f := &shellFixture{
		clock: testutil.NewClock(testutil.FixedNow),
		out:   &bytes.Buffer{},
	}
	f.store = testutil.NewFakeStore(f.clock.Now)
	f.store.Put(testutil.NewTestTask("t1", testutil.WithSubtasks("s1", "s2")))
	f.store.Put(testutil.NewTestSubtask("s1", "t1"))
	f.store.Put(testutil.NewTestSubtask("s2", "t1"))
	f.store.Put(testutil.NewTestEmployee("e1"))

	rt, err := tracking.Open(context.Background(), tracking.Options{
		Store:     f.store,
		Completer: f.store,
		Now:       f.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	f.rt = rt
	f.shell = newTrackShell(rt, f.out, f.clock.Now, f.store.SetOffline)
	return f
}

// run executes one line and returns what it printed.
func (f *shellFixture) run(line string) string {
	f.out.Reset()
	f.shell.exec(context.Background(), line)
	return f.out.String()
}
