package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/tempo/internal/httpapi"
	"github.com/alexanderramin/tempo/internal/service"
	"github.com/alexanderramin/tempo/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	configPath string
	clock      *testutil.Clock
}

// newCLIEnv starts a session store server and writes a config file that
// points the client at it.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := testutil.NewClock(testutil.FixedNow)
	store := service.NewSessionStoreWithClock(testutil.NewTestUoW(testutil.NewTestDB(t)), clock.Now)
	srv := httptest.NewServer(httpapi.NewServer(store, nil).Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("client:\n  store_url: %s\nunload:\n  ledger_path: %s\n",
		srv.URL, filepath.Join(dir, "local.yaml"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &cliEnv{configPath: path, clock: clock}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &App{
		Out:    &out,
		Err:    io.Discard,
		Logger: slog.New(slog.DiscardHandler),
		Now:    e.clock.Now,
	}
	root := NewRootCmd(app)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	root.SetOut(&out)
	err := root.Execute()
	return out.String(), err
}

func TestOwnerCommands(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "owner", "add", "task", "t1", "--name", "Quarterly report")
	require.NoError(t, err)
	assert.Contains(t, out, "Added task t1")

	_, err = env.run(t, "owner", "add", "subtask", "s1", "--parent", "t1")
	require.NoError(t, err)
	_, err = env.run(t, "owner", "add", "employee", "e1")
	require.NoError(t, err)

	out, err = env.run(t, "owner", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarterly report")
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "e1")

	out, err = env.run(t, "owner", "list", "--kind", "employee")
	require.NoError(t, err)
	assert.Contains(t, out, "e1")
	assert.NotContains(t, out, "Quarterly report")

	out, err = env.run(t, "owner", "show", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "└─ s1")

	out, err = env.run(t, "owner", "remove", "employee", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed employee:e1")
	_, err = env.run(t, "owner", "remove", "employee", "e1")
	assert.Error(t, err)
}

func TestOwnerAdd_Rejections(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "owner", "add", "subtask", "s1")
	assert.Error(t, err, "subtask without parent")

	_, err = env.run(t, "owner", "add", "project", "p1")
	assert.Error(t, err)

	_, err = env.run(t, "owner", "list", "--kind", "project")
	assert.Error(t, err)

	_, err = env.run(t, "owner", "show", "missing")
	assert.Error(t, err)
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))

	app := &App{Out: io.Discard, Err: io.Discard}
	root := NewRootCmd(app)
	root.SetArgs([]string{"--config", path, "owner", "list"})
	assert.ErrorContains(t, root.Execute(), "log.format")
}
