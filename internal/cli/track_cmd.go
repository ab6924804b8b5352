package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/config"
	"github.com/alexanderramin/tempo/internal/connectivity"
	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	maxHistoryLines = 500
	closeTimeout    = 5 * time.Second
)

func newTrackCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Interactive shell for starting and pausing sessions",
		Long: `Start an interactive shell that tracks sessions against the session
store. Commands apply optimistically and queue while the store is
unreachable. Leaving the shell flushes the queue and runs the unload guard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd.Context(), app)
		},
	}
}

func shellPrompt(status connectivity.Status, pending int) string {
	if status == connectivity.Online && pending == 0 {
		return "tempo ❯ "
	}
	return fmt.Sprintf("tempo (%s, %d pending) ❯ ", status, pending)
}

func runTrack(parent context.Context, app *App) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	var registry atomic.Pointer[tracker.Registry]
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt(connectivity.Online, 0),
		HistoryFile:     filepath.Join(config.Dir(), "shell_history"),
		HistoryLimit:    maxHistoryLines,
		AutoComplete:    newShellCompleter(registry.Load),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	defer rl.Close()

	// Log through readline so records do not clobber the prompt.
	logger := app.Config.Log.NewLogger(rl.Stderr())
	sess, err := app.openSession(ctx, logger)
	if err != nil {
		return err
	}
	registry.Store(sess.rt.Registry)

	out := rl.Stdout()
	sh := newTrackShell(sess.rt, out, app.Now, sess.store.SetForcedOffline)
	if app.IsInteractive == nil || app.IsInteractive() {
		fmt.Fprint(out, formatter.FormatShellWelcome())
	}

	updatePrompt := func() {
		rl.SetPrompt(shellPrompt(sess.rt.Monitor.Status(), sess.rt.Queue.Len()))
		rl.Refresh()
	}
	updatePrompt()

	statusCh := sess.rt.Monitor.Subscribe(4)
	go func() {
		for status := range statusCh {
			fmt.Fprintln(out, formatter.ConnectivityPill(status))
			updatePrompt()
		}
	}()

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF on ctrl-D
			break
		}
		if sh.exec(ctx, line) {
			break
		}
		updatePrompt()
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := sess.close(closeCtx); err != nil {
		fmt.Fprintln(app.Err, formatter.StyleYellow.Render(
			fmt.Sprintf("%d actions could not be delivered: %v", sess.rt.Queue.Len(), err)))
	}
	return nil
}
