package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexanderramin/tempo/internal/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of every owner's running and total time",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.IsInteractive != nil && !app.IsInteractive() {
				return fmt.Errorf("watch needs an interactive terminal")
			}
			return runWatch(cmd.Context(), app)
		},
	}
}

func runWatch(ctx context.Context, app *App) error {
	// The alt screen owns the terminal, so records go to a file.
	logFile, err := os.OpenFile(filepath.Join(config.Dir(), "watch.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	var w io.Writer = io.Discard
	if err == nil {
		defer logFile.Close()
		w = logFile
	}
	logger := app.Config.Log.NewLogger(w)

	sess, err := app.openSession(ctx, logger)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newWatchModel(sess.rt, app.Now), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := sess.close(closeCtx); err != nil {
		fmt.Fprintf(app.Err, "%d actions could not be delivered: %v\n", sess.rt.Queue.Len(), err)
	}
	return runErr
}
