package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alexanderramin/tempo/internal/client"
	"github.com/alexanderramin/tempo/internal/config"
	"github.com/alexanderramin/tempo/internal/connectivity"
	"github.com/alexanderramin/tempo/internal/localstore"
	"github.com/alexanderramin/tempo/internal/telemetry"
	"github.com/alexanderramin/tempo/internal/tracking"
	"github.com/spf13/cobra"
)

// App holds what every command needs: settings, logging and terminal
// streams. Config and Logger are filled in before any command runs.
type App struct {
	ConfigPath string
	Config     config.Config
	Logger     *slog.Logger

	Out io.Writer
	Err io.Writer

	IsInteractive func() bool
	Now           func() time.Time
}

// NewRootCmd creates the top-level "tempo" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}
	if app.Now == nil {
		app.Now = time.Now
	}

	root := &cobra.Command{
		Use:           "tempo",
		Short:         "Work-session tracking for tasks, subtasks and employees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "",
		"config file (default $TEMPO_CONFIG or ~/.tempo/config.yaml)")

	root.AddCommand(
		newServeCmd(app),
		newOwnerCmd(app),
		newTrackCmd(app),
		newWatchCmd(app),
	)
	return root
}

func (app *App) loadConfig() error {
	path := app.ConfigPath
	if path == "" {
		path = os.Getenv("TEMPO_CONFIG")
	}
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	app.Config = cfg
	if app.Logger == nil {
		app.Logger = cfg.Log.NewLogger(app.Err)
	}
	return nil
}

func (app *App) storeClient() *client.StoreClient {
	return client.NewStoreClient(client.Config{
		BaseURL: app.Config.Client.StoreURL,
		Timeout: app.Config.Client.Timeout,
	})
}

// session bundles a tracking runtime with the transport it runs over.
type session struct {
	rt     *tracking.Runtime
	store  *client.StoreClient
	beacon *client.Beacon
	grace  time.Duration
}

// openSession wires the HTTP store, the beacon and the on-disk unload ledger
// into a tracking runtime.
func (app *App) openSession(ctx context.Context, logger *slog.Logger) (*session, error) {
	cfg := app.Config
	store := app.storeClient()
	beacon := client.NewBeacon(cfg.Client.StoreURL, cfg.Unload.BeaconGrace, logger)

	rt, err := tracking.Open(ctx, tracking.Options{
		Store:         store,
		Completer:     store,
		Beacon:        beacon,
		Storage:       localstore.NewFile(cfg.Unload.LedgerPath),
		Probe:         store.Ping,
		ProbeInterval: cfg.Connectivity.ProbeInterval,
		Backoff: connectivity.BackoffConfig{
			Initial: cfg.Connectivity.BackoffInitial,
			Max:     cfg.Connectivity.BackoffMax,
		},
		LedgerAllKinds: cfg.Unload.LedgerAllKinds,
		Logger:         logger,
		Observer:       telemetry.NewLogUseCaseObserver(logger),
		Now:            app.Now,
	})
	if err != nil {
		return nil, err
	}
	return &session{rt: rt, store: store, beacon: beacon, grace: cfg.Unload.BeaconGrace}, nil
}

// close flushes, runs the unload guard and gives in-flight beacons the
// configured grace period.
func (s *session) close(ctx context.Context) error {
	closeErr := s.rt.Close(ctx)
	drainCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	_ = s.beacon.Drain(drainCtx)
	return closeErr
}
