// Package tracking composes the timer engine, its registry and queue, the
// connectivity monitor and the unload guard into one explicitly owned
// runtime with an Open/Close lifecycle.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/tempo/internal/app"
	"github.com/alexanderramin/tempo/internal/connectivity"
	"github.com/alexanderramin/tempo/internal/localstore"
	"github.com/alexanderramin/tempo/internal/telemetry"
	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/alexanderramin/tempo/internal/unload"
)

type Options struct {
	Store     app.SessionStore
	Completer app.TaskCompleter
	Beacon    app.BeaconChannel
	Storage   app.LocalStorage

	// Probe enables the background reachability loop.
	Probe         connectivity.ProbeFunc
	ProbeInterval time.Duration
	Backoff       connectivity.BackoffConfig

	LedgerAllKinds bool

	Logger   *slog.Logger
	Observer telemetry.UseCaseObserver
	Now      func() time.Time
}

// Runtime owns every piece of client-side tracking state. Nothing here is
// global: two runtimes never share a registry or a queue.
type Runtime struct {
	Engine   *tracker.Engine
	Registry *tracker.Registry
	Queue    *tracker.Queue
	Monitor  *connectivity.Monitor
	Guard    *unload.Guard

	logger *slog.Logger
	// unsettled is set until owners have loaded once and the unload ledger
	// has been reconciled against them.
	unsettled atomic.Bool
	stopProbe context.CancelFunc
	probeDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type discardBeacon struct{}

func (discardBeacon) SendBestEffort(string, []byte) {}

// Open builds a runtime with an empty registry and queue, loads every owner
// and settles whatever the previous run left in the unload ledger. An
// unreachable store is not fatal: the runtime starts offline.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	if opts.Store == nil {
		return nil, errors.New("tracking: a session store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Observer == nil {
		opts.Observer = telemetry.NewLogUseCaseObserver(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Beacon == nil {
		opts.Beacon = discardBeacon{}
	}
	if opts.Storage == nil {
		opts.Storage = localstore.NewMemory()
	}

	r := &Runtime{
		Registry: tracker.NewRegistry(),
		Queue:    tracker.NewQueue(),
		logger:   opts.Logger,
	}

	engineOpts := []tracker.Option{
		tracker.WithClock(opts.Now),
		tracker.WithLogger(opts.Logger),
		tracker.WithObserver(opts.Observer),
		tracker.WithNetworkErrorHook(func(err error) { r.Monitor.ReportFailure(err) }),
	}
	if opts.Completer != nil {
		engineOpts = append(engineOpts, tracker.WithTaskCompleter(opts.Completer))
	}
	r.Engine = tracker.NewEngine(opts.Store, r.Registry, r.Queue, engineOpts...)

	if opts.Backoff.Jitter == 0 {
		opts.Backoff.Jitter = connectivity.DefaultBackoffJitter
	}
	monitorOpts := []connectivity.Option{
		connectivity.WithLogger(opts.Logger),
		connectivity.WithBackoff(opts.Backoff),
	}
	if opts.Probe != nil {
		monitorOpts = append(monitorOpts, connectivity.WithProbe(opts.Probe, opts.ProbeInterval))
	}
	r.Monitor = connectivity.NewMonitor(r.flush, monitorOpts...)

	r.Guard = unload.NewGuard(r.Registry, opts.Beacon, opts.Storage,
		unload.WithLedgerAllKinds(opts.LedgerAllKinds),
		unload.WithClock(opts.Now),
		unload.WithLogger(opts.Logger),
	)

	r.unsettled.Store(true)
	if err := r.settle(ctx); err != nil {
		if !tracker.IsRetryable(err) {
			return nil, err
		}
		r.logger.WarnContext(ctx, "session store unreachable, starting offline", "error", err)
	}

	if opts.Probe != nil {
		probeCtx, cancel := context.WithCancel(context.Background())
		r.stopProbe = cancel
		r.probeDone = make(chan struct{})
		go func() {
			defer close(r.probeDone)
			_ = r.Monitor.Run(probeCtx)
		}()
	}
	return r, nil
}

// settle loads every owner and pauses whatever the previous run left in the
// unload ledger. Open runs it; when the store was unreachable then, the first
// reconnect runs it again.
func (r *Runtime) settle(ctx context.Context) error {
	if err := r.Engine.Load(ctx); err != nil {
		return fmt.Errorf("loading owners: %w", err)
	}
	r.unsettled.Store(false)

	report, err := r.Guard.Reconcile(ctx, r.Engine)
	if err != nil {
		r.logger.WarnContext(ctx, "unload ledger reconciliation failed", "error", err)
	} else if len(report.Paused) > 0 {
		r.logger.InfoContext(ctx, "paused sessions left open by the previous run", "count", len(report.Paused))
	}
	return nil
}

func (r *Runtime) flush(ctx context.Context) error {
	report, err := r.Engine.FlushPending(ctx)
	if err != nil {
		return err
	}
	if len(report.Replayed)+len(report.Dropped) > 0 {
		r.logger.InfoContext(ctx, "pending actions flushed",
			"replayed", len(report.Replayed), "dropped", len(report.Dropped))
	}
	if r.unsettled.Load() {
		return r.settle(ctx)
	}
	return nil
}

// Hide runs the unload guard when the client is backgrounded. Tasks may be
// paused server-side by the beacon; Show re-reads them.
func (r *Runtime) Hide() unload.Report {
	return r.Guard.Trigger(unload.ReasonHide)
}

// Show refreshes the registry after the client comes back to the
// foreground and settles the unload ledger.
func (r *Runtime) Show(ctx context.Context) error {
	if err := r.Engine.Load(ctx); err != nil {
		return err
	}
	_, err := r.Guard.Reconcile(ctx, r.Engine)
	return err
}

// Close makes a best-effort flush within ctx, then runs the unload guard
// for whatever is still open and stops background work. It is safe to call
// more than once.
func (r *Runtime) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		if r.Queue.Len() > 0 {
			if _, err := r.Engine.FlushPending(ctx); err != nil {
				r.logger.WarnContext(ctx, "flush on close incomplete",
					"pending", r.Queue.Len(), "error", err)
				r.closeErr = err
			}
		}
		r.Guard.Trigger(unload.ReasonDiscard)

		if r.stopProbe != nil {
			r.stopProbe()
			<-r.probeDone
		}
		r.Monitor.Close()
		r.Registry.Close()
	})
	return r.closeErr
}
