// Package connectivity tracks whether the session store is reachable and
// replays queued commands when it comes back.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status is the monitor's view of store reachability.
type Status uint8

const (
	Online Status = iota
	Offline
)

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// FlushFunc replays pending commands. It runs on every Offline to Online
// transition.
type FlushFunc func(ctx context.Context) error

// ProbeFunc checks store reachability; nil means reachable.
type ProbeFunc func(ctx context.Context) error

// DefaultProbeInterval is how often an online monitor re-checks the store.
const DefaultProbeInterval = 30 * time.Second

// Monitor holds the Online/Offline status. Going offline only changes the
// status; coming back online flushes the pending queue.
type Monitor struct {
	mu     sync.Mutex
	status Status
	subs   []chan Status

	flush    FlushFunc
	probe    ProbeFunc
	interval time.Duration
	backoff  *Backoff
	logger   *slog.Logger

	onStateChange func(old, new Status)
	wake          chan struct{}
}

type Option func(*Monitor)

// WithProbe enables the Run loop.
func WithProbe(probe ProbeFunc, interval time.Duration) Option {
	return func(m *Monitor) {
		m.probe = probe
		if interval > 0 {
			m.interval = interval
		}
	}
}

func WithBackoff(cfg BackoffConfig) Option {
	return func(m *Monitor) { m.backoff = NewBackoff(cfg) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithInitialStatus sets the status before any probe has run.
func WithInitialStatus(s Status) Option {
	return func(m *Monitor) { m.status = s }
}

// WithStateChange registers a callback invoked after every transition.
func WithStateChange(fn func(old, new Status)) Option {
	return func(m *Monitor) { m.onStateChange = fn }
}

func NewMonitor(flush FlushFunc, opts ...Option) *Monitor {
	m := &Monitor{
		status:   Online,
		flush:    flush,
		interval: DefaultProbeInterval,
		backoff:  NewBackoff(BackoffConfig{Jitter: DefaultBackoffJitter}),
		logger:   slog.New(slog.DiscardHandler),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) IsOnline() bool {
	return m.Status() == Online
}

// SetOffline marks the store unreachable. In-flight and future commands
// keep applying optimistically and queue as usual.
func (m *Monitor) SetOffline() {
	m.transition(Offline)
}

// SetOnline marks the store reachable. On an Offline to Online transition
// the pending queue is flushed before SetOnline returns; the flush error,
// if any, is returned. A flush that fails with a network error has already
// flipped the monitor back offline through ReportFailure.
func (m *Monitor) SetOnline(ctx context.Context) error {
	if !m.transition(Online) || m.flush == nil {
		return nil
	}
	if err := m.flush(ctx); err != nil {
		m.logger.WarnContext(ctx, "flush after reconnect failed", "error", err)
		return err
	}
	return nil
}

// ReportFailure is the engine's network error hook. It flips the monitor
// offline without waiting for the next probe and wakes the probe loop so
// recovery starts on the backoff schedule.
func (m *Monitor) ReportFailure(err error) {
	if m.transition(Offline) {
		m.logger.Info("store unreachable", "error", err)
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run probes the store until ctx ends: every probe interval while online,
// on the backoff schedule while offline.
func (m *Monitor) Run(ctx context.Context) error {
	if m.probe == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		var delay time.Duration
		if m.IsOnline() {
			m.backoff.Reset()
			delay = m.interval
		} else {
			delay = m.backoff.Next()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		if err := m.probe(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if m.transition(Offline) {
				m.logger.InfoContext(ctx, "probe failed", "error", err)
			}
			continue
		}
		_ = m.SetOnline(ctx)
	}
}

// Subscribe returns a channel of status transitions. A full channel misses
// transitions rather than blocking the monitor.
func (m *Monitor) Subscribe(buffer int) <-chan Status {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Status, buffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Close closes subscriber channels.
func (m *Monitor) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// transition sets the status and reports whether it changed.
func (m *Monitor) transition(next Status) bool {
	m.mu.Lock()
	old := m.status
	if old == next {
		m.mu.Unlock()
		return false
	}
	m.status = next
	for _, ch := range m.subs {
		select {
		case ch <- next:
		default:
		}
	}
	m.mu.Unlock()

	if m.onStateChange != nil {
		m.onStateChange(old, next)
	}
	return true
}
