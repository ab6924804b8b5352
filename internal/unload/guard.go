// Package unload protects open sessions when the client goes away without
// pausing them.
//
// Tasks get a best-effort pause beacon. Subtasks are written to a durable
// ledger and paused properly on the next start, once their server state can
// be read. Employees are left running unless the ledger is configured to
// cover every kind.
package unload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alexanderramin/tempo/internal/app"
	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/tracker"
)

// LedgerKey is the local storage key holding owners to re-check on start.
const LedgerKey = "tempo.pendingSubtaskPauses"

// Reason says why the guard ran.
type Reason string

const (
	ReasonDiscard Reason = "discard"
	ReasonHide    Reason = "hide"
)

// Report lists what a Trigger did.
type Report struct {
	Beaconed []domain.OwnerRef
	Recorded []domain.OwnerRef
}

// Engine is the part of the timer engine reconciliation needs.
type Engine interface {
	Pause(ctx context.Context, ref domain.OwnerRef) (tracker.Result, error)
	Refresh(ctx context.Context, ref domain.OwnerRef) error
}

type Guard struct {
	registry       *tracker.Registry
	beacon         app.BeaconChannel
	storage        app.LocalStorage
	ledgerAllKinds bool
	now            func() time.Time
	logger         *slog.Logger
}

type Option func(*Guard)

// WithLedgerAllKinds records every kind in the ledger. Tasks still get the
// beacon as well.
func WithLedgerAllKinds(all bool) Option {
	return func(g *Guard) { g.ledgerAllKinds = all }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func NewGuard(registry *tracker.Registry, beacon app.BeaconChannel, storage app.LocalStorage, opts ...Option) *Guard {
	g := &Guard{
		registry: registry,
		beacon:   beacon,
		storage:  storage,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Trigger runs at teardown. It never waits on the network and never fails:
// storage errors are logged because nobody is left to handle them.
func (g *Guard) Trigger(reason Reason) Report {
	var report Report
	var record []domain.OwnerRef

	for _, owner := range g.registry.OpenOwners() {
		ref := owner.Ref()
		capability := tracker.Capability(ref.Kind)
		if capability == nil {
			continue
		}
		switch capability.Unload() {
		case tracker.UnloadBeacon:
			if g.sendBeacon(ref, reason) {
				report.Beaconed = append(report.Beaconed, ref)
			}
			if g.ledgerAllKinds {
				record = append(record, ref)
			}
		case tracker.UnloadLedger:
			record = append(record, ref)
		case tracker.UnloadNone:
			if g.ledgerAllKinds {
				record = append(record, ref)
			}
		}
	}

	if len(record) > 0 {
		existing, err := g.readLedger()
		if err != nil {
			g.logger.Warn("reading unload ledger", "error", err)
		}
		if err := g.writeLedger(mergeRefs(existing, record)); err != nil {
			g.logger.Warn("writing unload ledger", "error", err)
		} else {
			report.Recorded = record
		}
	}

	g.logger.Debug("unload guard ran", "reason", string(reason),
		"beaconed", len(report.Beaconed), "recorded", len(report.Recorded))
	return report
}

func (g *Guard) sendBeacon(ref domain.OwnerRef, reason Reason) bool {
	payload, err := contract.EncodeBeaconPause(contract.BeaconPause{
		Kind:     string(ref.Kind),
		OwnerID:  ref.ID,
		IssuedAt: g.now(),
		Reason:   string(reason),
	})
	if err != nil {
		g.logger.Warn("encoding beacon", "owner", ref.String(), "error", err)
		return false
	}
	g.beacon.SendBestEffort(contract.BeaconPausePath, payload)
	return true
}

// ReconcileReport lists what a Reconcile did.
type ReconcileReport struct {
	Paused    []domain.OwnerRef
	Closed    []domain.OwnerRef
	Remaining []domain.OwnerRef
}

// Reconcile runs on start. Every ledger entry is re-read from the store; an
// owner still open there gets a normal pause. Entries whose store state
// could not be read, or whose pause is only queued, stay in the ledger for
// the next start.
func (g *Guard) Reconcile(ctx context.Context, engine Engine) (ReconcileReport, error) {
	var report ReconcileReport
	refs, err := g.readLedger()
	if err != nil {
		return report, err
	}
	if len(refs) == 0 {
		return report, nil
	}

	for _, ref := range refs {
		if err := engine.Refresh(ctx, ref); err != nil {
			if tracker.IsRetryable(err) {
				report.Remaining = append(report.Remaining, ref)
				continue
			}
			g.logger.InfoContext(ctx, "dropping unload ledger entry", "owner", ref.String(), "error", err)
			continue
		}
		owner, ok := g.registry.Get(ref)
		if !ok || !owner.HasOpenSession() {
			report.Closed = append(report.Closed, ref)
			continue
		}
		r, err := engine.Pause(ctx, ref)
		switch {
		case r.Outcome == tracker.OutcomeQueued:
			report.Remaining = append(report.Remaining, ref)
		case err != nil:
			g.logger.WarnContext(ctx, "reconcile pause rejected", "owner", ref.String(), "error", err)
		default:
			report.Paused = append(report.Paused, ref)
		}
	}

	if err := g.writeLedger(report.Remaining); err != nil {
		return report, err
	}
	return report, nil
}

// Pending returns the owners currently recorded in the ledger.
func (g *Guard) Pending() ([]domain.OwnerRef, error) {
	return g.readLedger()
}

func (g *Guard) readLedger() ([]domain.OwnerRef, error) {
	raw, ok, err := g.storage.Get(LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", LedgerKey, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		g.logger.Warn("discarding unreadable unload ledger", "error", err)
		return nil, nil
	}
	refs := make([]domain.OwnerRef, 0, len(entries))
	for _, e := range entries {
		ref, err := domain.ParseOwnerRef(e)
		if err != nil {
			g.logger.Warn("skipping unload ledger entry", "entry", e, "error", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (g *Guard) writeLedger(refs []domain.OwnerRef) error {
	if len(refs) == 0 {
		if err := g.storage.Set(LedgerKey, ""); err != nil {
			return fmt.Errorf("clearing %s: %w", LedgerKey, err)
		}
		return nil
	}
	entries := make([]string, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, ref.String())
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", LedgerKey, err)
	}
	if err := g.storage.Set(LedgerKey, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", LedgerKey, err)
	}
	return nil
}

func mergeRefs(a, b []domain.OwnerRef) []domain.OwnerRef {
	seen := make(map[domain.OwnerRef]bool, len(a)+len(b))
	var out []domain.OwnerRef
	for _, ref := range append(append([]domain.OwnerRef(nil), a...), b...) {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
