package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexanderramin/tempo/internal/app"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LocalSessionPrefix marks session ids minted on the client before the store
// has confirmed them.
const LocalSessionPrefix = "local-"

// Engine runs start/pause commands for every owner kind.
type Engine struct {
	store     app.SessionStore
	completer app.TaskCompleter
	registry  *Registry
	queue     *Queue
	lanes     *lanes

	now            func() time.Time
	logger         *slog.Logger
	observer       telemetry.UseCaseObserver
	onNetworkError func(error)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithObserver(obs telemetry.UseCaseObserver) Option {
	return func(e *Engine) { e.observer = obs }
}

// WithTaskCompleter enables Complete.
func WithTaskCompleter(c app.TaskCompleter) Option {
	return func(e *Engine) { e.completer = c }
}

// WithNetworkErrorHook is called whenever a store call fails with a network
// error, typically to flip a connectivity monitor offline.
func WithNetworkErrorHook(fn func(error)) Option {
	return func(e *Engine) { e.onNetworkError = fn }
}

func NewEngine(store app.SessionStore, registry *Registry, queue *Queue, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		queue:    queue,
		lanes:    newLanes(),
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		observer: telemetry.NoopUseCaseObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Queue() *Queue { return e.queue }

// Submit schedules cmd on its owner's lane and returns immediately. The
// channel receives exactly one Result.
func (e *Engine) Submit(ctx context.Context, cmd Command) <-chan Result {
	out := make(chan Result, 1)
	t := e.lanes.enter(cmd.Owner)
	go func() {
		defer t.leave()
		t.wait()
		out <- e.execute(ctx, cmd)
	}()
	return out
}

// Start opens a session for ref. The returned error is the Result's Err.
func (e *Engine) Start(ctx context.Context, ref domain.OwnerRef) (Result, error) {
	r := <-e.Submit(ctx, Command{Action: domain.ActionStart, Owner: ref})
	return r, r.Err
}

// Pause closes ref's open session. The returned error is the Result's Err.
func (e *Engine) Pause(ctx context.Context, ref domain.OwnerRef) (Result, error) {
	r := <-e.Submit(ctx, Command{Action: domain.ActionPause, Owner: ref})
	return r, r.Err
}

func (e *Engine) execute(ctx context.Context, cmd Command) Result {
	var r Result
	done := telemetry.Track(ctx, e.observer, string(cmd.Action), map[string]any{"owner": cmd.Owner.String()})
	switch cmd.Action {
	case domain.ActionStart:
		r = e.execStart(ctx, cmd)
	case domain.ActionPause:
		r = e.execPause(ctx, cmd)
	default:
		r = Result{Command: cmd, Outcome: OutcomeRolledBack, Err: &domain.ApplicationError{
			Op: string(cmd.Action), Code: domain.CodeInvalidRequest, Message: "unknown action",
		}}
	}
	done(r.Err)
	e.logger.DebugContext(ctx, "command settled", "command", cmd.String(), "outcome", r.Outcome.String())
	return r
}

func (e *Engine) execStart(ctx context.Context, cmd Command) Result {
	ref := cmd.Owner
	owner, err := e.ensureOwner(ctx, ref)
	if err != nil {
		return Result{Command: cmd, Outcome: OutcomeRolledBack, Err: err}
	}
	if open := owner.OpenSession(); open != nil {
		s := open.Clone()
		return Result{Command: cmd, Outcome: OutcomeNoop, Session: &s}
	}

	before := owner.Sessions
	optimistic := domain.Session{
		ID:        LocalSessionPrefix + uuid.New().String(),
		OwnerID:   ref.ID,
		OwnerKind: ref.Kind,
		StartedAt: e.now(),
	}
	if _, err := e.registry.PatchSessions(ref, func(ss []domain.Session) ([]domain.Session, error) {
		return append(ss, optimistic), nil
	}); err != nil {
		return Result{Command: cmd, Outcome: OutcomeRolledBack, Err: classify(string(cmd.Action), err)}
	}

	if e.queue.HasPending(ref) {
		e.queue.Enqueue(domain.ActionStart, ref, optimistic.StartedAt)
		return Result{Command: cmd, Outcome: OutcomeQueued, Session: &optimistic,
			Err: &domain.NetworkError{Op: string(cmd.Action), Err: ErrAwaitingReplay}}
	}

	confirmed, err := e.store.StartSession(ctx, ref)
	if err != nil {
		return e.settleFailure(ctx, cmd, before, &optimistic, err)
	}
	e.adopt(ref, optimistic.ID, *confirmed)
	e.reconcile(ctx, ref)
	s := confirmed.Clone()
	return Result{Command: cmd, Outcome: OutcomeConfirmed, Session: &s}
}

func (e *Engine) execPause(ctx context.Context, cmd Command) Result {
	ref := cmd.Owner
	owner, ok := e.registry.Get(ref)
	if !ok || !owner.HasOpenSession() {
		return Result{Command: cmd, Outcome: OutcomeNoop}
	}

	before := owner.Sessions
	var closed domain.Session
	if _, err := e.registry.PatchSessions(ref, func(ss []domain.Session) ([]domain.Session, error) {
		for i := len(ss) - 1; i >= 0; i-- {
			if ss[i].IsOpen() {
				if err := ss[i].Close(e.now()); err != nil {
					return nil, err
				}
				closed = ss[i].Clone()
				break
			}
		}
		return ss, nil
	}); err != nil {
		return Result{Command: cmd, Outcome: OutcomeRolledBack, Err: classify(string(cmd.Action), err)}
	}

	if e.queue.HasPending(ref) {
		e.queue.Enqueue(domain.ActionPause, ref, *closed.EndedAt)
		return Result{Command: cmd, Outcome: OutcomeQueued, Session: &closed,
			Err: &domain.NetworkError{Op: string(cmd.Action), Err: ErrAwaitingReplay}}
	}

	confirmed, err := e.store.PauseSession(ctx, ref)
	if err != nil {
		return e.settleFailure(ctx, cmd, before, &closed, err)
	}
	e.adopt(ref, closed.ID, *confirmed)
	e.reconcile(ctx, ref)
	s := confirmed.Clone()
	return Result{Command: cmd, Outcome: OutcomeConfirmed, Session: &s}
}

// settleFailure keeps the optimistic state and queues the command on a
// network failure, or restores the pre-command sessions on a rejection.
func (e *Engine) settleFailure(ctx context.Context, cmd Command, before []domain.Session, optimistic *domain.Session, err error) Result {
	err = classify(string(cmd.Action), err)
	if IsRetryable(err) {
		issuedAt := optimistic.StartedAt
		if optimistic.EndedAt != nil {
			issuedAt = *optimistic.EndedAt
		}
		e.queue.Enqueue(cmd.Action, cmd.Owner, issuedAt)
		e.reportNetwork(err)
		e.logger.InfoContext(ctx, "store unreachable, command queued",
			"command", cmd.String(), "pending", e.queue.Len(), "error", err)
		return Result{Command: cmd, Outcome: OutcomeQueued, Session: optimistic, Err: err}
	}

	if _, perr := e.registry.PatchSessions(cmd.Owner, func([]domain.Session) ([]domain.Session, error) {
		return before, nil
	}); perr != nil {
		e.logger.ErrorContext(ctx, "rollback failed", "command", cmd.String(), "error", perr)
	}
	e.logger.InfoContext(ctx, "store rejected command, rolled back", "command", cmd.String(), "error", err)
	return Result{Command: cmd, Outcome: OutcomeRolledBack, Err: err}
}

// adopt swaps the optimistic session for the store's version. If the store
// answered with a session the registry already holds (an idempotent start)
// the optimistic copy is dropped instead.
func (e *Engine) adopt(ref domain.OwnerRef, localID string, confirmed domain.Session) {
	_, err := e.registry.PatchSessions(ref, func(ss []domain.Session) ([]domain.Session, error) {
		out := make([]domain.Session, 0, len(ss))
		replaced := false
		for _, s := range ss {
			switch {
			case s.ID == confirmed.ID:
				if !replaced {
					out = append(out, confirmed.Clone())
					replaced = true
				}
			case s.ID == localID:
			default:
				out = append(out, s)
			}
		}
		if !replaced {
			out = append(out, confirmed.Clone())
		}
		return out, nil
	})
	if err != nil {
		e.logger.Warn("adopting confirmed session", "owner", ref.String(), "error", err)
	}
}

// reconcile replaces the cached owner with the store's copy. Owners with
// queued actions keep their optimistic state until the flush reloads them.
func (e *Engine) reconcile(ctx context.Context, ref domain.OwnerRef) error {
	if e.queue.HasPending(ref) {
		return nil
	}
	owner, err := e.store.GetOwner(ctx, ref)
	if err != nil {
		err = classify("reconcile", err)
		if IsRetryable(err) {
			e.reportNetwork(err)
		}
		e.logger.WarnContext(ctx, "reconcile failed", "owner", ref.String(), "error", err)
		return err
	}
	e.registry.Upsert(owner)
	return nil
}

// ensureOwner returns the cached owner, fetching it first if needed. When
// the store cannot be reached a bare entry is cached so the command can
// still be applied locally.
func (e *Engine) ensureOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error) {
	if o, ok := e.registry.Get(ref); ok {
		return o, nil
	}
	o, err := e.store.GetOwner(ctx, ref)
	if err == nil {
		e.registry.Upsert(o)
		return o.Clone(), nil
	}
	err = classify("load owner", err)
	if !IsRetryable(err) {
		return nil, err
	}
	e.reportNetwork(err)
	bare := &domain.Owner{ID: ref.ID, Kind: ref.Kind}
	e.registry.Upsert(bare)
	return bare, nil
}

func (e *Engine) reportNetwork(err error) {
	if e.onNetworkError != nil {
		e.onNetworkError(err)
	}
}

// Refresh re-reads ref from the store on its lane, after any command
// already submitted for it.
func (e *Engine) Refresh(ctx context.Context, ref domain.OwnerRef) error {
	var err error
	e.lanes.do(ref, func() { err = e.reconcile(ctx, ref) })
	return err
}

// Load fills the registry with every owner of the given kinds. Owners with
// queued actions keep their local state.
func (e *Engine) Load(ctx context.Context, kinds ...domain.OwnerKind) (err error) {
	done := telemetry.Track(ctx, e.observer, "load", map[string]any{"kinds": len(kinds)})
	defer func() { done(err) }()

	if len(kinds) == 0 {
		kinds = domain.OwnerKinds
	}
	for _, kind := range kinds {
		owners, lerr := e.store.ListOwners(ctx, kind)
		if lerr != nil {
			lerr = classify("load", lerr)
			if IsRetryable(lerr) {
				e.reportNetwork(lerr)
			}
			return wrapf(lerr, "loading %s owners", kind)
		}
		for _, o := range owners {
			ref := o.Ref()
			e.lanes.do(ref, func() {
				if !e.queue.HasPending(ref) {
					e.registry.Upsert(o)
				}
			})
		}
	}
	return nil
}

// FlushPending replays the pending queue. See Queue.Flush.
func (e *Engine) FlushPending(ctx context.Context) (report FlushReport, err error) {
	if e.queue.Len() == 0 && !e.queue.NeedsReload() {
		return FlushReport{}, nil
	}
	done := telemetry.Track(ctx, e.observer, "flush", map[string]any{"pending": e.queue.Len()})
	defer func() { done(err) }()

	report, err = e.queue.Flush(ctx, e)
	for _, d := range report.Dropped {
		e.logger.WarnContext(ctx, "queued action rejected on replay",
			"action", string(d.Action.Kind), "owner", d.Action.Owner.String(), "error", d.Err)
	}
	if err != nil && IsRetryable(err) {
		e.reportNetwork(err)
	}
	return report, err
}

// Replay sends one queued action to the store.
func (e *Engine) Replay(ctx context.Context, a domain.PendingAction) error {
	var err error
	switch a.Kind {
	case domain.ActionStart:
		_, err = e.store.StartSession(ctx, a.Owner)
	case domain.ActionPause:
		_, err = e.store.PauseSession(ctx, a.Owner)
	default:
		return &domain.ApplicationError{Op: "replay", Code: domain.CodeInvalidRequest, Message: "unknown action " + string(a.Kind)}
	}
	return classify("replay "+string(a.Kind), err)
}

// Reload refreshes every ref concurrently, each on its own lane.
func (e *Engine) Reload(ctx context.Context, refs []domain.OwnerRef) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range refs {
		g.Go(func() error { return e.Refresh(gctx, ref) })
	}
	return g.Wait()
}
