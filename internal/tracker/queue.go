package tracker

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
)

// Replayer executes queued actions against the store during a flush.
type Replayer interface {
	Replay(ctx context.Context, action domain.PendingAction) error
	Reload(ctx context.Context, refs []domain.OwnerRef) error
}

// DroppedAction is a queued action the store rejected on replay.
type DroppedAction struct {
	Action domain.PendingAction
	Err    error
}

// FlushReport summarizes one flush.
type FlushReport struct {
	Replayed  []domain.PendingAction
	Dropped   []DroppedAction
	Reloaded  []domain.OwnerRef
	Remaining int
}

// Complete reports whether the queue was fully drained.
func (r FlushReport) Complete() bool {
	return r.Remaining == 0
}

// Queue is the ordered list of actions accepted while the store was
// unreachable. Actions leave the queue only after the store has answered.
// Owners whose actions left the queue stay marked for reload until a reload
// of them succeeds.
type Queue struct {
	mu      sync.Mutex
	items   []domain.PendingAction
	seq     uint64
	reload  []domain.OwnerRef
	flushMu sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(kind domain.ActionKind, ref domain.OwnerRef, issuedAt time.Time) domain.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	a := domain.PendingAction{Seq: q.seq, Kind: kind, Owner: ref, IssuedAt: issuedAt}
	q.items = append(q.items, a)
	return a
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns the pending actions in issue order.
func (q *Queue) Snapshot() []domain.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.PendingAction(nil), q.items...)
}

// HasPending reports whether ref has any action waiting for replay.
func (q *Queue) HasPending(ref domain.OwnerRef) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, a := range q.items {
		if a.Owner == ref {
			return true
		}
	}
	return false
}

// NeedsReload reports whether replayed owners are still waiting to be
// re-read from the store.
func (q *Queue) NeedsReload() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reload) > 0
}

func (q *Queue) markReload(ref domain.OwnerRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.reload {
		if r == ref {
			return
		}
	}
	q.reload = append(q.reload, ref)
}

func (q *Queue) pendingReload() []domain.OwnerRef {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.OwnerRef(nil), q.reload...)
}

func (q *Queue) clearReload(done []domain.OwnerRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.reload[:0]
	for _, r := range q.reload {
		if !slices.Contains(done, r) {
			kept = append(kept, r)
		}
	}
	q.reload = kept
}

func (q *Queue) head() (domain.PendingAction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.PendingAction{}, false
	}
	return q.items[0], true
}

func (q *Queue) remove(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, a := range q.items {
		if a.Seq == seq {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Flush replays queued actions in issue order. A network failure stops the
// flush and leaves that action and everything after it queued. A rejection
// drops the action and the flush moves on. Order per owner still holds:
// later actions for that owner replay in issue order, and the reload at the
// end replaces whatever optimistic state the rejected action left behind.
// Once the queue is drained every owner the flush touched is reloaded from
// the store. Owners whose reload failed are retried by the next flush, even
// when nothing is queued by then.
//
// Only one flush runs at a time; a second caller waits for the first.
func (q *Queue) Flush(ctx context.Context, r Replayer) (FlushReport, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	var report FlushReport
	for {
		a, ok := q.head()
		if !ok {
			break
		}
		err := r.Replay(ctx, a)
		if err != nil && IsRetryable(err) {
			report.Remaining = q.Len()
			return report, err
		}
		q.remove(a.Seq)
		q.markReload(a.Owner)
		if err != nil {
			report.Dropped = append(report.Dropped, DroppedAction{Action: a, Err: err})
			continue
		}
		report.Replayed = append(report.Replayed, a)
	}

	touched := q.pendingReload()
	if len(touched) == 0 {
		return report, nil
	}
	if err := r.Reload(ctx, touched); err != nil {
		return report, wrapf(err, "reloading flushed owners")
	}
	q.clearReload(touched)
	report.Reloaded = touched
	return report, nil
}
