package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/google/uuid"
)

// Store operation names used by FakeStore gates, failures and the call log.
const (
	OpStart    = "start"
	OpPause    = "pause"
	OpGet      = "get"
	OpList     = "list"
	OpComplete = "complete"
)

// FakeStore is an in-memory session store with the same business rules as
// the SQLite store, plus knobs for offline mode, injected failures and
// gates that hold a call until the test releases it.
type FakeStore struct {
	mu       sync.Mutex
	owners   map[domain.OwnerRef]*domain.Owner
	offline  bool
	failures map[string][]error
	gates    map[string]chan struct{}
	calls    []string
	now      func() time.Time
}

func NewFakeStore(now func() time.Time) *FakeStore {
	if now == nil {
		now = time.Now
	}
	return &FakeStore{
		owners:   make(map[domain.OwnerRef]*domain.Owner),
		failures: make(map[string][]error),
		gates:    make(map[string]chan struct{}),
		now:      now,
	}
}

// Put seeds or replaces an owner record.
func (f *FakeStore) Put(o *domain.Owner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[o.Ref()] = o.Clone()
}

// Owner returns a copy of the stored record, with subtask ids resolved.
func (f *FakeStore) Owner(ref domain.OwnerRef) *domain.Owner {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[ref]
	if !ok {
		return nil
	}
	return f.viewLocked(o)
}

// SetOffline makes every call fail with a NetworkError while set.
func (f *FakeStore) SetOffline(offline bool) {
	f.mu.Lock()
	f.offline = offline
	f.mu.Unlock()
}

// FailNext queues an error for the next call of op.
func (f *FakeStore) FailNext(op string, err error) {
	f.mu.Lock()
	f.failures[op] = append(f.failures[op], err)
	f.mu.Unlock()
}

// Hold blocks every subsequent call of op until the returned release func
// runs. Release is safe to call more than once.
func (f *FakeStore) Hold(op string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[op] == ch {
				delete(f.gates, op)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns the log of calls in arrival order, e.g. "start task:t1".
func (f *FakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts logged calls of op.
func (f *FakeStore) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(op) && c[:len(op)] == op {
			n++
		}
	}
	return n
}

func (f *FakeStore) enter(ctx context.Context, op, target string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op+" "+target)
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &domain.NetworkError{Op: op, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("connection refused")}
	}
	if queued := f.failures[op]; len(queued) > 0 {
		f.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func appErr(op string, err error) error {
	return &domain.ApplicationError{Op: op, Code: domain.ErrorCode(err), Err: err}
}

func (f *FakeStore) StartSession(ctx context.Context, ref domain.OwnerRef) (*domain.Session, error) {
	if err := f.enter(ctx, OpStart, ref.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.owners[ref]
	if !ok {
		return nil, appErr(OpStart, domain.ErrOwnerNotFound)
	}
	if o.IsCompleted {
		return nil, appErr(OpStart, domain.ErrOwnerCompleted)
	}
	if open := o.OpenSession(); open != nil {
		s := open.Clone()
		return &s, nil
	}
	s := domain.Session{ID: uuid.New().String(), OwnerID: ref.ID, OwnerKind: ref.Kind, StartedAt: f.now()}
	o.Sessions = append(o.Sessions, s)
	return &s, nil
}

func (f *FakeStore) PauseSession(ctx context.Context, ref domain.OwnerRef) (*domain.Session, error) {
	if err := f.enter(ctx, OpPause, ref.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.owners[ref]
	if !ok {
		return nil, appErr(OpPause, domain.ErrOwnerNotFound)
	}
	open := o.OpenSession()
	if open == nil {
		return nil, appErr(OpPause, domain.ErrNoOpenSession)
	}
	if err := open.Close(f.now()); err != nil {
		return nil, appErr(OpPause, err)
	}
	s := open.Clone()
	return &s, nil
}

func (f *FakeStore) GetOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error) {
	if err := f.enter(ctx, OpGet, ref.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[ref]
	if !ok {
		return nil, appErr(OpGet, domain.ErrOwnerNotFound)
	}
	return f.viewLocked(o), nil
}

func (f *FakeStore) ListOwners(ctx context.Context, kind domain.OwnerKind) ([]*domain.Owner, error) {
	if err := f.enter(ctx, OpList, string(kind)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Owner
	for ref, o := range f.owners {
		if ref.Kind == kind {
			out = append(out, f.viewLocked(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeStore) CompleteTask(ctx context.Context, taskID string, completedAt time.Time, hoursWorked float64) (*domain.Owner, error) {
	if err := f.enter(ctx, OpComplete, taskID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.owners[domain.OwnerRef{Kind: domain.OwnerTask, ID: taskID}]
	if !ok {
		return nil, appErr(OpComplete, domain.ErrOwnerNotFound)
	}
	if err := o.MarkCompleted(completedAt, hoursWorked); err != nil {
		return nil, appErr(OpComplete, err)
	}
	return f.viewLocked(o), nil
}

func (f *FakeStore) viewLocked(o *domain.Owner) *domain.Owner {
	c := o.Clone()
	if c.Kind == domain.OwnerTask {
		c.SubtaskIDs = nil
		for ref, other := range f.owners {
			if ref.Kind == domain.OwnerSubtask && other.ParentID == c.ID {
				c.SubtaskIDs = append(c.SubtaskIDs, ref.ID)
			}
		}
		sort.Strings(c.SubtaskIDs)
	}
	return c
}
