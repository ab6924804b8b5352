package tracker

import (
	"sync/atomic"
	"testing"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/alexanderramin/tempo/internal/testutil"
)

type harness struct {
	store    *testutil.FakeStore
	clock    *testutil.Clock
	registry *Registry
	queue    *Queue
	engine   *Engine
	netErrs  atomic.Int32
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:    testutil.NewClock(testutil.FixedNow),
		registry: NewRegistry(),
		queue:    NewQueue(),
	}
	h.store = testutil.NewFakeStore(h.clock.Now)
	base := []Option{
		WithClock(h.clock.Now),
		WithTaskCompleter(h.store),
		WithNetworkErrorHook(func(error) { h.netErrs.Add(1) }),
	}
	h.engine = NewEngine(h.store, h.registry, h.queue, append(base, opts...)...)
	t.Cleanup(h.registry.Close)
	return h
}

func (h *harness) owner(t *testing.T, ref domain.OwnerRef) *domain.Owner {
	t.Helper()
	o, ok := h.registry.Get(ref)
	if !ok {
		t.Fatalf("owner %s not in registry", ref)
	}
	return o
}

func openCount(o *domain.Owner) int {
	n := 0
	for _, s := range o.Sessions {
		if s.IsOpen() {
			n++
		}
	}
	return n
}

func taskRef(id string) domain.OwnerRef {
	return domain.OwnerRef{Kind: domain.OwnerTask, ID: id}
}

func subtaskRef(id string) domain.OwnerRef {
	return domain.OwnerRef{Kind: domain.OwnerSubtask, ID: id}
}

func employeeRef(id string) domain.OwnerRef {
	return domain.OwnerRef{Kind: domain.OwnerEmployee, ID: id}
}
