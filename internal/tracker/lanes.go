package tracker

import (
	"sync"

	"github.com/alexanderramin/tempo/internal/domain"
)

// lanes gives each owner a FIFO of turns. A turn is registered when the
// command is submitted, so submission order is execution order even though
// every command runs on its own goroutine.
type lanes struct {
	mu    sync.Mutex
	tails map[domain.OwnerRef]chan struct{}
}

func newLanes() *lanes {
	return &lanes{tails: make(map[domain.OwnerRef]chan struct{})}
}

type turn struct {
	l    *lanes
	ref  domain.OwnerRef
	prev chan struct{}
	done chan struct{}
}

func (l *lanes) enter(ref domain.OwnerRef) *turn {
	done := make(chan struct{})
	l.mu.Lock()
	prev := l.tails[ref]
	l.tails[ref] = done
	l.mu.Unlock()
	return &turn{l: l, ref: ref, prev: prev, done: done}
}

func (t *turn) wait() {
	if t.prev != nil {
		<-t.prev
	}
}

func (t *turn) leave() {
	t.l.mu.Lock()
	if t.l.tails[t.ref] == t.done {
		delete(t.l.tails, t.ref)
	}
	t.l.mu.Unlock()
	close(t.done)
}

// do runs fn on ref's lane and blocks until it has run.
func (l *lanes) do(ref domain.OwnerRef, fn func()) {
	t := l.enter(ref)
	defer t.leave()
	t.wait()
	fn()
}
