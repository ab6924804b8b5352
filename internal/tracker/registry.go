package tracker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexanderramin/tempo/internal/domain"
)

// Change is published to registry subscribers after every write. Owner is a
// private copy; Removed marks a deletion.
type Change struct {
	Ref     domain.OwnerRef
	Owner   *domain.Owner
	Removed bool
}

// Registry is the in-memory owner cache observers read from. Every read
// returns a deep copy, so a reader never sees a half-applied write.
type Registry struct {
	mu     sync.RWMutex
	owners map[domain.OwnerRef]*domain.Owner
	subs   []chan Change
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[domain.OwnerRef]*domain.Owner)}
}

func (r *Registry) Get(ref domain.OwnerRef) (*domain.Owner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.owners[ref]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// List returns owners of one kind ordered by id.
func (r *Registry) List(kind domain.OwnerKind) []*domain.Owner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Owner
	for ref, o := range r.owners {
		if ref.Kind == kind {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenOwners returns every owner that currently has an open session.
func (r *Registry) OpenOwners() []*domain.Owner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Owner
	for _, o := range r.owners {
		if o.HasOpenSession() {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().String() < out[j].Ref().String() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Upsert replaces the whole owner record.
func (r *Registry) Upsert(o *domain.Owner) {
	stored := o.Clone()
	r.mu.Lock()
	r.owners[stored.Ref()] = stored
	r.emitLocked(Change{Ref: stored.Ref(), Owner: stored.Clone()})
	r.mu.Unlock()
}

// PatchSessions rewrites an owner's session list. The patch runs on a copy;
// if it fails or breaks the one-open-session invariant nothing is stored.
func (r *Registry) PatchSessions(ref domain.OwnerRef, patch func([]domain.Session) ([]domain.Session, error)) (*domain.Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.owners[ref]
	if !ok {
		return nil, fmt.Errorf("patching %s: %w", ref, domain.ErrOwnerNotFound)
	}
	next := current.Clone()
	sessions, err := patch(next.Sessions)
	if err != nil {
		return nil, fmt.Errorf("patching %s: %w", ref, err)
	}
	next.Sessions = sessions
	if err := next.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("patching %s: %w", ref, err)
	}
	r.owners[ref] = next
	r.emitLocked(Change{Ref: ref, Owner: next.Clone()})
	return next.Clone(), nil
}

func (r *Registry) Remove(ref domain.OwnerRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[ref]; !ok {
		return
	}
	delete(r.owners, ref)
	r.emitLocked(Change{Ref: ref, Removed: true})
}

// Subscribe registers an observer channel. Slow observers miss changes
// rather than stall writers; they can always re-read with Get.
func (r *Registry) Subscribe(buffer int) <-chan Change {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Close closes every subscriber channel.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

func (r *Registry) emitLocked(c Change) {
	for _, ch := range r.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
