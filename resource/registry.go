package resource

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

const shardCount = 64

type entry struct {
	value     any
	typ       reflect.Type
	ownership Ownership
}

type shard struct {
	mu      sync.RWMutex
	entries map[Handle]entry
}

// Registry maps live handles to their native values together with the
// value's type and ownership. It is safe for concurrent use; entries are
// spread over independently locked shards.
type Registry struct {
	shards    [shardCount]shard
	next      atomic.Int64
	count     atomic.Int64
	observers []Observer
	obsMu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[Handle]entry)
	}
	return r
}

func (r *Registry) shard(h Handle) *shard {
	return &r.shards[uint64(h)%shardCount]
}

// Allocate returns a fresh handle value that has never been handed out by
// this registry. It does not register anything.
func (r *Registry) Allocate() Handle {
	return Handle(r.next.Add(1))
}

// Register records a live handle. Panics with *Violation if h is 0 or is
// already registered.
func (r *Registry) Register(h Handle, typ reflect.Type, ownership Ownership, value any) {
	if h == 0 {
		violate(h, "Invalid handle value: 0")
	}

	s := r.shard(h)
	s.mu.Lock()
	if _, exists := s.entries[h]; exists {
		s.mu.Unlock()
		violate(h, "Trying to add the same handle for the second time: %X", int64(h))
	}
	s.entries[h] = entry{typ: typ, ownership: ownership, value: value}
	s.mu.Unlock()

	r.count.Add(1)
	r.notify(Event{Kind: EventRegistered, Handle: h, Type: typ, Ownership: ownership, Value: value})
}

// Unregister removes a handle after checking its type and ownership, and
// returns the stored value. Check and removal happen under one lock.
func (r *Registry) Unregister(h Handle, typ reflect.Type, ownership Ownership) any {
	s := r.shard(h)
	s.mu.Lock()
	e, ok := s.entries[h]
	if !ok {
		s.mu.Unlock()
		violate(h, "Invalid handle value: '%X'", int64(h))
	}
	if msg, bad := check(h, e, typ, ownership); bad {
		s.mu.Unlock()
		panic(&Violation{Handle: h, Message: msg})
	}
	delete(s.entries, h)
	s.mu.Unlock()

	r.count.Add(-1)
	r.notify(Event{Kind: EventUnregistered, Handle: h, Type: e.typ, Ownership: e.ownership, Value: e.value})
	return e.value
}

// Validate checks that h is live with the given type and ownership and
// returns the stored value. AnyOwnership skips the ownership check.
func (r *Registry) Validate(h Handle, typ reflect.Type, ownership Ownership) any {
	s := r.shard(h)
	s.mu.RLock()
	e, ok := s.entries[h]
	s.mu.RUnlock()

	if !ok {
		violate(h, "Invalid handle value: '%X'", int64(h))
	}
	if msg, bad := check(h, e, typ, ownership); bad {
		panic(&Violation{Handle: h, Message: msg})
	}
	return e.value
}

// Contains reports whether h is currently registered.
func (r *Registry) Contains(h Handle) bool {
	s := r.shard(h)
	s.mu.RLock()
	_, ok := s.entries[h]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	observers := make([]Observer, 0, len(r.observers)+1)
	r.observers = append(append(observers, r.observers...), o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			observers := make([]Observer, 0, len(r.observers)-1)
			observers = append(observers, r.observers[:i]...)
			r.observers = append(observers, r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()

	for _, o := range observers {
		o.OnResourceEvent(e)
	}
}

func check(h Handle, e entry, typ reflect.Type, ownership Ownership) (string, bool) {
	if e.typ != typ {
		return fmt.Sprintf("Wrong type id for '%X' handle, expected '%s', actual '%s'",
			int64(h), typeName(typ), typeName(e.typ)), true
	}
	if ownership != AnyOwnership && e.ownership != ownership {
		return fmt.Sprintf("Error: '%X' handle should be %s", int64(h), ownership), true
	}
	return "", false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
