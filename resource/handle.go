package resource

import (
	"fmt"
	"reflect"
)

// ToHandle registers value as a JavaOwned resource and returns its handle.
// The managed side must eventually pass the handle to DropHandle or
// AcquireOwnership.
func ToHandle[T any](r *Registry, value T) Handle {
	h := r.Allocate()
	r.Register(h, reflect.TypeOf((*T)(nil)).Elem(), JavaOwned, value)
	return h
}

// CastHandle returns the value behind h, which may have any ownership.
// Panics with *Violation if h is 0, unknown, or holds a different type.
func CastHandle[T any](r *Registry, h Handle) T {
	if h == 0 {
		violate(h, "Invalid handle value")
	}
	v, _ := r.Validate(h, reflect.TypeOf((*T)(nil)).Elem(), AnyOwnership).(T)
	return v
}

// AcquireOwnership unregisters a JavaOwned handle and returns its value.
// The caller becomes responsible for releasing the value.
func AcquireOwnership[T any](r *Registry, h Handle) T {
	v, _ := r.Unregister(h, reflect.TypeOf((*T)(nil)).Elem(), JavaOwned).(T)
	return v
}

// DropHandle destroys a JavaOwned resource. Values implementing Dropper
// are released. Dropping the same handle twice panics.
func DropHandle[T any](r *Registry, h Handle) {
	v := AcquireOwnership[T](r, h)
	if d, ok := any(v).(Dropper); ok {
		d.Drop()
	}
}

// NonOwned exposes a native value to the managed side for the lifetime of a
// native frame. The handle is registered as NativeOwned and must be closed
// before the frame returns; Borrow and BorrowMut do that automatically.
type NonOwned[T any] struct {
	registry *Registry
	value    T
	handle   Handle
	mutable  bool
}

// NewNonOwned registers an immutable non-owned handle for v.
func NewNonOwned[T any](r *Registry, v T) *NonOwned[T] {
	return newNonOwned(r, v, false)
}

// NewNonOwnedMut registers a mutable non-owned handle for v.
func NewNonOwnedMut[T any](r *Registry, v T) *NonOwned[T] {
	return newNonOwned(r, v, true)
}

func newNonOwned[T any](r *Registry, v T, mutable bool) *NonOwned[T] {
	h := r.Allocate()
	r.Register(h, reflect.TypeOf((*T)(nil)).Elem(), NativeOwned, v)
	return &NonOwned[T]{registry: r, value: v, handle: h, mutable: mutable}
}

func (n *NonOwned[T]) Handle() Handle { return n.handle }

func (n *NonOwned[T]) Get() T { return n.value }

// GetMut returns the value for mutation. Panics if the handle was created
// with NewNonOwned.
func (n *NonOwned[T]) GetMut() T {
	if !n.mutable {
		panic(&Violation{
			Handle:  n.handle,
			Message: fmt.Sprintf("Handle %X was created as immutable", int64(n.handle)),
		})
	}
	return n.value
}

// Close unregisters the handle. A second Close panics.
func (n *NonOwned[T]) Close() {
	n.registry.Unregister(n.handle, reflect.TypeOf((*T)(nil)).Elem(), NativeOwned)
}

// Borrow exposes v through an immutable non-owned handle for the duration
// of fn. The handle is closed when fn returns or panics.
func Borrow[T, R any](r *Registry, v T, fn func(Handle) R) R {
	n := NewNonOwned(r, v)
	defer n.Close()
	return fn(n.handle)
}

// BorrowMut is Borrow with a mutable handle.
func BorrowMut[T, R any](r *Registry, v T, fn func(Handle) R) R {
	n := NewNonOwnedMut(r, v)
	defer n.Close()
	return fn(n.handle)
}
