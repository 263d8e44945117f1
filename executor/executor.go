package executor

import (
	"github.com/wippyai/javabinding/jvm"
)

// LocalFrameCapacity is the capacity of the local frame WithAttached
// allocates around every call.
const LocalFrameCapacity = 32

// Executor runs code on the calling OS thread while it is attached to a
// VM. The goroutine is locked to its thread for the duration of the call.
type Executor interface {
	// Attached runs fn with the Env of the current thread. No local frame
	// is allocated; prefer WithAttached.
	Attached(fn func(jvm.Env) error) error
}

// WithAttached runs fn attached, inside a local frame of
// LocalFrameCapacity. Every local reference created by fn is released when
// it returns, so R must not carry local references.
func WithAttached[R any](ex Executor, fn func(jvm.Env) (R, error)) (R, error) {
	return WithAttachedCapacity(ex, LocalFrameCapacity, fn)
}

// WithAttachedCapacity is WithAttached with an explicit frame capacity.
// The frame is popped on every exit path, including panics.
func WithAttachedCapacity[R any](ex Executor, capacity int, fn func(jvm.Env) (R, error)) (R, error) {
	if capacity <= 0 {
		panic("capacity should be a positive integer")
	}

	var result R
	err := ex.Attached(func(env jvm.Env) error {
		if err := env.PushLocalFrame(capacity); err != nil {
			return err
		}
		defer env.PopLocalFrame(jvm.Null)

		var err error
		result, err = fn(env)
		return err
	})
	return result, err
}
