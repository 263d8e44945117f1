package executor

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
)

// Leaking attaches threads on first use and never detaches them. Calls
// from an attached thread cost nothing extra, but every thread that ever
// calls in stays attached, so the number of such threads is bounded by a
// limit. A call from a new thread beyond the limit panics with an
// *errors.Error of kind limit_exhausted: that is a deployment sizing
// error, not something callers can recover from.
type Leaking struct {
	vm       jvm.VM
	limit    int
	attached int
	mu       sync.Mutex
}

// NewLeaking creates a Leaking executor allowing at most limit attached
// threads.
func NewLeaking(vm jvm.VM, limit int) *Leaking {
	if limit <= 0 {
		panic("attach limit should be a positive integer")
	}
	return &Leaking{vm: vm, limit: limit}
}

// MainAttachLimit is the attach limit of the main executor:
// max(16, 2*NumCPU).
func MainAttachLimit() int {
	return max(16, 2*runtime.NumCPU())
}

// NewMain creates the Leaking executor used for managed service callbacks.
func NewMain(vm jvm.VM) *Leaking {
	return NewLeaking(vm, MainAttachLimit())
}

// Attached implements Executor.
func (l *Leaking) Attached(fn func(jvm.Env) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	env, err := l.env()
	if err != nil {
		return err
	}
	return fn(env)
}

// Limit returns the maximum number of attached threads.
func (l *Leaking) Limit() int { return l.limit }

// AttachedThreads returns the number of threads this executor attached.
func (l *Leaking) AttachedThreads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attached
}

func (l *Leaking) env() (jvm.Env, error) {
	env, err := l.vm.GetEnv()
	if err == nil {
		return env, nil
	}
	if !errors.Is(err, jvm.ErrThreadDetached) {
		return nil, err
	}
	return l.attach()
}

// attach reserves a slot under the mutex and attaches outside it, so a
// slow attach does not serialize threads that are already attached. A
// failed attach gives the slot back.
func (l *Leaking) attach() (jvm.Env, error) {
	l.mu.Lock()
	if l.attached >= l.limit {
		l.mu.Unlock()
		Logger().Error("thread attachment limit exhausted",
			zap.Int64("tid", jvm.CurrentThreadID()), zap.Int("limit", l.limit))
		panic(errors.LimitExhausted(l.limit))
	}
	l.attached++
	n := l.attached
	l.mu.Unlock()

	Logger().Info("attaching thread",
		zap.Int64("tid", jvm.CurrentThreadID()), zap.Int("attached", n-1), zap.Int("limit", l.limit))

	if _, err := l.vm.AttachCurrentThread(); err != nil {
		l.mu.Lock()
		l.attached--
		l.mu.Unlock()
		return nil, err
	}

	env, err := l.vm.GetEnv()
	if err != nil {
		if errors.Is(err, jvm.ErrThreadDetached) {
			panic("Thread should be attached")
		}
		return nil, err
	}
	return env, nil
}
