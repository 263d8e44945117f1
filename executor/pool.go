package executor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
)

// ErrClosed is returned by Pool.Attached after Close.
var ErrClosed = errors.New(errors.PhaseAttach, errors.KindInvalidInput).
	Detail("executor pool is closed").
	Build()

// Pool runs calls on a fixed set of worker threads, each locked to its own
// OS thread and attached once for the lifetime of the pool. Unlike Leaking,
// the number of attached threads never depends on how many goroutines call
// in. Calls block until a worker is free; Attached must not be called from
// inside a pool call.
type Pool struct {
	vm       jvm.VM
	tasks    chan task
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	size     int
	attached atomic.Int32
}

type task struct {
	fn     func(jvm.Env) error
	result chan taskResult
}

type taskResult struct {
	err      error
	panicVal any
	panicked bool
}

// NewPool starts size workers and waits until all of them are attached.
func NewPool(vm jvm.VM, size int) (*Pool, error) {
	if size <= 0 {
		panic("pool size should be a positive integer")
	}

	p := &Pool{
		vm:    vm,
		tasks: make(chan task),
		done:  make(chan struct{}),
		size:  size,
	}

	ready := make(chan error, size)
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i, ready)
	}

	var firstErr error
	for i := 0; i < size; i++ {
		if err := <-ready; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		_ = p.Close()
		return nil, errors.Wrap(errors.PhaseAttach, errors.KindJNI, firstErr, "failed to attach pool worker")
	}
	return p, nil
}

// Attached implements Executor. A panic inside fn is re-raised on the
// calling goroutine after the worker has cleaned up.
func (p *Pool) Attached(fn func(jvm.Env) error) error {
	t := task{fn: fn, result: make(chan taskResult, 1)}
	select {
	case p.tasks <- t:
	case <-p.done:
		return ErrClosed
	}

	r := <-t.result
	if r.panicked {
		panic(r.panicVal)
	}
	return r.err
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// AttachedThreads returns the number of currently attached workers.
func (p *Pool) AttachedThreads() int { return int(p.attached.Load()) }

// Close stops the workers and detaches their threads. Calls in progress
// complete first.
func (p *Pool) Close() error {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	return nil
}

func (p *Pool) worker(id int, ready chan<- error) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	env, err := p.vm.AttachCurrentThread()
	if err != nil {
		ready <- err
		return
	}
	p.attached.Add(1)
	defer func() {
		if err := p.vm.DetachCurrentThread(); err != nil {
			Logger().Warn("pool worker detach failed", zap.Int("worker", id), zap.Error(err))
		}
		p.attached.Add(-1)
	}()

	Logger().Debug("pool worker attached",
		zap.Int("worker", id), zap.Int64("tid", jvm.CurrentThreadID()))
	ready <- nil

	for {
		select {
		case t := <-p.tasks:
			t.result <- run(env, t.fn)
		case <-p.done:
			return
		}
	}
}

func run(env jvm.Env, fn func(jvm.Env) error) (r taskResult) {
	defer func() {
		if v := recover(); v != nil {
			r = taskResult{panicked: true, panicVal: v}
		}
	}()
	return taskResult{err: fn(env)}
}
