package executor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newCounter(t *testing.T, ex Executor) jvm.Object {
	t.Helper()
	counter, err := WithAttached(ex, func(env jvm.Env) (jvm.Object, error) {
		cls, err := env.FindClass(simvm.ClassAtomicLong)
		if err != nil {
			return jvm.Null, err
		}
		local, err := env.NewObject(cls, "()V")
		if err != nil {
			return jvm.Null, err
		}
		return env.NewGlobalRef(local), nil
	})
	require.NoError(t, err)
	require.NotEqual(t, jvm.Null, counter)
	return counter
}

func increment(ex Executor, counter jvm.Object) (int64, error) {
	return WithAttached(ex, func(env jvm.Env) (int64, error) {
		v, err := env.CallMethod(counter, "incrementAndGet", "()J")
		if err != nil {
			return 0, err
		}
		return v.(int64), nil
	})
}

func TestWithAttachedCapacity_InvalidCapacity(t *testing.T) {
	ex := NewDumb(simvm.New())
	assert.PanicsWithValue(t, "capacity should be a positive integer", func() {
		_, _ = WithAttachedCapacity(ex, 0, func(jvm.Env) (int, error) { return 0, nil })
	})
}

func TestConcurrentAttachment(t *testing.T) {
	const goroutines = 8
	const calls = 50

	vm := simvm.New()
	pool, err := NewPool(vm, 4)
	require.NoError(t, err)
	defer pool.Close()

	executors := map[string]Executor{
		"dumb":    NewDumb(vm),
		"leaking": NewLeaking(vm, 1024),
		"pool":    pool,
	}

	for name, ex := range executors {
		t.Run(name, func(t *testing.T) {
			counter := newCounter(t, ex)

			var g errgroup.Group
			for i := 0; i < goroutines; i++ {
				g.Go(func() error {
					for j := 0; j < calls; j++ {
						if _, err := increment(ex, counter); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			total, err := WithAttached(ex, func(env jvm.Env) (int64, error) {
				v, err := env.CallMethod(counter, "get", "()J")
				if err != nil {
					return 0, err
				}
				env.DeleteGlobalRef(counter)
				return v.(int64), nil
			})
			require.NoError(t, err)
			assert.Equal(t, int64(goroutines*calls), total)
			assert.Equal(t, 0, vm.Stats().LocalRefs, "local references leaked")
		})
	}
}

func TestDumb_DetachesAfterCall(t *testing.T) {
	vm := simvm.New()
	ex := NewDumb(vm)

	for i := 0; i < 3; i++ {
		err := ex.Attached(func(env jvm.Env) error {
			assert.Equal(t, 1, vm.Stats().Attached)
			return nil
		})
		require.NoError(t, err)
	}

	s := vm.Stats()
	assert.Equal(t, 0, s.Attached)
	assert.Equal(t, s.Attaches, s.Detaches)
}

func TestLeaking_LimitEnforced(t *testing.T) {
	const limit = 3
	const extra = 4

	vm := simvm.New()
	ex := NewLeaking(vm, limit)

	var (
		successes atomic.Int32
		failures  atomic.Int32
		arrived   sync.WaitGroup
		finished  sync.WaitGroup
	)
	release := make(chan struct{})

	arrived.Add(limit + extra)
	finished.Add(limit + extra)
	for i := 0; i < limit+extra; i++ {
		go func() {
			defer finished.Done()
			defer func() {
				if r := recover(); r != nil {
					e, ok := r.(*errors.Error)
					if assert.True(t, ok, "unexpected panic value %v", r) {
						assert.Equal(t, errors.KindLimitExhausted, e.Kind)
						assert.Contains(t, e.Detail, "limit is 3")
					}
					failures.Add(1)
					arrived.Done()
				}
			}()
			_ = ex.Attached(func(jvm.Env) error {
				successes.Add(1)
				arrived.Done()
				<-release
				return nil
			})
		}()
	}

	arrived.Wait()
	close(release)
	finished.Wait()

	assert.Equal(t, int32(limit), successes.Load())
	assert.Equal(t, int32(extra), failures.Load())
	assert.Equal(t, limit, ex.AttachedThreads())
}

func TestLeaking_ReusesAttachedThread(t *testing.T) {
	vm := simvm.New()
	ex := NewLeaking(vm, 1)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for i := 0; i < 10; i++ {
		require.NoError(t, ex.Attached(func(jvm.Env) error { return nil }))
	}
	assert.Equal(t, 1, ex.AttachedThreads())
	assert.Equal(t, int64(1), vm.Stats().Attaches)

	// This goroutine cannot run on the locked thread, so it needs a second
	// slot.
	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		_ = ex.Attached(func(jvm.Env) error { return nil })
	}()
	r := <-panicked
	require.NotNil(t, r)
	assert.ErrorIs(t, r.(error), &errors.Error{Kind: errors.KindLimitExhausted})
}

func TestLeaking_FailedAttachReleasesSlot(t *testing.T) {
	vm := simvm.New()
	ex := NewLeaking(vm, 1)

	boom := jvm.NewError(jvm.KindOther, "attach refused")
	vm.SetAttachError(boom)
	err := ex.Attached(func(jvm.Env) error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, ex.AttachedThreads())

	vm.SetAttachError(nil)
	assert.NoError(t, ex.Attached(func(jvm.Env) error { return nil }))
	assert.Equal(t, 1, ex.AttachedThreads())
}

func TestNewMain_Limit(t *testing.T) {
	ex := NewMain(simvm.New())
	assert.Equal(t, max(16, 2*runtime.NumCPU()), ex.Limit())
	assert.GreaterOrEqual(t, ex.Limit(), 16)
}

func TestLocalFrameOverflow(t *testing.T) {
	vm := simvm.New()
	ex := NewLeaking(vm, 1024)

	n, err := WithAttachedCapacity(ex, 4, func(env jvm.Env) (int, error) {
		for i := 0; i < 100; i++ {
			if _, err := env.NewString("overflow"); err != nil {
				return i, err
			}
		}
		return 100, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 0, vm.Stats().LocalRefs)
	assert.Positive(t, vm.Stats().FrameGrowths)
}

func TestWithAttachedCapacity_Repeated(t *testing.T) {
	const capacity, iterations = 8, 200

	vm := simvm.New()
	pool, err := NewPool(vm, 2)
	require.NoError(t, err)
	defer pool.Close()

	executors := map[string]Executor{
		"dumb":    NewDumb(vm),
		"leaking": NewLeaking(vm, 1024),
		"pool":    pool,
	}

	for name, ex := range executors {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < iterations; i++ {
				n, err := WithAttachedCapacity(ex, capacity, func(env jvm.Env) (int, error) {
					for j := 0; j < 2*capacity; j++ {
						if _, err := env.NewByteArray([]byte{byte(i), byte(j)}); err != nil {
							return j, err
						}
					}
					return 2 * capacity, nil
				})
				require.NoError(t, err)
				require.Equal(t, 2*capacity, n)
				require.Zero(t, vm.Stats().LocalRefs, "local references leaked in iteration %d", i)
			}
			stats := vm.Stats()
			assert.Zero(t, stats.LocalRefs)
			assert.Zero(t, stats.GlobalRefs)
			assert.Positive(t, stats.FrameGrowths)
		})
	}
}

func TestWithAttached_PopsFrameOnPanic(t *testing.T) {
	vm := simvm.New()
	ex := NewLeaking(vm, 1024)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = WithAttached(ex, func(env jvm.Env) (int, error) {
			_, _ = env.NewString("a")
			_, _ = env.NewString("b")
			panic("boom")
		})
	})
	assert.Equal(t, 0, vm.Stats().LocalRefs)
}

func TestPool_PanicPropagation(t *testing.T) {
	vm := simvm.New()
	pool, err := NewPool(vm, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.AttachedThreads())

	assert.PanicsWithValue(t, "boom", func() {
		_ = pool.Attached(func(jvm.Env) error { panic("boom") })
	})

	// Workers survive a panicking call.
	v, err := WithAttached(pool, func(env jvm.Env) (string, error) {
		s, err := env.NewString("alive")
		if err != nil {
			return "", err
		}
		return env.GetString(s)
	})
	require.NoError(t, err)
	assert.Equal(t, "alive", v)

	require.NoError(t, pool.Close())
	assert.Equal(t, 0, pool.AttachedThreads())
	assert.Equal(t, 0, vm.Stats().Attached)
	assert.ErrorIs(t, pool.Attached(func(jvm.Env) error { return nil }), ErrClosed)
}

func TestPool_AttachFailure(t *testing.T) {
	vm := simvm.New()
	vm.SetAttachError(jvm.NewError(jvm.KindOther, "attach refused"))

	_, err := NewPool(vm, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, &jvm.Error{Kind: jvm.KindOther})
	assert.Equal(t, 0, vm.Stats().Attached)
}

func TestNew(t *testing.T) {
	vm := simvm.New()

	ex, closer, err := New(vm, KindMain, 0)
	require.NoError(t, err)
	assert.IsType(t, &Leaking{}, ex)
	assert.NoError(t, closer.Close())

	ex, closer, err = New(vm, KindDumb, 0)
	require.NoError(t, err)
	assert.IsType(t, &Dumb{}, ex)
	assert.NoError(t, closer.Close())

	ex, closer, err = New(vm, KindPool, 2)
	require.NoError(t, err)
	assert.IsType(t, &Pool{}, ex)
	assert.NoError(t, closer.Close())

	_, _, err = New(vm, KindLeaking, 0)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})

	_, _, err = New(vm, Kind("bogus"), 0)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})
}
