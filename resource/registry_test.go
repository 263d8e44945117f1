package resource

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

var (
	stringType = reflect.TypeOf((*string)(nil)).Elem()
	intType    = reflect.TypeOf((*int)(nil)).Elem()
)

func violationMessage(t *testing.T, fn func()) string {
	t.Helper()
	var msg string
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected panic")
			v, ok := r.(*Violation)
			require.True(t, ok, "panic value %T is not *Violation", r)
			msg = v.Message
		}()
		fn()
	}()
	return msg
}

func TestRegistry_Basic(t *testing.T) {
	r := NewRegistry()

	h := r.Allocate()
	require.NotZero(t, h)

	r.Register(h, stringType, JavaOwned, "test")
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Contains(h))

	assert.Equal(t, "test", r.Validate(h, stringType, JavaOwned))
	assert.Equal(t, "test", r.Validate(h, stringType, AnyOwnership))

	assert.Equal(t, "test", r.Unregister(h, stringType, JavaOwned))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Contains(h))
}

func TestRegistry_Violations(t *testing.T) {
	r := NewRegistry()
	h := r.Allocate()
	r.Register(h, stringType, JavaOwned, "test")

	t.Run("zero handle", func(t *testing.T) {
		msg := violationMessage(t, func() { r.Register(0, stringType, JavaOwned, "x") })
		assert.Equal(t, "Invalid handle value: 0", msg)
	})

	t.Run("double register", func(t *testing.T) {
		msg := violationMessage(t, func() { r.Register(h, stringType, JavaOwned, "again") })
		assert.Contains(t, msg, "Trying to add the same handle for the second time")
		assert.Equal(t, "test", r.Validate(h, stringType, JavaOwned))
	})

	t.Run("wrong type", func(t *testing.T) {
		msg := violationMessage(t, func() { r.Validate(h, intType, AnyOwnership) })
		assert.Contains(t, msg, "Wrong type id")
		assert.Contains(t, msg, "expected 'int', actual 'string'")
	})

	t.Run("wrong ownership", func(t *testing.T) {
		msg := violationMessage(t, func() { r.Validate(h, stringType, NativeOwned) })
		assert.Contains(t, msg, "handle should be NativeOwned")
	})

	t.Run("failed unregister leaves entry", func(t *testing.T) {
		violationMessage(t, func() { r.Unregister(h, intType, JavaOwned) })
		assert.True(t, r.Contains(h))
	})

	t.Run("unknown handle", func(t *testing.T) {
		msg := violationMessage(t, func() { r.Unregister(h+1000, stringType, JavaOwned) })
		assert.Contains(t, msg, "Invalid handle value")
	})
}

func TestRegistry_Observer(t *testing.T) {
	r := NewRegistry()
	obs := &testObserver{}
	r.Subscribe(obs)

	h := r.Allocate()
	r.Register(h, stringType, NativeOwned, "test")
	r.Unregister(h, stringType, NativeOwned)

	require.Len(t, obs.events, 2)
	assert.Equal(t, EventRegistered, obs.events[0].Kind)
	assert.Equal(t, h, obs.events[0].Handle)
	assert.Equal(t, NativeOwned, obs.events[0].Ownership)
	assert.Equal(t, EventUnregistered, obs.events[1].Kind)
	assert.Equal(t, stringType, obs.events[1].Type)

	r.Unsubscribe(obs)
	h = r.Allocate()
	r.Register(h, stringType, NativeOwned, "test")
	assert.Len(t, obs.events, 2)
}

func TestRegistry_ConcurrentUniqueness(t *testing.T) {
	r := NewRegistry()

	const workers = 8
	const perWorker = 500

	results := make([][]Handle, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			hs := make([]Handle, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				hs = append(hs, ToHandle(r, i))
			}
			results[w] = hs
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, workers*perWorker, r.Len())

	seen := make(map[Handle]bool, workers*perWorker)
	for _, hs := range results {
		for _, h := range hs {
			assert.NotZero(t, h)
			assert.False(t, seen[h], "duplicate handle %d", h)
			seen[h] = true
		}
	}

	for _, hs := range results {
		hs := hs
		g.Go(func() error {
			for _, h := range hs {
				DropHandle[int](r, h)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, r.Len())
}
