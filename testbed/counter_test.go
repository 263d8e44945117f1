package testbed

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/wippyai/javabinding/bindings"
	"github.com/wippyai/javabinding/fakes"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
)

const (
	classCounter  = "io/wippy/binding/testbed/CounterService"
	countersIndex = "testbed.counters"
)

// CounterService is a service runtime adapter that keeps one counter per
// transaction payload in a map index. Incrementing a counter past limit
// fails the transaction after the write, so callers can observe the
// rollback.
type CounterService struct {
	bridge *bindings.Bridge
	limit  uint64

	mu        sync.Mutex
	node      int64
	sizes     []int64
	artifacts [][]byte
	shutdown  bool
}

// Sizes returns the counter count observed by each afterCommit call.
func (c *CounterService) Sizes() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.sizes...)
}

func counterClass() simvm.ClassDef {
	return simvm.ClassDef{
		Name: classCounter,
		Constructors: map[string]simvm.Method{
			"()V": func(jvm.Env, jvm.Object, []jvm.Value) (jvm.Value, error) { return nil, nil },
		},
		Methods: map[string]simvm.Method{
			"initialize(J)V":             counterMethod((*CounterService).initialize),
			"deployArtifact([B[B)V":      counterMethod((*CounterService).deployArtifact),
			"isArtifactDeployed([B)Z":    counterMethod((*CounterService).isArtifactDeployed),
			"executeTransaction(IIJ[B)V": counterMethod((*CounterService).executeTransaction),
			"afterCommit(J)V":            counterMethod((*CounterService).afterCommit),
			"shutdown()V":                counterMethod((*CounterService).stop),
		},
	}
}

func counterMethod(m func(*CounterService, jvm.Env, []jvm.Value) (jvm.Value, error)) simvm.Method {
	return func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
		return m(simvm.Native(env, this).(*CounterService), env, args)
	}
}

func newCounterService(env jvm.Env, b *bindings.Bridge, limit uint64) (jvm.Object, *CounterService, error) {
	cls, err := env.FindClass(classCounter)
	if err != nil {
		return jvm.Null, nil, err
	}
	defer env.DeleteLocalRef(cls)
	obj, err := env.NewObject(cls, "()V")
	if err != nil {
		return jvm.Null, nil, err
	}
	c := &CounterService{bridge: b, limit: limit}
	simvm.SetNative(env, obj, c)
	return obj, c, nil
}

func (c *CounterService) initialize(_ jvm.Env, args []jvm.Value) (jvm.Value, error) {
	c.mu.Lock()
	c.node = args[0].(int64)
	c.mu.Unlock()
	return nil, nil
}

func (c *CounterService) deployArtifact(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	id, err := env.GetByteArray(args[0].(jvm.Object))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.artifacts = append(c.artifacts, id)
	c.mu.Unlock()
	return nil, nil
}

func (c *CounterService) isArtifactDeployed(jvm.Env, []jvm.Value) (jvm.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.artifacts) > 0, nil
}

func (c *CounterService) executeTransaction(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	view := args[2].(int64)
	key := args[3].(jvm.Object)

	name, err := env.NewString(countersIndex)
	if err != nil {
		return nil, err
	}
	counters := c.bridge.MapIndexProxyNativeCreate(env, name, view)
	if env.ExceptionCheck() {
		return nil, nil
	}
	defer c.bridge.MapIndexProxyNativeFree(env, counters)

	var n uint64
	if cur := c.bridge.MapIndexProxyNativeGet(env, counters, key); !cur.IsNull() {
		b, err := env.GetByteArray(cur)
		if err != nil {
			return nil, err
		}
		n = binary.BigEndian.Uint64(b)
	}
	n++

	value, err := env.NewByteArray(binary.BigEndian.AppendUint64(nil, n))
	if err != nil {
		return nil, err
	}
	c.bridge.MapIndexProxyNativePut(env, counters, key, value)
	if env.ExceptionCheck() {
		return nil, nil
	}

	if n > c.limit {
		k, err := env.GetByteArray(key)
		if err != nil {
			return nil, err
		}
		exc, err := fakes.NewExecutionException(env, 1, fmt.Sprintf("counter %s exceeds %d", k, c.limit))
		if err != nil {
			return nil, err
		}
		return nil, env.Throw(exc)
	}
	return nil, nil
}

func (c *CounterService) afterCommit(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	name, err := env.NewString(countersIndex)
	if err != nil {
		return nil, err
	}
	counters := c.bridge.MapIndexProxyNativeCreate(env, name, args[0].(int64))
	if env.ExceptionCheck() {
		return nil, nil
	}
	defer c.bridge.MapIndexProxyNativeFree(env, counters)

	size := c.bridge.MapIndexProxyNativeSize(env, counters)
	c.mu.Lock()
	c.sizes = append(c.sizes, size)
	c.mu.Unlock()
	return nil, nil
}

func (c *CounterService) stop(jvm.Env, []jvm.Value) (jvm.Value, error) {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	return nil, nil
}
