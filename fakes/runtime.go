package fakes

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
)

// ClassQaRuntime is the QA service runtime adapter class.
const ClassQaRuntime = "io/wippy/binding/qa/QaServiceRuntimeAdapter"

// Transaction ids understood by the QA service.
const (
	// TxPutValue stores the arguments in the qa.value entry and appends
	// them to the qa.history list.
	TxPutValue int32 = iota
	// TxExecutionError throws ExecutionException with the first argument
	// byte as the code and the rest as the message.
	TxExecutionError
	// TxUnexpectedError throws UnexpectedExecutionException wrapping an
	// ArithmeticException.
	TxUnexpectedError
	// TxIllegalArgument throws IllegalArgumentException.
	TxIllegalArgument
	// TxBadHandle passes an invalid view handle to a native method.
	TxBadHandle
	// TxPutThenFail stores the arguments, then fails like
	// TxExecutionError.
	TxPutThenFail
)

// Index names used by the QA service.
const (
	ValueEntry   = "qa.value"
	HistoryIndex = "qa.history"
	// ConfigEntry holds the configuration of the last started service.
	ConfigEntry = "qa.config"
	// ScratchEntry is written during service start and rolled back to the
	// checkpoint taken right before it.
	ScratchEntry = "qa.scratch"
	// BeforeCommitEntry counts beforeCommit calls as a big-endian uint64.
	BeforeCommitEntry = "qa.before_commit"
)

// Natives are the native methods the QA service calls.
type Natives interface {
	EntryIndexProxyNativeCreate(env jvm.Env, name jvm.Object, viewHandle int64) int64
	EntryIndexProxyNativeGet(env jvm.Env, entryHandle int64) jvm.Object
	EntryIndexProxyNativeSet(env jvm.Env, entryHandle int64, value jvm.Object)
	EntryIndexProxyNativeFree(env jvm.Env, entryHandle int64)
	ListIndexProxyNativeCreate(env jvm.Env, name jvm.Object, viewHandle int64) int64
	ListIndexProxyNativeAdd(env jvm.Env, listHandle int64, value jvm.Object)
	ListIndexProxyNativeFree(env jvm.Env, listHandle int64)
	ForkNativeCreateCheckpoint(env jvm.Env, viewHandle int64)
	ForkNativeRollback(env jvm.Env, viewHandle int64)
	ForkNativeCanRollback(env jvm.Env, viewHandle int64) bool
}

// CommitFailure selects how afterCommit fails.
type CommitFailure int32

const (
	CommitOK CommitFailure = iota
	// CommitException throws IllegalStateException.
	CommitException
	// CommitError throws OutOfMemoryError, a java.lang.Error.
	CommitError
)

// QaRuntime is the state of a QA service runtime adapter instance.
type QaRuntime struct {
	natives Natives

	mu        sync.Mutex
	artifacts map[string]struct{}
	committed []byte

	node          atomic.Int64
	commits       atomic.Int64
	shutdown      atomic.Bool
	commitFailure atomic.Int32
	failBlocks    atomic.Bool
	canRollback   atomic.Bool
}

// Node returns the node handle passed to initialize.
func (q *QaRuntime) Node() int64 { return q.node.Load() }

// Commits returns the number of afterCommit calls.
func (q *QaRuntime) Commits() int64 { return q.commits.Load() }

// Committed returns the qa.value entry as seen by the last afterCommit.
func (q *QaRuntime) Committed() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.committed
}

// IsShutdown reports whether shutdown was called.
func (q *QaRuntime) IsShutdown() bool { return q.shutdown.Load() }

// FailCommits makes subsequent afterCommit calls fail as f selects.
func (q *QaRuntime) FailCommits(f CommitFailure) { q.commitFailure.Store(int32(f)) }

// FailBeforeCommit makes subsequent beforeCommit calls throw
// IllegalStateException.
func (q *QaRuntime) FailBeforeCommit(fail bool) { q.failBlocks.Store(fail) }

// CouldRollback reports whether the view passed to the last
// startAddingService supported rollbacks.
func (q *QaRuntime) CouldRollback() bool { return q.canRollback.Load() }

// QaRuntimeClass returns the definition of the QA adapter class.
func QaRuntimeClass() simvm.ClassDef {
	return simvm.ClassDef{
		Name: ClassQaRuntime,
		Constructors: map[string]simvm.Method{
			"()V": func(jvm.Env, jvm.Object, []jvm.Value) (jvm.Value, error) { return nil, nil },
		},
		Methods: map[string]simvm.Method{
			"initialize(J)V":             qaMethod((*QaRuntime).initialize),
			"deployArtifact([B[B)V":      qaMethod((*QaRuntime).deployArtifact),
			"isArtifactDeployed([B)Z":    qaMethod((*QaRuntime).isArtifactDeployed),
			"executeTransaction(IIJ[B)V": qaMethod((*QaRuntime).executeTransaction),
			"startAddingService(J[B[B)V": qaMethod((*QaRuntime).startAddingService),
			"beforeCommit(IJ)V":          qaMethod((*QaRuntime).beforeCommit),
			"stateHashes(J)[B":           qaMethod((*QaRuntime).stateHashes),
			"afterCommit(J)V":            qaMethod((*QaRuntime).afterCommit),
			"shutdown()V":                qaMethod((*QaRuntime).stop),
		},
	}
}

func qaMethod(m func(*QaRuntime, jvm.Env, []jvm.Value) (jvm.Value, error)) simvm.Method {
	return func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
		q, ok := simvm.Native(env, this).(*QaRuntime)
		if !ok {
			return nil, ThrowNamed(env, simvm.ClassIllegalStateException, "adapter is not initialized")
		}
		return m(q, env, args)
	}
}

// DefineQaRuntime defines the binding exception classes and the QA
// adapter class in vm.
func DefineQaRuntime(vm *simvm.VM) error {
	if err := DefineExceptions(vm); err != nil {
		return err
	}
	return vm.DefineClass(QaRuntimeClass())
}

// NewQaRuntime creates an adapter instance calling natives. The returned
// object is a local reference.
func NewQaRuntime(env jvm.Env, natives Natives) (jvm.Object, *QaRuntime, error) {
	cls, err := env.FindClass(ClassQaRuntime)
	if err != nil {
		return jvm.Null, nil, err
	}
	defer env.DeleteLocalRef(cls)

	obj, err := env.NewObject(cls, "()V")
	if err != nil {
		return jvm.Null, nil, err
	}
	q := &QaRuntime{natives: natives, artifacts: make(map[string]struct{})}
	simvm.SetNative(env, obj, q)
	return obj, q, nil
}

func (q *QaRuntime) initialize(_ jvm.Env, args []jvm.Value) (jvm.Value, error) {
	q.node.Store(args[0].(int64))
	return nil, nil
}

func (q *QaRuntime) deployArtifact(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	id, err := env.GetByteArray(args[0].(jvm.Object))
	if err != nil {
		return nil, err
	}
	if len(id) == 0 {
		return nil, ThrowNamed(env, simvm.ClassIllegalArgumentException, "Artifact id must not be empty")
	}

	q.mu.Lock()
	_, exists := q.artifacts[string(id)]
	q.artifacts[string(id)] = struct{}{}
	q.mu.Unlock()

	if exists {
		return nil, ThrowNamed(env, simvm.ClassIllegalStateException, fmt.Sprintf("Artifact %s is already deployed", id))
	}
	return nil, nil
}

func (q *QaRuntime) isArtifactDeployed(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	id, err := env.GetByteArray(args[0].(jvm.Object))
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.artifacts[string(id)]
	return ok, nil
}

func (q *QaRuntime) executeTransaction(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	txID := args[1].(int32)
	view := args[2].(int64)
	payload := args[3].(jvm.Object)

	switch txID {
	case TxPutValue:
		return nil, q.put(env, view, payload)
	case TxExecutionError:
		return nil, q.fail(env, payload)
	case TxUnexpectedError:
		return nil, throwUnexpected(env)
	case TxIllegalArgument:
		return nil, ThrowNamed(env, simvm.ClassIllegalArgumentException, "Invalid transaction arguments")
	case TxBadHandle:
		name, err := env.NewString(ValueEntry)
		if err != nil {
			return nil, err
		}
		q.natives.EntryIndexProxyNativeCreate(env, name, 0)
		return nil, nil
	case TxPutThenFail:
		if err := q.put(env, view, payload); err != nil {
			return nil, err
		}
		return nil, q.fail(env, payload)
	default:
		return nil, ThrowNamed(env, simvm.ClassIllegalArgumentException, fmt.Sprintf("Unknown transaction id: %d", txID))
	}
}

func (q *QaRuntime) put(env jvm.Env, view int64, payload jvm.Object) error {
	name, err := env.NewString(ValueEntry)
	if err != nil {
		return err
	}
	entry := q.natives.EntryIndexProxyNativeCreate(env, name, view)
	if env.ExceptionCheck() {
		return nil
	}
	defer q.natives.EntryIndexProxyNativeFree(env, entry)
	q.natives.EntryIndexProxyNativeSet(env, entry, payload)
	if env.ExceptionCheck() {
		return nil
	}

	if name, err = env.NewString(HistoryIndex); err != nil {
		return err
	}
	list := q.natives.ListIndexProxyNativeCreate(env, name, view)
	if env.ExceptionCheck() {
		return nil
	}
	defer q.natives.ListIndexProxyNativeFree(env, list)
	q.natives.ListIndexProxyNativeAdd(env, list, payload)
	return nil
}

func (q *QaRuntime) fail(env jvm.Env, payload jvm.Object) error {
	if env.ExceptionCheck() {
		return nil
	}
	b, err := env.GetByteArray(payload)
	if err != nil {
		return err
	}
	var code uint8
	if len(b) > 0 {
		code, b = b[0], b[1:]
	}
	exc, err := NewExecutionException(env, code, string(b))
	if err != nil {
		return err
	}
	return env.Throw(exc)
}

func throwUnexpected(env jvm.Env) error {
	arith, err := env.FindClass(simvm.ClassArithmeticException)
	if err != nil {
		return err
	}
	msg, err := env.NewString("/ by zero")
	if err != nil {
		return err
	}
	cause, err := env.NewObject(arith, "(Ljava/lang/String;)V", msg)
	if err != nil {
		return err
	}
	wrapper, err := env.FindClass(exceptions.ClassUnexpectedExecutionException)
	if err != nil {
		return err
	}
	exc, err := env.NewObject(wrapper, "(Ljava/lang/Throwable;)V", cause)
	if err != nil {
		return err
	}
	return env.Throw(exc)
}

func (q *QaRuntime) startAddingService(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	view := args[0].(int64)
	config := args[2].(jvm.Object)

	b, err := env.GetByteArray(config)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ThrowNamed(env, simvm.ClassIllegalArgumentException, "Service configuration must not be empty")
	}

	canRollback := q.natives.ForkNativeCanRollback(env, view)
	if env.ExceptionCheck() {
		return nil, nil
	}
	q.canRollback.Store(canRollback)
	if !canRollback {
		return nil, ThrowNamed(env, simvm.ClassIllegalStateException, "Fork does not support rollbacks")
	}

	if err := q.setEntry(env, view, ConfigEntry, config); err != nil || env.ExceptionCheck() {
		return nil, err
	}
	q.natives.ForkNativeCreateCheckpoint(env, view)
	if env.ExceptionCheck() {
		return nil, nil
	}
	if err := q.setEntry(env, view, ScratchEntry, config); err != nil || env.ExceptionCheck() {
		return nil, err
	}
	q.natives.ForkNativeRollback(env, view)
	return nil, nil
}

func (q *QaRuntime) beforeCommit(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	view := args[1].(int64)
	if q.failBlocks.Load() {
		return nil, ThrowNamed(env, simvm.ClassIllegalStateException, fmt.Sprintf("beforeCommit of service %d failed", args[0].(int32)))
	}

	v, err := q.getEntry(env, view, BeforeCommitEntry)
	if err != nil || env.ExceptionCheck() {
		return nil, err
	}
	var n uint64
	if len(v) == 8 {
		n = binary.BigEndian.Uint64(v)
	}
	arr, err := env.NewByteArray(binary.BigEndian.AppendUint64(nil, n+1))
	if err != nil {
		return nil, err
	}
	return nil, q.setEntry(env, view, BeforeCommitEntry, arr)
}

// StateHash is the hash stateHashes reports for a qa.value of v.
func StateHash(v []byte) []byte {
	h := sha256.Sum256(v)
	return h[:]
}

func (q *QaRuntime) stateHashes(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	v, err := q.getEntry(env, args[0].(int64), ValueEntry)
	if err != nil || env.ExceptionCheck() {
		return nil, err
	}
	return env.NewByteArray(StateHash(v))
}

func (q *QaRuntime) setEntry(env jvm.Env, view int64, name string, value jvm.Object) error {
	s, err := env.NewString(name)
	if err != nil {
		return err
	}
	entry := q.natives.EntryIndexProxyNativeCreate(env, s, view)
	if env.ExceptionCheck() {
		return nil
	}
	defer q.natives.EntryIndexProxyNativeFree(env, entry)
	q.natives.EntryIndexProxyNativeSet(env, entry, value)
	return nil
}

func (q *QaRuntime) getEntry(env jvm.Env, view int64, name string) ([]byte, error) {
	s, err := env.NewString(name)
	if err != nil {
		return nil, err
	}
	entry := q.natives.EntryIndexProxyNativeCreate(env, s, view)
	if env.ExceptionCheck() {
		return nil, nil
	}
	defer q.natives.EntryIndexProxyNativeFree(env, entry)
	v := q.natives.EntryIndexProxyNativeGet(env, entry)
	if env.ExceptionCheck() || v.IsNull() {
		return nil, nil
	}
	return env.GetByteArray(v)
}

func (q *QaRuntime) afterCommit(env jvm.Env, args []jvm.Value) (jvm.Value, error) {
	q.commits.Add(1)
	switch CommitFailure(q.commitFailure.Load()) {
	case CommitException:
		return nil, ThrowNamed(env, simvm.ClassIllegalStateException, "afterCommit failed")
	case CommitError:
		return nil, ThrowNamed(env, simvm.ClassOutOfMemoryError, "Java heap space")
	}

	name, err := env.NewString(ValueEntry)
	if err != nil {
		return nil, err
	}
	entry := q.natives.EntryIndexProxyNativeCreate(env, name, args[0].(int64))
	if env.ExceptionCheck() {
		return nil, nil
	}
	defer q.natives.EntryIndexProxyNativeFree(env, entry)

	v := q.natives.EntryIndexProxyNativeGet(env, entry)
	if env.ExceptionCheck() {
		return nil, nil
	}
	var value []byte
	if !v.IsNull() {
		if value, err = env.GetByteArray(v); err != nil {
			return nil, err
		}
	}
	q.mu.Lock()
	q.committed = value
	q.mu.Unlock()
	return nil, nil
}

func (q *QaRuntime) stop(jvm.Env, []jvm.Value) (jvm.Value, error) {
	q.shutdown.Store(true)
	return nil, nil
}
