package bindings_test

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/javabinding/bindings"
	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/fakes"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
	"github.com/wippyai/javabinding/storage"
)

const qaService int32 = 1

type nodeFixture struct {
	vm     *simvm.VM
	bridge *bindings.Bridge
	proxy  *bindings.RuntimeProxy
	qa     *fakes.QaRuntime
	node   *bindings.Node
}

func newNode(t *testing.T) *nodeFixture {
	t.Helper()
	vm, b := newBridge(t)
	f := &nodeFixture{vm: vm, bridge: b}

	require.NoError(t, vm.Run(func(env jvm.Env) error {
		obj, qa, err := fakes.NewQaRuntime(env, b)
		if err != nil {
			return err
		}
		defer env.DeleteLocalRef(obj)
		f.proxy = bindings.NewRuntimeProxy(b, env, obj)
		f.qa = qa
		return nil
	}))

	db, err := storage.NewTemporaryDB()
	require.NoError(t, err)
	t.Cleanup(db.Drop)

	f.node = bindings.NewNode(b, db, f.proxy)
	require.NoError(t, f.node.Start())
	t.Cleanup(func() {
		_ = f.node.Stop()
		_ = f.proxy.Close()
	})
	return f
}

func (f *nodeFixture) value(t *testing.T) []byte {
	t.Helper()
	snap, err := f.node.DB().Snapshot()
	require.NoError(t, err)
	defer snap.Release()
	entry, err := storage.NewEntry(fakes.ValueEntry, storage.SnapshotRef(snap))
	require.NoError(t, err)
	v, err := entry.Get()
	require.NoError(t, err)
	return v
}

func TestNode_Start(t *testing.T) {
	f := newNode(t)
	assert.NotZero(t, f.node.Handle())
	assert.Equal(t, f.node.Handle(), f.qa.Node())
	assert.Equal(t, 1, f.bridge.Registry().Len())

	err := f.node.Start()
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})
}

func TestNode_SubmitTransaction(t *testing.T) {
	f := newNode(t)

	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v1")))
	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v2")))

	h, err := f.node.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h)
	assert.Equal(t, []byte("v2"), f.value(t))
	assert.Equal(t, []byte("v2"), f.qa.Committed())
	assert.Equal(t, int64(2), f.qa.Commits())

	msg, err := f.node.TxError(0)
	require.NoError(t, err)
	assert.Empty(t, msg)
	_, err = f.node.TxError(2)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindNotFound, Phase: errors.PhaseRuntime})
	assert.EqualError(t, err, `[runtime] not_found: block "2" not found`)

	// Only the node handle stays registered; borrowed views are gone.
	assert.Equal(t, 1, f.bridge.Registry().Len())
	assert.Zero(t, f.vm.Stats().LocalRefs, "local references leaked")
}

func TestNode_TransactionErrors(t *testing.T) {
	tests := []struct {
		name   string
		txID   int32
		args   []byte
		kind   errors.Kind
		class  string
		detail string
		code   uint8
	}{
		{
			name:   "execution exception",
			txID:   fakes.TxExecutionError,
			args:   []byte{5, 'm'},
			kind:   errors.KindService,
			detail: "m",
			code:   5,
		},
		{
			name:   "unexpected execution exception",
			txID:   fakes.TxUnexpectedError,
			kind:   errors.KindUnexpected,
			class:  "java.lang.ArithmeticException",
			detail: "/ by zero",
		},
		{
			name:   "illegal argument",
			txID:   fakes.TxIllegalArgument,
			kind:   errors.KindIllegalArgument,
			class:  "java.lang.IllegalArgumentException",
			detail: "Invalid transaction arguments",
		},
		{
			name:   "unknown transaction",
			txID:   99,
			kind:   errors.KindIllegalArgument,
			class:  "java.lang.IllegalArgumentException",
			detail: "Unknown transaction id: 99",
		},
		{
			name:   "invalid handle passed to a native method",
			txID:   fakes.TxBadHandle,
			kind:   errors.KindJavaException,
			class:  "java.lang.RuntimeException",
			detail: "Java exception: java.lang.RuntimeException; Invalid handle value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNode(t)

			err := f.node.SubmitTransaction(qaService, tt.txID, tt.args)
			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.class, e.Class)
			assert.Equal(t, tt.detail, e.Detail)
			assert.Equal(t, tt.code, e.Code)

			// The block is committed with the error recorded.
			h, err := f.node.Height()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), h)
			msg, err := f.node.TxError(0)
			require.NoError(t, err)
			assert.Equal(t, e.Error(), msg)

			assert.Equal(t, 1, f.bridge.Registry().Len())
			assert.Zero(t, f.vm.Stats().LocalRefs, "local references leaked")
		})
	}
}

func TestNode_ServiceErrorMatching(t *testing.T) {
	f := newNode(t)
	err := f.node.SubmitTransaction(qaService, fakes.TxExecutionError, []byte{5, 'm'})
	assert.ErrorIs(t, err, errors.Service(5, ""))
	assert.NotErrorIs(t, err, errors.Service(6, ""))
	assert.EqualError(t, err, "[runtime] service(5): m")
}

func TestNode_FailedTransactionIsRolledBack(t *testing.T) {
	f := newNode(t)
	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("a")))

	err := f.node.SubmitTransaction(qaService, fakes.TxPutThenFail, []byte{7, 'x'})
	assert.ErrorIs(t, err, errors.Service(7, ""))

	assert.Equal(t, []byte("a"), f.value(t))
	assert.Equal(t, []byte("a"), f.qa.Committed())

	snap, err := f.node.DB().Snapshot()
	require.NoError(t, err)
	defer snap.Release()
	history, err := storage.NewListIndex(fakes.HistoryIndex, storage.SnapshotRef(snap))
	require.NoError(t, err)
	size, err := history.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), size)
}

func TestNode_AfterCommitFailures(t *testing.T) {
	f := newNode(t)

	f.qa.FailCommits(fakes.CommitException)
	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v")))
	assert.Equal(t, int64(1), f.qa.Commits())

	snap, err := f.node.DB().Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	err = f.proxy.AfterCommit(snap)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindJavaException, e.Kind)
	assert.Equal(t, "Java exception: java.lang.IllegalStateException; afterCommit failed", e.Detail)

	f.qa.FailCommits(fakes.CommitError)
	assert.PanicsWithValue(t, "Java exception: java.lang.OutOfMemoryError; Java heap space", func() {
		_ = f.proxy.AfterCommit(snap)
	})

	f.qa.FailCommits(fakes.CommitOK)
	require.NoError(t, f.proxy.AfterCommit(snap))
	assert.Equal(t, []byte("v"), f.qa.Committed())
	assert.Equal(t, 1, f.bridge.Registry().Len())
}

func (f *nodeFixture) entry(t *testing.T, name string) []byte {
	t.Helper()
	snap, err := f.node.DB().Snapshot()
	require.NoError(t, err)
	defer snap.Release()
	entry, err := storage.NewEntry(name, storage.SnapshotRef(snap))
	require.NoError(t, err)
	v, err := entry.Get()
	require.NoError(t, err)
	return v
}

func TestNode_AddService(t *testing.T) {
	f := newNode(t)

	require.NoError(t, f.node.AddService(qaService, []byte("qa:1.0"), []byte("cfg")))
	assert.True(t, f.qa.CouldRollback())
	assert.Equal(t, []byte("cfg"), f.entry(t, fakes.ConfigEntry))
	// Written after the checkpoint and rolled back by the service.
	assert.Nil(t, f.entry(t, fakes.ScratchEntry))

	err := f.node.AddService(qaService, []byte("qa:1.0"), []byte("other"))
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput, Phase: errors.PhaseRuntime})
	assert.Equal(t, []byte("cfg"), f.entry(t, fakes.ConfigEntry))

	err = f.node.AddService(qaService+1, []byte("qa:1.0"), nil)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindIllegalArgument, e.Kind)
	assert.Equal(t, "Service configuration must not be empty", e.Detail)

	// Adding services does not create blocks.
	h, err := f.node.Height()
	require.NoError(t, err)
	assert.Zero(t, h)
	assert.Equal(t, 1, f.bridge.Registry().Len())
	assert.Zero(t, f.vm.Stats().LocalRefs, "local references leaked")
}

func TestNode_BeforeCommit(t *testing.T) {
	f := newNode(t)

	// No services, no beforeCommit calls.
	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v1")))
	assert.Nil(t, f.entry(t, fakes.BeforeCommitEntry))

	require.NoError(t, f.node.AddService(qaService, []byte("qa:1.0"), []byte("cfg")))
	require.NoError(t, f.node.AddService(qaService+1, []byte("qa:1.0"), []byte("cfg")))
	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v2")))

	// Failed transactions still end their block.
	err := f.node.SubmitTransaction(qaService, fakes.TxExecutionError, []byte{1})
	assert.ErrorIs(t, err, errors.Service(1, ""))
	assert.Equal(t, binary.BigEndian.AppendUint64(nil, 4), f.entry(t, fakes.BeforeCommitEntry))

	f.qa.FailBeforeCommit(true)
	assert.PanicsWithValue(t, "Java exception: java.lang.IllegalStateException; beforeCommit of service 1 failed", func() {
		_ = f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v3"))
	})
	f.qa.FailBeforeCommit(false)

	// The block of the panicking call is not committed.
	h, err := f.node.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h)
	assert.Equal(t, []byte("v2"), f.value(t))
	assert.Equal(t, 1, f.bridge.Registry().Len())
	assert.Zero(t, f.vm.Stats().LocalRefs, "local references leaked")
}

func TestNode_StateHashes(t *testing.T) {
	f := newNode(t)

	hashes, err := f.node.StateHashes()
	require.NoError(t, err)
	assert.Equal(t, fakes.StateHash(nil), hashes)

	require.NoError(t, f.node.SubmitTransaction(qaService, fakes.TxPutValue, []byte("v")))
	hashes, err = f.node.StateHashes()
	require.NoError(t, err)
	assert.Equal(t, fakes.StateHash([]byte("v")), hashes)
	assert.Len(t, hashes, 32)

	assert.Equal(t, 1, f.bridge.Registry().Len())
	assert.Zero(t, f.vm.Stats().LocalRefs, "local references leaked")
}

func TestNode_DeployArtifact(t *testing.T) {
	f := newNode(t)

	require.NoError(t, f.node.DeployArtifact(bindings.JavaRuntimeID, []byte("qa:1.0"), nil))
	deployed, err := f.proxy.IsArtifactDeployed([]byte("qa:1.0"))
	require.NoError(t, err)
	assert.True(t, deployed)
	deployed, err = f.proxy.IsArtifactDeployed([]byte("other"))
	require.NoError(t, err)
	assert.False(t, deployed)

	err = f.node.DeployArtifact(bindings.JavaRuntimeID, []byte("qa:1.0"), nil)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindJavaException, e.Kind)
	assert.Equal(t, "java.lang.IllegalStateException", e.Class)

	err = f.node.DeployArtifact(bindings.JavaRuntimeID, nil, nil)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindIllegalArgument, e.Kind)
	assert.Equal(t, "Artifact id must not be empty", e.Detail)

	err = f.node.DeployArtifact(2, []byte("wasm:1.0"), nil)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindIncorrectArtifact})
}

func TestNode_SubmitThroughEntryPoint(t *testing.T) {
	f := newNode(t)
	require.NoError(t, f.vm.Run(func(env jvm.Env) error {
		f.bridge.NodeNativeSubmitTransaction(env, f.node.Handle(), qaService, fakes.TxPutValue, bytes(env, []byte("native")))
		assert.Empty(t, thrown(env))

		f.bridge.NodeNativeSubmitTransaction(env, f.node.Handle(), qaService, fakes.TxExecutionError, bytes(env, []byte{5, 'm'}))
		assert.Equal(t, runtimeException+"[runtime] service(5): m", thrown(env))

		snap := f.bridge.NodeNativeCreateSnapshot(env, f.node.Handle())
		entry := f.bridge.EntryIndexProxyNativeCreate(env, str(env, fakes.ValueEntry), snap)
		assert.Equal(t, []byte("native"), content(env, f.bridge.EntryIndexProxyNativeGet(env, entry)))
		f.bridge.EntryIndexProxyNativeFree(env, entry)
		f.bridge.ViewsNativeFree(env, snap)
		return nil
	}))
	assert.Equal(t, 1, f.bridge.Registry().Len())
}

func TestNode_Concurrent(t *testing.T) {
	f := newNode(t)

	const workers, perWorker = 8, 10
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				if err := f.node.SubmitTransaction(qaService, fakes.TxPutValue, fmt.Appendf(nil, "%d-%d", w, i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	h, err := f.node.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), h)
	assert.Equal(t, int64(workers*perWorker), f.qa.Commits())
	assert.Equal(t, 1, f.bridge.Registry().Len())
}

func TestNode_Stop(t *testing.T) {
	f := newNode(t)
	require.NoError(t, f.node.Stop())
	assert.True(t, f.qa.IsShutdown())
	assert.Zero(t, f.node.Handle())
	assert.Zero(t, f.bridge.Registry().Len())
}

func TestNode_FreedByManagedSide(t *testing.T) {
	f := newNode(t)
	require.NoError(t, f.vm.Run(func(env jvm.Env) error {
		f.bridge.NodeNativeFree(env, f.node.Handle())
		assert.Empty(t, thrown(env))
		return nil
	}))
	require.NoError(t, f.node.Stop())
	assert.Zero(t, f.bridge.Registry().Len())
}
