package bindings

import (
	"encoding/binary"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/resource"
	"github.com/wippyai/javabinding/storage"
)

// JavaRuntimeID identifies artifacts handled by the managed runtime.
const JavaRuntimeID uint32 = 1

// Names of the indexes the node maintains itself.
const (
	heightEntry   = "core.height"
	txErrorsIndex = "core.tx_errors"
	servicesIndex = "core.services"
)

// Node executes transactions against a database through a service
// runtime. Every submitted transaction is committed as its own block:
// the transaction runs in a fork, its changes are discarded if it fails,
// and the fork is merged before the runtime is notified of the commit.
type Node struct {
	bridge  *Bridge
	db      *storage.DB
	runtime *RuntimeProxy

	mu     sync.Mutex
	handle resource.Handle
}

// NewNode creates a node. Start must be called before submitting
// transactions.
func NewNode(b *Bridge, db *storage.DB, runtime *RuntimeProxy) *Node {
	return &Node{bridge: b, db: db, runtime: runtime}
}

// DB returns the node database.
func (n *Node) DB() *storage.DB { return n.db }

// Handle returns the handle the runtime knows the node by, or 0 before
// Start.
func (n *Node) Handle() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return int64(n.handle)
}

// Start registers the node and initializes the runtime with its handle.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handle != 0 {
		return errors.InvalidInput(errors.PhaseRuntime, "node already started")
	}
	n.handle = resource.ToHandle(n.bridge.registry, n)
	if err := n.runtime.Initialize(int64(n.handle)); err != nil {
		resource.AcquireOwnership[*Node](n.bridge.registry, n.handle)
		n.handle = 0
		return err
	}
	Logger().Info("node started", zap.Int64("handle", int64(n.handle)))
	return nil
}

// Stop shuts the runtime down and releases the node handle unless the
// managed side already freed it.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.runtime.Shutdown()
	if n.handle != 0 && n.bridge.registry.Contains(n.handle) {
		resource.DropHandle[*Node](n.bridge.registry, n.handle)
	}
	n.handle = 0
	Logger().Info("node stopped")
	return err
}

// DeployArtifact deploys an artifact of the given runtime.
func (n *Node) DeployArtifact(runtimeID uint32, id, spec []byte) error {
	if runtimeID != JavaRuntimeID {
		return errors.IncorrectArtifact(runtimeID)
	}
	if err := n.runtime.DeployArtifact(id, spec); err != nil {
		return err
	}
	Logger().Info("artifact deployed", zap.ByteString("artifact", id))
	return nil
}

// Height returns the number of committed blocks.
func (n *Node) Height() (uint64, error) {
	snap, err := n.db.Snapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Release()
	return height(storage.SnapshotRef(snap))
}

func height(view storage.ViewRef) (uint64, error) {
	entry, err := storage.NewEntry(heightEntry, view)
	if err != nil {
		return 0, err
	}
	v, err := entry.Get()
	if err != nil || v == nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// SubmitTransaction executes a transaction and commits the result. The
// execution error, if any, is returned after the block is committed
// without the transaction's changes; it is also recorded in the
// core.tx_errors index under the block height.
func (n *Node) SubmitTransaction(serviceID, txID int32, args []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	fork, err := n.db.Fork()
	if err != nil {
		return err
	}
	// No-op once the fork is merged.
	defer fork.Release()

	execErr := n.runtime.ExecuteTransaction(fork, serviceID, txID, args)
	if execErr != nil {
		fork.Rollback()
		Logger().Warn("transaction failed",
			zap.Int32("service", serviceID),
			zap.Int32("tx", txID),
			zap.Error(execErr))
	}

	if err := n.beforeCommit(fork); err != nil {
		return err
	}

	view := storage.ForkRef(fork)
	h, err := height(view)
	if err != nil {
		return err
	}
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], h)
	if execErr != nil {
		txErrors, err := storage.NewMapIndex(txErrorsIndex, view)
		if err != nil {
			return err
		}
		if err := txErrors.Put(key[:], []byte(execErr.Error())); err != nil {
			return err
		}
	}
	entry, err := storage.NewEntry(heightEntry, view)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(key[:], h+1)
	if err := entry.Set(key[:]); err != nil {
		return err
	}

	if err := n.db.Merge(fork.IntoPatch()); err != nil {
		return err
	}

	snap, err := n.db.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	if err := n.runtime.AfterCommit(snap); err != nil {
		Logger().Error("after commit notification failed", zap.Error(err))
	}
	return execErr
}

// AddService starts a service instance described by spec. The service
// is added in its own block; if the runtime refuses it, nothing is
// committed.
func (n *Node) AddService(serviceID int32, spec, configuration []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	fork, err := n.db.Fork()
	if err != nil {
		return err
	}
	defer fork.Release()

	services, err := storage.NewMapIndex(servicesIndex, storage.ForkRef(fork))
	if err != nil {
		return err
	}
	key := serviceKey(serviceID)
	exists, err := services.ContainsKey(key)
	if err != nil {
		return err
	}
	if exists {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(serviceID).
			Detail("service %d is already added", serviceID).
			Build()
	}

	if err := n.runtime.StartAddingService(fork, spec, configuration); err != nil {
		return err
	}
	if err := services.Put(key, spec); err != nil {
		return err
	}
	if err := n.db.Merge(fork.IntoPatch()); err != nil {
		return err
	}
	Logger().Info("service added", zap.Int32("service", serviceID))
	return nil
}

// beforeCommit lets every added service finish the block in fork.
func (n *Node) beforeCommit(fork *storage.Fork) error {
	services, err := storage.NewMapIndex(servicesIndex, storage.ForkRef(fork))
	if err != nil {
		return err
	}
	keys, err := services.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := n.runtime.BeforeCommit(fork, int32(binary.BigEndian.Uint32(k))); err != nil {
			return err
		}
	}
	return nil
}

func serviceKey(id int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(id))
}

// StateHashes returns the state hashes reported by the runtime for the
// current state.
func (n *Node) StateHashes() ([]byte, error) {
	snap, err := n.db.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()
	return n.runtime.StateHashes(snap)
}

// TxError returns the recorded execution error of the block at height h,
// or "" if the transaction succeeded. Blocks that are not committed yet
// are reported as not found.
func (n *Node) TxError(h uint64) (string, error) {
	snap, err := n.db.Snapshot()
	if err != nil {
		return "", err
	}
	defer snap.Release()
	view := storage.SnapshotRef(snap)
	committed, err := height(view)
	if err != nil {
		return "", err
	}
	if h >= committed {
		return "", errors.NotFound(errors.PhaseRuntime, "block", strconv.FormatUint(h, 10))
	}
	txErrors, err := storage.NewMapIndex(txErrorsIndex, view)
	if err != nil {
		return "", err
	}
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], h)
	v, err := txErrors.Get(key[:])
	return string(v), err
}

// NodeNativeCreateSnapshot returns the handle of an owned snapshot view of
// the node database.
func (b *Bridge) NodeNativeCreateSnapshot(env jvm.Env, nodeHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		node := resource.CastHandle[*Node](b.registry, handle(nodeHandle))
		s, err := node.db.Snapshot()
		if err != nil {
			return 0, err
		}
		return int64(resource.ToHandle(b.registry, storage.FromOwnedSnapshot(s))), nil
	})
}

// NodeNativeSubmitTransaction executes and commits a transaction. A failed
// transaction leaves a RuntimeException describing the error pending. It
// must not be called from inside a transaction.
func (b *Bridge) NodeNativeSubmitTransaction(env jvm.Env, nodeHandle int64, serviceID, txID int32, args jvm.Object) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		node := resource.CastHandle[*Node](b.registry, handle(nodeHandle))
		a, err := bytesArg(env, args, "arguments")
		if err != nil {
			return void(err)
		}
		return void(node.SubmitTransaction(serviceID, txID, a))
	})
}

// NodeNativeFree destroys the node handle. The node itself keeps running
// until stopped.
func (b *Bridge) NodeNativeFree(env jvm.Env, nodeHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.DropHandle[*Node](b.registry, handle(nodeHandle))
		return void(nil)
	})
}
