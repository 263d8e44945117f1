package bindings

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/executor"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/resource"
	"github.com/wippyai/javabinding/storage"
)

// Signatures of the service runtime adapter methods.
const (
	sigInitialize         = "(J)V"
	sigDeployArtifact     = "([B[B)V"
	sigIsArtifactDeployed = "([B)Z"
	sigStartAddingService = "(J[B[B)V"
	sigExecuteTransaction = "(IIJ[B)V"
	sigBeforeCommit       = "(IJ)V"
	sigStateHashes        = "(J)[B"
	sigAfterCommit        = "(J)V"
	sigShutdown           = "()V"
)

// RuntimeProxy calls the managed service runtime adapter. Every call runs
// attached through the bridge executor; exceptions thrown by the adapter
// are translated into errors or panics depending on the call.
type RuntimeProxy struct {
	bridge  *Bridge
	adapter jvm.Object
}

// NewRuntimeProxy creates a proxy for adapter, which is kept alive by a
// global reference until Close.
func NewRuntimeProxy(b *Bridge, env jvm.Env, adapter jvm.Object) *RuntimeProxy {
	return &RuntimeProxy{
		bridge:  b,
		adapter: env.NewGlobalRef(adapter),
	}
}

// Close deletes the global reference to the adapter.
func (p *RuntimeProxy) Close() error {
	return p.bridge.executor.Attached(func(env jvm.Env) error {
		env.DeleteGlobalRef(p.adapter)
		return nil
	})
}

func (p *RuntimeProxy) ex() executor.Executor { return p.bridge.executor }

func (p *RuntimeProxy) call(env jvm.Env, name, sig string, args ...jvm.Value) (jvm.Value, error) {
	return env.CallMethod(p.adapter, name, sig, args...)
}

// Initialize passes the node handle to the adapter.
func (p *RuntimeProxy) Initialize(nodeHandle int64) error {
	_, err := exceptions.CallDefault(p.ex(), func(env jvm.Env) (struct{}, error) {
		_, err := p.call(env, "initialize", sigInitialize, nodeHandle)
		return void(err)
	})
	return err
}

// DeployArtifact asks the adapter to deploy an artifact.
func (p *RuntimeProxy) DeployArtifact(id, spec []byte) error {
	_, err := exceptions.CallDefault(p.ex(), func(env jvm.Env) (struct{}, error) {
		idArr, err := env.NewByteArray(id)
		if err != nil {
			return void(err)
		}
		defer env.DeleteLocalRef(idArr)
		specArr, err := env.NewByteArray(spec)
		if err != nil {
			return void(err)
		}
		defer env.DeleteLocalRef(specArr)

		_, err = p.call(env, "deployArtifact", sigDeployArtifact, idArr, specArr)
		return void(err)
	})
	return err
}

// IsArtifactDeployed reports whether the adapter has deployed id.
func (p *RuntimeProxy) IsArtifactDeployed(id []byte) (bool, error) {
	return exceptions.CallDefault(p.ex(), func(env jvm.Env) (bool, error) {
		idArr, err := env.NewByteArray(id)
		if err != nil {
			return false, err
		}
		defer env.DeleteLocalRef(idArr)

		v, err := p.call(env, "isArtifactDeployed", sigIsArtifactDeployed, idArr)
		if err != nil {
			return false, err
		}
		deployed, _ := v.(bool)
		return deployed, nil
	})
}

// StartAddingService asks the adapter to start a service instance
// described by spec with the given configuration. The adapter gets a
// mutable view of fork, so it may checkpoint and roll back its own
// changes.
func (p *RuntimeProxy) StartAddingService(fork *storage.Fork, spec, configuration []byte) error {
	return resource.BorrowMut(p.bridge.registry, storage.FromRefMutFork(fork), func(view resource.Handle) error {
		_, err := exceptions.CallDefault(p.ex(), func(env jvm.Env) (struct{}, error) {
			specArr, err := env.NewByteArray(spec)
			if err != nil {
				return void(err)
			}
			defer env.DeleteLocalRef(specArr)
			cfgArr, err := env.NewByteArray(configuration)
			if err != nil {
				return void(err)
			}
			defer env.DeleteLocalRef(cfgArr)

			_, err = p.call(env, "startAddingService", sigStartAddingService, int64(view), specArr, cfgArr)
			return void(err)
		})
		return err
	})
}

// ExecuteTransaction runs a transaction of a service against fork. The
// adapter receives a borrowed view handle that is valid only during the
// call.
func (p *RuntimeProxy) ExecuteTransaction(fork *storage.Fork, serviceID, txID int32, args []byte) error {
	return resource.BorrowMut(p.bridge.registry, storage.FromRefFork(fork), func(view resource.Handle) error {
		_, err := exceptions.CallTransaction(p.ex(), func(env jvm.Env) (struct{}, error) {
			argsArr, err := env.NewByteArray(args)
			if err != nil {
				return void(err)
			}
			defer env.DeleteLocalRef(argsArr)

			_, err = p.call(env, "executeTransaction", sigExecuteTransaction, serviceID, txID, int64(view), argsArr)
			return void(err)
		})
		return err
	})
}

// BeforeCommit lets a service update its state at the end of a block
// through a mutable view of fork. Any exception thrown by the adapter is
// fatal.
func (p *RuntimeProxy) BeforeCommit(fork *storage.Fork, serviceID int32) error {
	return resource.BorrowMut(p.bridge.registry, storage.FromRefMutFork(fork), func(view resource.Handle) error {
		_, err := exceptions.CallDefault(p.ex(), func(env jvm.Env) (struct{}, error) {
			_, err := p.call(env, "beforeCommit", sigBeforeCommit, serviceID, int64(view))
			return exceptions.PanicOnException(env, struct{}{}, err), nil
		})
		return err
	})
}

// StateHashes returns the serialized state hashes of the services as of
// snapshot. Any exception thrown by the adapter is fatal.
func (p *RuntimeProxy) StateHashes(snapshot storage.Snapshot) ([]byte, error) {
	var hashes []byte
	err := resource.Borrow(p.bridge.registry, storage.FromRefSnapshot(snapshot), func(view resource.Handle) error {
		var err error
		hashes, err = executor.WithAttached(p.ex(), func(env jvm.Env) ([]byte, error) {
			v, err := p.call(env, "stateHashes", sigStateHashes, int64(view))
			arr, _ := exceptions.PanicOnException(env, v, err).(jvm.Object)
			if arr.IsNull() {
				return nil, nil
			}
			defer env.DeleteLocalRef(arr)
			return env.GetByteArray(arr)
		})
		return err
	})
	if err != nil {
		return nil, errors.JNI(fmt.Sprintf("failed to read state hashes: %v", err), err)
	}
	return hashes, nil
}

// AfterCommit notifies the adapter that a block was committed. A
// java.lang.Error thrown by the adapter panics; other exceptions are
// returned as errors.
func (p *RuntimeProxy) AfterCommit(snapshot storage.Snapshot) error {
	return resource.Borrow(p.bridge.registry, storage.FromRefSnapshot(snapshot), func(view resource.Handle) error {
		_, err := executor.WithAttached(p.ex(), func(env jvm.Env) (struct{}, error) {
			_, err := p.call(env, "afterCommit", sigAfterCommit, int64(view))
			return exceptions.CheckErrorOnException(env, struct{}{}, err)
		})
		return err
	})
}

// Shutdown stops the adapter. Any exception thrown by it is fatal.
func (p *RuntimeProxy) Shutdown() error {
	_, err := executor.WithAttached(p.ex(), func(env jvm.Env) (struct{}, error) {
		_, err := p.call(env, "shutdown", sigShutdown)
		return exceptions.PanicOnException(env, struct{}{}, err), nil
	})
	if err != nil {
		Logger().Error("failed to shut down service runtime", zap.Error(err))
	}
	return err
}
