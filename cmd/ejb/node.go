package main

import (
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/javabinding/bindings"
	"github.com/wippyai/javabinding/config"
	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/executor"
	"github.com/wippyai/javabinding/fakes"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
	"github.com/wippyai/javabinding/storage"
)

// qaServiceID is the instance id transactions are addressed to.
const qaServiceID int32 = 1

const defaultArtifact = "io.wippy.binding.qa:qa-service:1.0.0"

// instance is a running node together with everything it owns.
type instance struct {
	log     *zap.Logger
	vm      *simvm.VM
	workers io.Closer
	db      *storage.DB
	proxy   *bindings.RuntimeProxy
	qa      *fakes.QaRuntime
	node    *bindings.Node
}

// startNode assembles a node from cfg: the managed runtime, the executor,
// the database and the QA service, then deploys the service artifact.
func startNode(cfg config.Config, log *zap.Logger) (in *instance, err error) {
	vm := simvm.New(simvm.WithLogger(log.Named("vm")))
	if err := fakes.DefineQaRuntime(vm); err != nil {
		return nil, err
	}
	ex, workers, err := executor.New(vm, cfg.Executor.Kind, cfg.Executor.AttachLimit)
	if err != nil {
		return nil, err
	}

	in = &instance{log: log, vm: vm, workers: workers}
	defer func() {
		if err != nil {
			_ = in.Close()
			in = nil
		}
	}()

	if in.db, err = openDB(cfg.Database); err != nil {
		return in, err
	}

	b := bindings.NewBridge(ex)
	err = vm.Run(func(env jvm.Env) error {
		obj, qa, err := fakes.NewQaRuntime(env, b)
		if err != nil {
			return err
		}
		defer env.DeleteLocalRef(obj)
		in.proxy = bindings.NewRuntimeProxy(b, env, obj)
		in.qa = qa
		return nil
	})
	if err != nil {
		return in, errors.Wrap(errors.PhaseRuntime, errors.KindJNI, err, "failed to create service runtime")
	}

	node := bindings.NewNode(b, in.db, in.proxy)
	if err = node.Start(); err != nil {
		return in, err
	}
	in.node = node

	artifact := cfg.Service.ModuleName
	if artifact == "" {
		artifact = defaultArtifact
	}
	if err = node.DeployArtifact(bindings.JavaRuntimeID, []byte(artifact), nil); err != nil {
		return in, err
	}
	log.Info("node ready",
		zap.String("artifact", artifact),
		zap.String("executor", string(cfg.Executor.Kind)),
		zap.String("database", cfg.Database.Path))
	return in, nil
}

func openDB(cfg config.DatabaseConfig) (*storage.DB, error) {
	if cfg.Path == "" {
		return storage.NewTemporaryDB()
	}
	return storage.Open(cfg.Path)
}

// status returns the node height and the value last stored by the QA
// service.
func (in *instance) status() (uint64, []byte, error) {
	height, err := in.node.Height()
	if err != nil {
		return 0, nil, err
	}
	snap, err := in.db.Snapshot()
	if err != nil {
		return 0, nil, err
	}
	defer snap.Release()
	entry, err := storage.NewEntry(fakes.ValueEntry, storage.SnapshotRef(snap))
	if err != nil {
		return 0, nil, err
	}
	value, err := entry.Get()
	return height, value, err
}

// Close stops the node and releases its resources in reverse order of
// creation.
func (in *instance) Close() error {
	var err error
	if in.node != nil {
		err = multierr.Append(err, in.node.Stop())
	}
	if in.proxy != nil {
		err = multierr.Append(err, in.proxy.Close())
	}
	if in.db != nil {
		err = multierr.Append(err, in.db.Close())
	}
	if in.workers != nil {
		err = multierr.Append(err, in.workers.Close())
	}
	return err
}
