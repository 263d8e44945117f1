package bindings

import (
	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/executor"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/resource"
	"github.com/wippyai/javabinding/storage"
)

// Bridge owns the resource registry shared by all entry points and the
// executor used to call back into the managed runtime.
type Bridge struct {
	registry *resource.Registry
	executor executor.Executor
}

// NewBridge creates a bridge with an empty registry. Resource lifecycle
// events are logged at debug level.
func NewBridge(ex executor.Executor) *Bridge {
	b := &Bridge{
		registry: resource.NewRegistry(),
		executor: ex,
	}
	b.registry.Subscribe(debugObserver{})
	return b
}

// Registry returns the registry holding every handle issued by b.
func (b *Bridge) Registry() *resource.Registry { return b.registry }

// Executor returns the executor used for calls into the managed runtime.
func (b *Bridge) Executor() executor.Executor { return b.executor }

type debugObserver struct{}

func (debugObserver) OnResourceEvent(e resource.Event) {
	if ce := Logger().Check(zap.DebugLevel, "resource "+e.Kind.String()); ce != nil {
		ce.Write(
			zap.Int64("handle", int64(e.Handle)),
			zap.Stringer("type", e.Type),
			zap.Stringer("ownership", e.Ownership),
		)
	}
}

func handle(h int64) resource.Handle { return resource.Handle(h) }

// bytesArg copies a non-null managed byte array.
func bytesArg(env jvm.Env, obj jvm.Object, name string) ([]byte, error) {
	if obj.IsNull() {
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Detail("%s must not be null", name).
			Build()
	}
	return env.GetByteArray(obj)
}

// bytesResult returns b as a new managed byte array, or null for nil.
func bytesResult(env jvm.Env, b []byte) (jvm.Object, error) {
	if b == nil {
		return jvm.Null, nil
	}
	return env.NewByteArray(b)
}

func stringArg(env jvm.Env, obj jvm.Object, name string) (string, error) {
	if obj.IsNull() {
		return "", errors.New(errors.PhaseView, errors.KindInvalidInput).
			Detail("%s must not be null", name).
			Build()
	}
	return env.GetString(obj)
}

// TemporaryDBNativeCreate creates an in-memory database and returns its
// handle, or 0 with a pending exception.
func (b *Bridge) TemporaryDBNativeCreate(env jvm.Env) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		db, err := storage.NewTemporaryDB()
		if err != nil {
			return 0, err
		}
		return int64(resource.ToHandle(b.registry, db)), nil
	})
}

// DatabaseNativeOpen opens an on-disk database at the given path.
func (b *Bridge) DatabaseNativeOpen(env jvm.Env, path jvm.Object) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		p, err := stringArg(env, path, "path")
		if err != nil {
			return 0, err
		}
		db, err := storage.Open(p)
		if err != nil {
			return 0, err
		}
		return int64(resource.ToHandle(b.registry, db)), nil
	})
}

// DatabaseNativeCreateSnapshot returns the handle of an owned snapshot
// view of the database.
func (b *Bridge) DatabaseNativeCreateSnapshot(env jvm.Env, dbHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		db := resource.CastHandle[*storage.DB](b.registry, handle(dbHandle))
		s, err := db.Snapshot()
		if err != nil {
			return 0, err
		}
		return int64(resource.ToHandle(b.registry, storage.FromOwnedSnapshot(s))), nil
	})
}

// DatabaseNativeCreateFork returns the handle of an owned fork view of the
// database.
func (b *Bridge) DatabaseNativeCreateFork(env jvm.Env, dbHandle int64) int64 {
	return exceptions.CatchDefault(env, func() (int64, error) {
		db := resource.CastHandle[*storage.DB](b.registry, handle(dbHandle))
		f, err := db.Fork()
		if err != nil {
			return 0, err
		}
		return int64(resource.ToHandle(b.registry, storage.FromOwnedFork(f))), nil
	})
}

// DatabaseNativeMerge merges the changes of an owned fork view into the
// database. The fork handle is consumed.
func (b *Bridge) DatabaseNativeMerge(env jvm.Env, dbHandle, forkHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		db := resource.CastHandle[*storage.DB](b.registry, handle(dbHandle))
		view := resource.CastHandle[*storage.View](b.registry, handle(forkHandle))
		if !view.CanConvertIntoFork() {
			return void(errors.New(errors.PhaseView, errors.KindInvalidInput).
				Value(forkHandle).
				Detail("view %v cannot be merged, only owned forks can", view).
				Build())
		}
		view = resource.AcquireOwnership[*storage.View](b.registry, handle(forkHandle))
		return void(db.Merge(view.IntoFork().IntoPatch()))
	})
}

// DatabaseNativeFree closes the database and destroys its handle.
func (b *Bridge) DatabaseNativeFree(env jvm.Env, dbHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.DropHandle[*storage.DB](b.registry, handle(dbHandle))
		return void(nil)
	})
}

// ViewsNativeFree destroys a view handle, releasing an owned snapshot or
// fork.
func (b *Bridge) ViewsNativeFree(env jvm.Env, viewHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.DropHandle[*storage.View](b.registry, handle(viewHandle))
		return void(nil)
	})
}

// ForkNativeCreateCheckpoint flushes the fork behind the view.
func (b *Bridge) ForkNativeCreateCheckpoint(env jvm.Env, viewHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.CastHandle[*storage.View](b.registry, handle(viewHandle)).CreateCheckpoint()
		return void(nil)
	})
}

// ForkNativeRollback discards the changes made since the last checkpoint.
func (b *Bridge) ForkNativeRollback(env jvm.Env, viewHandle int64) {
	exceptions.CatchDefault(env, func() (struct{}, error) {
		resource.CastHandle[*storage.View](b.registry, handle(viewHandle)).Rollback()
		return void(nil)
	})
}

// ForkNativeCanRollback reports whether the view supports rollbacks.
func (b *Bridge) ForkNativeCanRollback(env jvm.Env, viewHandle int64) bool {
	return exceptions.CatchDefault(env, func() (bool, error) {
		return resource.CastHandle[*storage.View](b.registry, handle(viewHandle)).CanRollback(), nil
	})
}

// ForkNativeCanConvertIntoPatch reports whether the view can be merged.
func (b *Bridge) ForkNativeCanConvertIntoPatch(env jvm.Env, viewHandle int64) bool {
	return exceptions.CatchDefault(env, func() (bool, error) {
		return resource.CastHandle[*storage.View](b.registry, handle(viewHandle)).CanConvertIntoFork(), nil
	})
}
