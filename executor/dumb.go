package executor

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
)

// Dumb attaches the current thread when needed and detaches it again after
// the call. It works from any number of threads but pays for an attach and
// a detach on every call made from a detached thread.
type Dumb struct {
	vm jvm.VM
}

// NewDumb creates a Dumb executor.
func NewDumb(vm jvm.VM) *Dumb {
	return &Dumb{vm: vm}
}

// Attached implements Executor.
func (d *Dumb) Attached(fn func(jvm.Env) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	env, err := d.vm.GetEnv()
	if err == nil {
		return fn(env)
	}
	if !errors.Is(err, jvm.ErrThreadDetached) {
		return err
	}

	env, err = d.vm.AttachCurrentThread()
	if err != nil {
		return err
	}
	defer func() {
		if err := d.vm.DetachCurrentThread(); err != nil {
			Logger().Warn("detach failed", zap.Error(err))
		}
	}()
	return fn(env)
}
