package simvm

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/jvm"
)

// BaseFrameCapacity is the capacity of the implicit local frame every
// attached thread starts with.
const BaseFrameCapacity = 16

// Stats is a point-in-time view of VM bookkeeping, used by leak tests.
type Stats struct {
	LocalRefs      int
	GlobalRefs     int
	Attached       int
	Attaches       int64
	Detaches       int64
	FrameGrowths   int64
	ObjectsCreated int64
}

// Option configures a VM.
type Option func(*VM)

// WithLogger sets the logger used for attach/detach and frame growth
// diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(vm *VM) {
		vm.log = l
	}
}

// VM is an in-process managed runtime. It implements jvm.VM.
type VM struct {
	log     *zap.Logger
	classes map[string]*class
	envs    map[int64]*env
	refs    map[jvm.Object]*ref
	mu      sync.Mutex

	attachErr error

	nextRef        atomic.Uint64
	nextObject     atomic.Uint64
	attaches       atomic.Int64
	detaches       atomic.Int64
	frameGrowths   atomic.Int64
	objectsCreated atomic.Int64
}

var _ jvm.VM = (*VM)(nil)

// New creates a VM with the bootstrap classes defined.
func New(opts ...Option) *VM {
	vm := &VM{
		log:     zap.NewNop(),
		classes: make(map[string]*class),
		envs:    make(map[int64]*env),
		refs:    make(map[jvm.Object]*ref),
	}
	for _, opt := range opts {
		opt(vm)
	}
	for _, def := range bootstrapClasses() {
		if err := vm.DefineClass(def); err != nil {
			panic(fmt.Sprintf("simvm: bootstrap class %s: %v", def.Name, err))
		}
	}
	return vm
}

// GetEnv returns the environment of the calling thread.
func (vm *VM) GetEnv() (jvm.Env, error) {
	tid := jvm.CurrentThreadID()
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if e, ok := vm.envs[tid]; ok {
		return e, nil
	}
	return nil, jvm.ErrThreadDetached
}

// AttachCurrentThread attaches the calling thread. The caller is expected
// to have locked its goroutine to the OS thread.
func (vm *VM) AttachCurrentThread() (jvm.Env, error) {
	tid := jvm.CurrentThreadID()

	vm.mu.Lock()
	if err := vm.attachErr; err != nil {
		vm.mu.Unlock()
		return nil, err
	}
	if e, ok := vm.envs[tid]; ok {
		vm.mu.Unlock()
		return e, nil
	}
	e := &env{vm: vm, tid: tid}
	e.frames = []*frame{{capacity: BaseFrameCapacity}}
	vm.envs[tid] = e
	attached := len(vm.envs)
	vm.mu.Unlock()

	vm.attaches.Add(1)
	vm.log.Debug("thread attached", zap.Int64("tid", tid), zap.Int("attached", attached))
	return e, nil
}

// DetachCurrentThread detaches the calling thread, releasing its local
// references. Detaching a thread that is not attached is a no-op.
func (vm *VM) DetachCurrentThread() error {
	tid := jvm.CurrentThreadID()

	vm.mu.Lock()
	e, ok := vm.envs[tid]
	if !ok {
		vm.mu.Unlock()
		return nil
	}
	for _, f := range e.frames {
		for _, r := range f.refs {
			delete(vm.refs, r)
		}
	}
	e.frames = nil
	e.detached = true
	delete(vm.envs, tid)
	attached := len(vm.envs)
	vm.mu.Unlock()

	vm.detaches.Add(1)
	vm.log.Debug("thread detached", zap.Int64("tid", tid), zap.Int("attached", attached))
	return nil
}

// SetAttachError makes subsequent attach attempts of new threads fail with
// err. A nil err restores normal behaviour.
func (vm *VM) SetAttachError(err error) {
	vm.mu.Lock()
	vm.attachErr = err
	vm.mu.Unlock()
}

// Stats returns current bookkeeping counters.
func (vm *VM) Stats() Stats {
	vm.mu.Lock()
	s := Stats{Attached: len(vm.envs)}
	for _, r := range vm.refs {
		if r.global {
			s.GlobalRefs++
		} else {
			s.LocalRefs++
		}
	}
	vm.mu.Unlock()

	s.Attaches = vm.attaches.Load()
	s.Detaches = vm.detaches.Load()
	s.FrameGrowths = vm.frameGrowths.Load()
	s.ObjectsCreated = vm.objectsCreated.Load()
	return s
}

// Run executes fn on a dedicated OS thread attached for the duration of
// the call. It is a convenience for tests and tools that do not go through
// an executor.
func (vm *VM) Run(fn func(jvm.Env) error) error {
	errc := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		e, err := vm.AttachCurrentThread()
		if err != nil {
			errc <- err
			return
		}
		defer func() {
			_ = vm.DetachCurrentThread()
			if r := recover(); r != nil {
				errc <- fmt.Errorf("simvm: panic in Run: %v", r)
			}
		}()
		errc <- fn(e)
	}()
	return <-errc
}

type ref struct {
	obj    *object
	env    *env
	global bool
}

type frame struct {
	refs     []jvm.Object
	capacity int
	internal bool
}

// newLocal registers a local reference in the top frame of e.
// vm.mu must be held.
func (vm *VM) newLocal(e *env, obj *object) jvm.Object {
	if obj == nil {
		return jvm.Null
	}
	id := jvm.Object(vm.nextRef.Add(1))
	vm.refs[id] = &ref{obj: obj, env: e}

	top := e.frames[len(e.frames)-1]
	if len(top.refs) >= top.capacity && !top.internal {
		vm.frameGrowths.Add(1)
		vm.log.Debug("local frame grown beyond capacity",
			zap.Int64("tid", e.tid), zap.Int("capacity", top.capacity))
	}
	top.refs = append(top.refs, id)
	return id
}

// newGlobal registers a global reference. vm.mu must be held.
func (vm *VM) newGlobal(obj *object) jvm.Object {
	if obj == nil {
		return jvm.Null
	}
	id := jvm.Object(vm.nextRef.Add(1))
	vm.refs[id] = &ref{obj: obj, global: true}
	return id
}

// resolve returns the object behind r for use on e. vm.mu must be held.
func (vm *VM) resolve(e *env, r jvm.Object) (*object, error) {
	if r == jvm.Null {
		return nil, nil
	}
	entry, ok := vm.refs[r]
	if !ok {
		return nil, jvm.NewError(jvm.KindInvalidReference, fmt.Sprintf("invalid reference %#x", uintptr(r)))
	}
	if !entry.global && entry.env != e {
		return nil, jvm.NewError(jvm.KindInvalidReference,
			fmt.Sprintf("local reference %#x used on a thread that does not own it", uintptr(r)))
	}
	return entry.obj, nil
}

func (vm *VM) newObject(c *class, native any) *object {
	vm.objectsCreated.Add(1)
	return &object{
		id:     vm.nextObject.Add(1),
		class:  c,
		native: native,
	}
}
