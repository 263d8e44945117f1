package simvm

import (
	"fmt"

	"github.com/wippyai/javabinding/jvm"
)

type env struct {
	vm       *VM
	pending  *object
	frames   []*frame
	tid      int64
	detached bool
}

var _ jvm.Env = (*env)(nil)

// enter checks the env is used on its own live thread.
func (e *env) enter() {
	if e.detached {
		panic("simvm: JNIEnv used after its thread was detached")
	}
	if tid := jvm.CurrentThreadID(); tid != e.tid {
		panic(fmt.Sprintf("simvm: JNIEnv of thread %d used from thread %d", e.tid, tid))
	}
}

func (e *env) VM() jvm.VM { return e.vm }

func (e *env) PushLocalFrame(capacity int) error {
	e.enter()
	if capacity <= 0 {
		return jvm.NewError(jvm.KindOther, fmt.Sprintf("invalid local frame capacity %d", capacity))
	}
	e.vm.mu.Lock()
	e.frames = append(e.frames, &frame{capacity: capacity})
	e.vm.mu.Unlock()
	return nil
}

func (e *env) PopLocalFrame(result jvm.Object) jvm.Object {
	e.enter()
	vm := e.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if len(e.frames) <= 1 {
		panic(jvm.NewError(jvm.KindFrameUnderflow, "PopLocalFrame called without a matching PushLocalFrame"))
	}
	return e.popLocked(result)
}

// popLocked drops the top frame and re-registers result, if any, in the
// frame below. vm.mu must be held.
func (e *env) popLocked(result jvm.Object) jvm.Object {
	vm := e.vm
	var keep *object
	if result != jvm.Null {
		if r, ok := vm.refs[result]; ok && (r.global || r.env == e) {
			keep = r.obj
		}
	}

	top := e.frames[len(e.frames)-1]
	for _, id := range top.refs {
		delete(vm.refs, id)
	}
	e.frames = e.frames[:len(e.frames)-1]

	return vm.newLocal(e, keep)
}

func (e *env) NewLocalRef(obj jvm.Object) jvm.Object {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.vm.resolve(e, obj)
	if err != nil {
		return jvm.Null
	}
	return e.vm.newLocal(e, o)
}

func (e *env) DeleteLocalRef(obj jvm.Object) {
	e.enter()
	if obj == jvm.Null {
		return
	}
	vm := e.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()

	r, ok := vm.refs[obj]
	if !ok || r.global || r.env != e {
		return
	}
	delete(vm.refs, obj)
	for i := len(e.frames) - 1; i >= 0; i-- {
		f := e.frames[i]
		for j, id := range f.refs {
			if id == obj {
				f.refs = append(f.refs[:j], f.refs[j+1:]...)
				return
			}
		}
	}
}

func (e *env) NewGlobalRef(obj jvm.Object) jvm.Object {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.vm.resolve(e, obj)
	if err != nil {
		return jvm.Null
	}
	return e.vm.newGlobal(o)
}

func (e *env) DeleteGlobalRef(obj jvm.Object) {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	if r, ok := e.vm.refs[obj]; ok && r.global {
		delete(e.vm.refs, obj)
	}
}

func (e *env) IsSameObject(a, b jvm.Object) bool {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	oa, errA := e.vm.resolve(e, a)
	ob, errB := e.vm.resolve(e, b)
	return errA == nil && errB == nil && oa == ob
}

func (e *env) FindClass(name string) (jvm.Object, error) {
	e.enter()
	if err := e.checkNoPending(); err != nil {
		return jvm.Null, err
	}

	e.vm.mu.Lock()
	c, ok := e.vm.classes[name]
	if ok {
		ref := e.vm.newLocal(e, c.mirror)
		e.vm.mu.Unlock()
		return ref, nil
	}
	e.vm.mu.Unlock()

	return jvm.Null, e.throwNamed(ClassNoClassDefFoundError, name)
}

func (e *env) GetObjectClass(obj jvm.Object) (jvm.Object, error) {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		return jvm.Null, err
	}
	return e.vm.newLocal(e, o.class.mirror), nil
}

func (e *env) IsInstanceOf(obj, cls jvm.Object) bool {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.vm.resolve(e, obj)
	if err != nil {
		return false
	}
	if o == nil {
		return true
	}
	c, err := e.classOf(cls)
	if err != nil {
		return false
	}
	return o.class.isSubclassOf(c)
}

func (e *env) NewObject(cls jvm.Object, sig string, args ...jvm.Value) (jvm.Object, error) {
	e.enter()
	if err := e.checkNoPending(); err != nil {
		return jvm.Null, err
	}

	parsed, err := jvm.ParseSignature(sig)
	if err != nil {
		return jvm.Null, err
	}
	if parsed.Ret != jvm.Void {
		return jvm.Null, jvm.NewError(jvm.KindInvalidCtorReturn, "Invalid constructor return type (must be void)")
	}
	if err := checkArgs(parsed, args); err != nil {
		return jvm.Null, err
	}

	e.vm.mu.Lock()
	c, err := e.classOf(cls)
	if err != nil {
		e.vm.mu.Unlock()
		return jvm.Null, err
	}
	ctor, ok := c.ctors[sig]
	if !ok {
		e.vm.mu.Unlock()
		return jvm.Null, e.throwNamed(ClassNoSuchMethodError, fmt.Sprintf("%s.<init>%s", c.dottedName(), sig))
	}
	o := e.vm.newObject(c, nil)
	ref := e.vm.newLocal(e, o)
	e.vm.mu.Unlock()

	if _, err := e.invoke(ctor, ref, parsed, args); err != nil {
		e.DeleteLocalRef(ref)
		return jvm.Null, err
	}
	return ref, nil
}

func (e *env) CallMethod(obj jvm.Object, name, sig string, args ...jvm.Value) (jvm.Value, error) {
	e.enter()
	if err := e.checkNoPending(); err != nil {
		return nil, err
	}

	parsed, err := jvm.ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	if err := checkArgs(parsed, args); err != nil {
		return jvm.ZeroValue(parsed.Ret), err
	}

	e.vm.mu.Lock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		e.vm.mu.Unlock()
		return jvm.ZeroValue(parsed.Ret), err
	}
	m, ok := o.class.method(name + sig)
	className := o.class.dottedName()
	e.vm.mu.Unlock()

	if !ok {
		return jvm.ZeroValue(parsed.Ret), e.throwNamed(ClassNoSuchMethodError, fmt.Sprintf("%s.%s%s", className, name, sig))
	}
	return e.invoke(m, obj, parsed, args)
}

func (e *env) CallStaticMethod(cls jvm.Object, name, sig string, args ...jvm.Value) (jvm.Value, error) {
	e.enter()
	if err := e.checkNoPending(); err != nil {
		return nil, err
	}

	parsed, err := jvm.ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	if err := checkArgs(parsed, args); err != nil {
		return jvm.ZeroValue(parsed.Ret), err
	}

	e.vm.mu.Lock()
	c, err := e.classOf(cls)
	if err != nil {
		e.vm.mu.Unlock()
		return jvm.ZeroValue(parsed.Ret), err
	}
	m, ok := c.statics[name+sig]
	e.vm.mu.Unlock()

	if !ok {
		return jvm.ZeroValue(parsed.Ret), e.throwNamed(ClassNoSuchMethodError, fmt.Sprintf("%s.%s%s", c.dottedName(), name, sig))
	}
	return e.invoke(m, jvm.Null, parsed, args)
}

// invoke runs managed code inside an internal local frame. Local
// references created by the method are released when it returns; an
// object result is carried over to the caller's frame.
func (e *env) invoke(m Method, this jvm.Object, sig jvm.Signature, args []jvm.Value) (result jvm.Value, err error) {
	vm := e.vm
	vm.mu.Lock()
	e.frames = append(e.frames, &frame{capacity: BaseFrameCapacity, internal: true})
	depth := len(e.frames)
	vm.mu.Unlock()

	var out jvm.Object
	defer func() {
		vm.mu.Lock()
		// Unbalanced frames left by the method are discarded with it.
		for len(e.frames) > depth {
			e.popLocked(jvm.Null)
		}
		if len(e.frames) == depth {
			promoted := e.popLocked(out)
			if out != jvm.Null {
				result = promoted
			}
		}
		vm.mu.Unlock()
	}()

	v, err := m(e, this, args)
	if e.ExceptionCheck() {
		return jvm.ZeroValue(sig.Ret), jvm.ErrJavaException
	}
	if err != nil {
		return jvm.ZeroValue(sig.Ret), err
	}
	if sig.Ret == jvm.Void {
		return nil, nil
	}
	if v == nil && sig.Ret.IsObject() {
		v = jvm.Null
	}
	if err := jvm.CheckValue(sig.Ret, v); err != nil {
		return jvm.ZeroValue(sig.Ret), err
	}
	if sig.Ret.IsObject() {
		out = v.(jvm.Object)
	}
	return v, nil
}

func (e *env) GetField(obj jvm.Object, name, sig string) (jvm.Value, error) {
	e.enter()
	t, err := jvm.ParseType(sig)
	if err != nil {
		return nil, err
	}

	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		return jvm.ZeroValue(t), err
	}
	if err := checkField(o, name, t); err != nil {
		return jvm.ZeroValue(t), err
	}

	v, ok := o.fields[name]
	if !ok {
		return jvm.ZeroValue(t), nil
	}
	if t.IsObject() {
		ref, _ := v.(*object)
		return e.vm.newLocal(e, ref), nil
	}
	return v, nil
}

func (e *env) SetField(obj jvm.Object, name, sig string, v jvm.Value) error {
	e.enter()
	t, err := jvm.ParseType(sig)
	if err != nil {
		return err
	}
	if err := jvm.CheckValue(t, v); err != nil {
		return err
	}

	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		return err
	}
	if err := checkField(o, name, t); err != nil {
		return err
	}

	if t.IsObject() {
		var target *object
		if ref, ok := v.(jvm.Object); ok {
			if target, err = e.vm.resolve(e, ref); err != nil {
				return err
			}
		}
		v = target
	}
	if o.fields == nil {
		o.fields = make(map[string]any)
	}
	o.fields[name] = v
	return nil
}

func (e *env) NewString(s string) (jvm.Object, error) {
	e.enter()
	return e.newNative(ClassString, s)
}

func (e *env) GetString(obj jvm.Object) (string, error) {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		return "", err
	}
	s, ok := o.native.(string)
	if !ok || o.class.name != ClassString {
		return "", jvm.NewError(jvm.KindWrongValueType, fmt.Sprintf("%s is not a string", o.class.dottedName()))
	}
	return s, nil
}

func (e *env) NewByteArray(b []byte) (jvm.Object, error) {
	e.enter()
	return e.newNative(ClassByteArray, append([]byte(nil), b...))
}

func (e *env) GetByteArray(obj jvm.Object) ([]byte, error) {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		return nil, err
	}
	b, ok := o.native.([]byte)
	if !ok || o.class.name != ClassByteArray {
		return nil, jvm.NewError(jvm.KindWrongValueType, fmt.Sprintf("%s is not a byte array", o.class.dottedName()))
	}
	return append([]byte(nil), b...), nil
}

func (e *env) Throw(exc jvm.Object) error {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(exc)
	if err != nil {
		return err
	}
	if !o.class.isSubclassOf(e.vm.classes[ClassThrowable]) {
		return jvm.NewError(jvm.KindWrongValueType, fmt.Sprintf("%s is not throwable", o.class.dottedName()))
	}
	e.pending = o
	return nil
}

func (e *env) ThrowNew(cls jvm.Object, msg string) error {
	e.enter()
	s, err := e.NewString(msg)
	if err != nil {
		return err
	}
	defer e.DeleteLocalRef(s)

	exc, err := e.NewObject(cls, "(Ljava/lang/String;)V", s)
	if err != nil {
		return err
	}
	defer e.DeleteLocalRef(exc)
	return e.Throw(exc)
}

func (e *env) ExceptionCheck() bool {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.pending != nil
}

func (e *env) ExceptionOccurred() jvm.Object {
	e.enter()
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.vm.newLocal(e, e.pending)
}

func (e *env) ExceptionClear() {
	e.enter()
	e.vm.mu.Lock()
	e.pending = nil
	e.vm.mu.Unlock()
}

func (e *env) checkNoPending() error {
	if e.ExceptionCheck() {
		return jvm.NewError(jvm.KindExceptionPending, "JNI call made with exception pending")
	}
	return nil
}

// throwNamed raises a bootstrap exception and reports it as pending.
func (e *env) throwNamed(className, msg string) error {
	e.vm.mu.Lock()
	c := e.vm.classes[className]
	msgObj := e.vm.newObject(e.vm.classes[ClassString], msg)
	exc := e.vm.newObject(c, nil)
	exc.fields = map[string]any{fieldDetailMessage: msgObj}
	e.pending = exc
	e.vm.mu.Unlock()
	return jvm.ErrJavaException
}

func (e *env) newNative(className string, native any) (jvm.Object, error) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o := e.vm.newObject(e.vm.classes[className], native)
	return e.vm.newLocal(e, o), nil
}

// resolveNonNull resolves a reference that must not be null.
// vm.mu must be held.
func (e *env) resolveNonNull(r jvm.Object) (*object, error) {
	o, err := e.vm.resolve(e, r)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, jvm.NewError(jvm.KindNullPointer, "null reference")
	}
	return o, nil
}

// classOf resolves a class mirror reference. vm.mu must be held.
func (e *env) classOf(r jvm.Object) (*class, error) {
	o, err := e.resolveNonNull(r)
	if err != nil {
		return nil, err
	}
	c, ok := o.native.(*class)
	if !ok || o.class.name != ClassClass {
		return nil, jvm.NewError(jvm.KindWrongValueType, fmt.Sprintf("%s is not a class", o.class.dottedName()))
	}
	return c, nil
}

func checkArgs(sig jvm.Signature, args []jvm.Value) error {
	if len(args) != len(sig.Args) {
		return jvm.NewError(jvm.KindInvalidArgCount,
			fmt.Sprintf("expected %d arguments, got %d", len(sig.Args), len(args)))
	}
	for i, t := range sig.Args {
		if err := jvm.CheckValue(t, args[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkField(o *object, name string, t jvm.Type) error {
	declared, ok := o.class.field(name)
	if !ok || declared != t {
		return jvm.NewError(jvm.KindFieldNotFound,
			fmt.Sprintf("no field %s of type %s in %s", name, t, o.class.dottedName()))
	}
	return nil
}
