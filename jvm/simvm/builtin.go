package simvm

import (
	"fmt"
	"sync/atomic"

	"github.com/wippyai/javabinding/jvm"
)

// Bootstrap class names.
const (
	ClassObject                   = "java/lang/Object"
	ClassClass                    = "java/lang/Class"
	ClassString                   = "java/lang/String"
	ClassByteArray                = "[B"
	ClassThrowable                = "java/lang/Throwable"
	ClassException                = "java/lang/Exception"
	ClassRuntimeException         = "java/lang/RuntimeException"
	ClassError                    = "java/lang/Error"
	ClassIllegalArgumentException = "java/lang/IllegalArgumentException"
	ClassIllegalStateException    = "java/lang/IllegalStateException"
	ClassArithmeticException      = "java/lang/ArithmeticException"
	ClassNullPointerException     = "java/lang/NullPointerException"
	ClassUnsupportedOperation     = "java/lang/UnsupportedOperationException"
	ClassLinkageError             = "java/lang/LinkageError"
	ClassNoClassDefFoundError     = "java/lang/NoClassDefFoundError"
	ClassNoSuchMethodError        = "java/lang/NoSuchMethodError"
	ClassOutOfMemoryError         = "java/lang/OutOfMemoryError"
	ClassAtomicLong               = "java/util/concurrent/atomic/AtomicLong"
)

const (
	fieldDetailMessage = "detailMessage"
	fieldCause         = "cause"

	descString    jvm.Type = "Ljava/lang/String;"
	descThrowable jvm.Type = "Ljava/lang/Throwable;"
)

func bootstrapClasses() []ClassDef {
	defs := []ClassDef{
		objectClass(),
		{
			Name: ClassClass,
			Methods: map[string]Method{
				"getName()Ljava/lang/String;": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
					c, ok := native(env, this).(*class)
					if !ok {
						return nil, jvm.NewError(jvm.KindWrongValueType, "not a class mirror")
					}
					return env.NewString(c.dottedName())
				},
			},
		},
		{
			Name: ClassString,
			Methods: map[string]Method{
				"length()I": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
					s, err := env.GetString(this)
					return int32(len([]rune(s))), err
				},
				"toString()Ljava/lang/String;": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
					return this, nil
				},
			},
		},
		{Name: ClassByteArray},
		throwableClass(),
		ThrowableDef(ClassException, ClassThrowable),
		ThrowableDef(ClassRuntimeException, ClassException),
		ThrowableDef(ClassError, ClassThrowable),
		ThrowableDef(ClassIllegalArgumentException, ClassRuntimeException),
		ThrowableDef(ClassIllegalStateException, ClassRuntimeException),
		ThrowableDef(ClassArithmeticException, ClassRuntimeException),
		ThrowableDef(ClassNullPointerException, ClassRuntimeException),
		ThrowableDef(ClassUnsupportedOperation, ClassRuntimeException),
		ThrowableDef(ClassLinkageError, ClassError),
		ThrowableDef(ClassNoClassDefFoundError, ClassLinkageError),
		ThrowableDef(ClassNoSuchMethodError, ClassLinkageError),
		ThrowableDef(ClassOutOfMemoryError, ClassError),
		atomicLongClass(),
	}
	return defs
}

func objectClass() ClassDef {
	return ClassDef{
		Name: ClassObject,
		Constructors: map[string]Method{
			"()V": noop,
		},
		Methods: map[string]Method{
			"toString()Ljava/lang/String;": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
				o := self(env, this)
				return env.NewString(fmt.Sprintf("%s@%x", o.class.dottedName(), o.id))
			},
			"hashCode()I": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
				return int32(self(env, this).id), nil
			},
		},
	}
}

func throwableClass() ClassDef {
	def := ThrowableDef(ClassThrowable, ClassObject)
	def.Fields = map[string]jvm.Type{
		fieldDetailMessage: descString,
		fieldCause:         descThrowable,
	}
	def.Methods = map[string]Method{
		"getMessage()Ljava/lang/String;": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
			return env.GetField(this, fieldDetailMessage, string(descString))
		},
		"getCause()Ljava/lang/Throwable;": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
			return env.GetField(this, fieldCause, string(descThrowable))
		},
		"toString()Ljava/lang/String;": throwableToString,
	}
	return def
}

// ThrowableDef returns a class definition for an exception type with the
// four standard Throwable constructors. Callers may add fields, methods and
// constructors before passing it to DefineClass.
func ThrowableDef(name, super string) ClassDef {
	return ClassDef{
		Name:  name,
		Super: super,
		Constructors: map[string]Method{
			"()V": noop,
			"(Ljava/lang/String;)V": func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
				return nil, env.SetField(this, fieldDetailMessage, string(descString), args[0])
			},
			"(Ljava/lang/String;Ljava/lang/Throwable;)V": func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
				if err := env.SetField(this, fieldDetailMessage, string(descString), args[0]); err != nil {
					return nil, err
				}
				return nil, env.SetField(this, fieldCause, string(descThrowable), args[1])
			},
			"(Ljava/lang/Throwable;)V": InitWithCause,
		},
	}
}

// InitWithCause implements Throwable(Throwable cause): the message becomes
// cause.toString(), or null for a null cause.
func InitWithCause(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
	cause, _ := args[0].(jvm.Object)
	if err := env.SetField(this, fieldCause, string(descThrowable), cause); err != nil {
		return nil, err
	}
	if cause == jvm.Null {
		return nil, nil
	}
	msg, err := env.CallMethod(cause, "toString", "()Ljava/lang/String;")
	if err != nil {
		return nil, err
	}
	return nil, env.SetField(this, fieldDetailMessage, string(descString), msg)
}

func throwableToString(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
	name := self(env, this).class.dottedName()
	msgRef, err := env.CallMethod(this, "getMessage", "()Ljava/lang/String;")
	if err != nil {
		return nil, err
	}
	if ref, _ := msgRef.(jvm.Object); ref != jvm.Null {
		msg, err := env.GetString(ref)
		if err != nil {
			return nil, err
		}
		return env.NewString(name + ": " + msg)
	}
	return env.NewString(name)
}

func atomicLongClass() ClassDef {
	counter := func(env jvm.Env, this jvm.Object) *atomic.Int64 {
		c, _ := native(env, this).(*atomic.Int64)
		return c
	}
	return ClassDef{
		Name: ClassAtomicLong,
		Constructors: map[string]Method{
			"()V": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
				setNative(env, this, new(atomic.Int64))
				return nil, nil
			},
			"(J)V": func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
				c := new(atomic.Int64)
				c.Store(args[0].(int64))
				setNative(env, this, c)
				return nil, nil
			},
		},
		Methods: map[string]Method{
			"get()J": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
				return counter(env, this).Load(), nil
			},
			"set(J)V": func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
				counter(env, this).Store(args[0].(int64))
				return nil, nil
			},
			"incrementAndGet()J": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
				return counter(env, this).Add(1), nil
			},
			"addAndGet(J)J": func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
				return counter(env, this).Add(args[0].(int64)), nil
			},
		},
	}
}

func noop(jvm.Env, jvm.Object, []jvm.Value) (jvm.Value, error) { return nil, nil }

// self resolves this inside a bootstrap method.
func self(je jvm.Env, this jvm.Object) *object {
	e := je.(*env)
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(this)
	if err != nil {
		panic(err)
	}
	return o
}

// Native returns the Go value attached to a managed object, such as the
// content of a String or the state of a class implemented in Go.
func Native(env jvm.Env, obj jvm.Object) any {
	return native(env, obj)
}

// SetNative attaches a Go value to a managed object. Classes implemented
// in Go use it to keep their state.
func SetNative(env jvm.Env, obj jvm.Object, v any) {
	setNative(env, obj, v)
}

func native(je jvm.Env, obj jvm.Object) any {
	e := je.(*env)
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		panic(err)
	}
	return o.native
}

func setNative(je jvm.Env, obj jvm.Object, v any) {
	e := je.(*env)
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	o, err := e.resolveNonNull(obj)
	if err != nil {
		panic(err)
	}
	o.native = v
}
