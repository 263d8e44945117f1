package exceptions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
)

// Managed classes the translation layer refers to.
const (
	ClassRuntimeException             = "java/lang/RuntimeException"
	ClassError                        = "java/lang/Error"
	ClassIllegalArgumentException     = "java/lang/IllegalArgumentException"
	ClassExecutionException           = "io/wippy/binding/core/transaction/ExecutionException"
	ClassUnexpectedExecutionException = "io/wippy/binding/core/runtime/UnexpectedExecutionException"
)

const (
	sigGetName    = "()Ljava/lang/String;"
	sigGetMessage = "()Ljava/lang/String;"
	sigGetCause   = "()Ljava/lang/Throwable;"
)

// maxCauseDepth bounds the cause chain Describe walks.
const maxCauseDepth = 16

// pendingException matches both ways an Env reports a thrown exception: a
// call that threw, and a call refused because one was already pending.
var pendingException = &jvm.Error{Kind: jvm.KindExceptionPending}

// IsPending reports whether err means a managed exception is pending.
func IsPending(err error) bool {
	return errors.Is(err, jvm.ErrJavaException) || errors.Is(err, pendingException)
}

// GetAndClear returns the pending exception as a local reference and
// clears it. It panics when nothing is pending.
func GetAndClear(env jvm.Env) jvm.Object {
	exc := env.ExceptionOccurred()
	if exc.IsNull() {
		panic("No exception thrown.")
	}
	env.ExceptionClear()
	return exc
}

// Describe formats exc as "Java exception: <class>; <message>", followed
// by " (caused by: <class>; <message>)" for every cause. No exception may
// be pending when it is called.
func Describe(env jvm.Env, exc jvm.Object) string {
	if exc.IsNull() {
		panic("No exception thrown.")
	}

	var b strings.Builder
	b.WriteString("Java exception: ")
	s, err := summary(env, exc)
	b.WriteString(UnwrapJNIVerbose(env, s, err))

	current := exc
	for depth := 0; depth < maxCauseDepth; depth++ {
		v, err := env.CallMethod(current, "getCause", sigGetCause)
		cause, _ := UnwrapJNIVerbose(env, v, err).(jvm.Object)
		if cause.IsNull() || env.IsSameObject(cause, current) {
			env.DeleteLocalRef(cause)
			break
		}
		s, err := summary(env, cause)
		b.WriteString(" (caused by: ")
		b.WriteString(UnwrapJNIVerbose(env, s, err))
		b.WriteByte(')')

		if current != exc {
			env.DeleteLocalRef(current)
		}
		current = cause
	}
	if current != exc {
		env.DeleteLocalRef(current)
	}
	return b.String()
}

func summary(env jvm.Env, exc jvm.Object) (string, error) {
	name, err := ClassName(env, exc)
	if err != nil {
		return "", err
	}
	msg, ok, err := Message(env, exc)
	if err != nil {
		return "", err
	}
	if !ok {
		msg = "null"
	}
	return name + "; " + msg, nil
}

// ClassName returns the dotted class name of obj, as Class.getName
// reports it.
func ClassName(env jvm.Env, obj jvm.Object) (string, error) {
	cls, err := env.GetObjectClass(obj)
	if err != nil {
		return "", err
	}
	defer env.DeleteLocalRef(cls)

	v, err := env.CallMethod(cls, "getName", sigGetName)
	if err != nil {
		return "", err
	}
	return stringResult(env, v)
}

// Message returns the result of exc.getMessage(). ok is false when the
// message is null.
func Message(env jvm.Env, exc jvm.Object) (msg string, ok bool, err error) {
	v, err := env.CallMethod(exc, "getMessage", sigGetMessage)
	if err != nil {
		return "", false, err
	}
	if ref, _ := v.(jvm.Object); ref.IsNull() {
		return "", false, nil
	}
	msg, err = stringResult(env, v)
	return msg, err == nil, err
}

func stringResult(env jvm.Env, v jvm.Value) (string, error) {
	ref, _ := v.(jvm.Object)
	if ref.IsNull() {
		return "", jvm.NewError(jvm.KindNullPointer, "unexpected null string")
	}
	defer env.DeleteLocalRef(ref)
	return env.GetString(ref)
}

// UnwrapJNI returns v, panicking with "JNI error: ..." when err is set.
func UnwrapJNI[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("JNI error: %v", err))
	}
	return v
}

// inRecursion marks envs that are describing an exception inside
// UnwrapJNIVerbose.
var inRecursion sync.Map

// UnwrapJNIVerbose is UnwrapJNI that panics with the description of a
// pending exception instead of a bare transport error. Describing calls
// back into the Env; an error while doing so panics with "Recursive JNI
// error: ..." rather than recursing again.
func UnwrapJNIVerbose[T any](env jvm.Env, v T, err error) T {
	if err == nil {
		return v
	}
	if _, loaded := inRecursion.LoadAndDelete(env); loaded {
		panic(fmt.Sprintf("Recursive JNI error: %v", err))
	}
	if !IsPending(err) {
		return UnwrapJNI(v, err)
	}

	inRecursion.Store(env, struct{}{})
	defer inRecursion.Delete(env)
	exc := GetAndClear(env)
	panic(Describe(env, exc))
}

// PanicOnException returns v when err is nil. Any pending exception is
// cleared and becomes a panic with its description; other errors panic as
// in UnwrapJNI.
func PanicOnException[T any](env jvm.Env, v T, err error) T {
	if err == nil {
		return v
	}
	if IsPending(err) {
		exc := GetAndClear(env)
		panic(Describe(env, exc))
	}
	return UnwrapJNI(v, err)
}

// CheckErrorOnException returns v when err is nil. A pending exception is
// cleared; if it is a java.lang.Error it becomes a panic, otherwise a
// java_exception error carrying its description. Other errors panic as in
// UnwrapJNI.
func CheckErrorOnException[T any](env jvm.Env, v T, err error) (T, error) {
	if err == nil {
		return v, nil
	}
	if !IsPending(err) {
		return UnwrapJNI(v, err), nil
	}

	exc := GetAndClear(env)
	defer env.DeleteLocalRef(exc)
	desc := Describe(env, exc)

	errCls, ferr := env.FindClass(ClassError)
	errCls = UnwrapJNIVerbose(env, errCls, ferr)
	defer env.DeleteLocalRef(errCls)
	if env.IsInstanceOf(exc, errCls) {
		panic(desc)
	}

	name, nerr := ClassName(env, exc)
	return v, errors.JavaException(UnwrapJNIVerbose(env, name, nerr), desc)
}
