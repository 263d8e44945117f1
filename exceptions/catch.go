package exceptions

import (
	"go.uber.org/zap"

	"github.com/wippyai/javabinding/jvm"
)

// Catch runs the body of a native entry point. On success it returns fn's
// value. If fn returns an error, or panics, errVal is returned instead and
// a java.lang.RuntimeException is left pending for the managed caller. An
// error returned while an exception is already pending keeps that
// exception; a panic replaces it.
func Catch[T any](env jvm.Env, errVal T, fn func() (T, error)) (result T) {
	defer func() {
		if r := recover(); r != nil {
			desc := DescribePanic(r)
			Logger().Error("panic in native entry point", zap.String("panic", desc))
			if env.ExceptionCheck() {
				env.ExceptionClear()
			}
			Throw(env, desc)
			result = errVal
		}
	}()

	v, err := fn()
	if err != nil {
		if !env.ExceptionCheck() {
			Throw(env, err.Error())
		}
		return errVal
	}
	return v
}

// CatchDefault is Catch returning the zero value of T on failure.
func CatchDefault[T any](env jvm.Env, fn func() (T, error)) T {
	var zero T
	return Catch(env, zero, fn)
}

// Throw leaves a java.lang.RuntimeException with description pending. It
// cannot report failure to its caller, so failures are logged.
func Throw(env jvm.Env, description string) {
	cls, err := env.FindClass(ClassRuntimeException)
	if err != nil {
		Logger().Error("Unable to find 'RuntimeException' class", zap.Error(err))
		return
	}
	defer env.DeleteLocalRef(cls)

	if err := env.ThrowNew(cls, description); err != nil {
		Logger().Error("Unable to throw 'RuntimeException'", zap.Error(err))
	}
}

// DescribePanic returns a description of a recovered panic value.
func DescribePanic(r any) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return "Unknown error occurred"
	}
}
