package exceptions

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/executor"
	"github.com/wippyai/javabinding/jvm"
)

// Call runs fn attached through ex and classifies its failure.
//
// A pending exception is fetched and cleared, then matched against
// handlers in order; the first handler whose class it is an instance of
// produces the error, and HandleDefault applies when none matches. Any
// other error from fn is a jni_error. If ex itself fails the result is a
// jni_error "Unexpected JNI error: ...".
func Call[R any](ex executor.Executor, handlers []Handler, fn func(jvm.Env) (R, error)) (R, error) {
	var (
		zero    R
		handled *errors.Error
	)

	result, err := executor.WithAttached(ex, func(env jvm.Env) (R, error) {
		v, err := fn(env)
		if err != nil {
			handled = handle(env, err, handlers)
			return zero, nil
		}
		return v, nil
	})

	if handled != nil {
		return zero, handled
	}
	if err != nil {
		return zero, errors.JNI(fmt.Sprintf("Unexpected JNI error: %v", err), err)
	}
	return result, nil
}

// CallDefault is Call with DefaultHandlers.
func CallDefault[R any](ex executor.Executor, fn func(jvm.Env) (R, error)) (R, error) {
	return Call(ex, DefaultHandlers, fn)
}

// CallTransaction is Call with TransactionHandlers.
func CallTransaction[R any](ex executor.Executor, fn func(jvm.Env) (R, error)) (R, error) {
	return Call(ex, TransactionHandlers, fn)
}

func handle(env jvm.Env, err error, handlers []Handler) *errors.Error {
	if !IsPending(err) {
		return errors.JNI(err.Error(), err)
	}

	exc := GetAndClear(env)
	defer env.DeleteLocalRef(exc)

	for _, h := range handlers {
		if matches(env, exc, h.Class) {
			return h.Handle(env, exc)
		}
	}
	return HandleDefault(env, exc)
}

// matches reports whether exc is an instance of the named class. A class
// that cannot be loaded matches nothing.
func matches(env jvm.Env, exc jvm.Object, className string) bool {
	cls, err := env.FindClass(className)
	if err != nil {
		if env.ExceptionCheck() {
			env.ExceptionClear()
		}
		Logger().Error("exception handler class not found",
			zap.String("class", className), zap.Error(err))
		return false
	}
	defer env.DeleteLocalRef(cls)
	return env.IsInstanceOf(exc, cls)
}
