package exceptions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/fakes"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
)

const expectedDescription = "EXPECTED_DESCRIPTION"

func newVM(t *testing.T) *simvm.VM {
	t.Helper()
	vm := simvm.New()
	require.NoError(t, fakes.DefineExceptions(vm))
	return vm
}

// newThrowable creates an exception of the named class with msg and an
// optional cause.
func newThrowable(env jvm.Env, className, msg string, cause jvm.Object) (jvm.Object, error) {
	cls, err := env.FindClass(className)
	if err != nil {
		return jvm.Null, err
	}
	s, err := env.NewString(msg)
	if err != nil {
		return jvm.Null, err
	}
	if cause.IsNull() {
		return env.NewObject(cls, "(Ljava/lang/String;)V", s)
	}
	return env.NewObject(cls, "(Ljava/lang/String;Ljava/lang/Throwable;)V", s, cause)
}

func TestGetAndClear(t *testing.T) {
	vm := newVM(t)
	require.NoError(t, vm.Run(func(env jvm.Env) error {
		assert.PanicsWithValue(t, "No exception thrown.", func() {
			exceptions.GetAndClear(env)
		})

		err := fakes.ThrowNamed(env, simvm.ClassArithmeticException, "x")
		assert.ErrorIs(t, err, jvm.ErrJavaException)

		exc := exceptions.GetAndClear(env)
		assert.False(t, env.ExceptionCheck())
		assert.NotEqual(t, jvm.Null, exc)
		return nil
	}))
}

func TestDescribe(t *testing.T) {
	vm := newVM(t)
	require.NoError(t, vm.Run(func(env jvm.Env) error {
		exc, err := newThrowable(env, simvm.ClassArithmeticException, expectedDescription, jvm.Null)
		assert.NoError(t, err)
		assert.Equal(t, "Java exception: java.lang.ArithmeticException; EXPECTED_DESCRIPTION",
			exceptions.Describe(env, exc))

		cls, err := env.FindClass(simvm.ClassIllegalStateException)
		assert.NoError(t, err)
		noMessage, err := env.NewObject(cls, "()V")
		assert.NoError(t, err)
		assert.Equal(t, "Java exception: java.lang.IllegalStateException; null",
			exceptions.Describe(env, noMessage))

		root, err := newThrowable(env, simvm.ClassIllegalArgumentException, "root", jvm.Null)
		assert.NoError(t, err)
		middle, err := newThrowable(env, simvm.ClassIllegalStateException, "middle", root)
		assert.NoError(t, err)
		top, err := newThrowable(env, simvm.ClassRuntimeException, "top", middle)
		assert.NoError(t, err)
		assert.Equal(t,
			"Java exception: java.lang.RuntimeException; top"+
				" (caused by: java.lang.IllegalStateException; middle)"+
				" (caused by: java.lang.IllegalArgumentException; root)",
			exceptions.Describe(env, top))

		assert.PanicsWithValue(t, "No exception thrown.", func() {
			exceptions.Describe(env, jvm.Null)
		})
		return nil
	}))
}

func TestUnwrapJNI(t *testing.T) {
	assert.Equal(t, 7, exceptions.UnwrapJNI(7, nil))
	assert.PanicsWithValue(t, "JNI error: null reference", func() {
		exceptions.UnwrapJNI(0, jvm.NewError(jvm.KindNullPointer, "null reference"))
	})
}

func TestUnwrapJNIVerbose(t *testing.T) {
	vm := newVM(t)
	require.NoError(t, vm.Run(func(env jvm.Env) error {
		assert.Equal(t, "ok", exceptions.UnwrapJNIVerbose(env, "ok", nil))

		err := fakes.ThrowNamed(env, simvm.ClassArithmeticException, "/ by zero")
		assert.PanicsWithValue(t, "Java exception: java.lang.ArithmeticException; / by zero", func() {
			exceptions.UnwrapJNIVerbose(env, 0, err)
		})
		assert.False(t, env.ExceptionCheck())

		assert.PanicsWithValue(t, "JNI error: boom", func() {
			exceptions.UnwrapJNIVerbose(env, 0, jvm.NewError(jvm.KindOther, "boom"))
		})
		return nil
	}))
}

func TestUnwrapJNIVerbose_Recursion(t *testing.T) {
	vm := newVM(t)

	// getMessage of this class throws, so describing an instance fails
	// while an exception is already being described.
	def := simvm.ThrowableDef("test/BrokenException", simvm.ClassRuntimeException)
	def.Methods = map[string]simvm.Method{
		"getMessage()Ljava/lang/String;": func(env jvm.Env, _ jvm.Object, _ []jvm.Value) (jvm.Value, error) {
			return nil, fakes.ThrowNamed(env, simvm.ClassIllegalStateException, "nested")
		},
	}
	require.NoError(t, vm.DefineClass(def))

	require.NoError(t, vm.Run(func(env jvm.Env) error {
		err := fakes.ThrowNamed(env, simvm.ClassIllegalStateException, "outer")
		// Replace the pending exception with the broken one.
		env.ExceptionClear()
		cls, ferr := env.FindClass("test/BrokenException")
		assert.NoError(t, ferr)
		broken, ferr := env.NewObject(cls, "()V")
		assert.NoError(t, ferr)
		assert.NoError(t, env.Throw(broken))

		assert.PanicsWithValue(t, "Recursive JNI error: Java exception was thrown", func() {
			exceptions.UnwrapJNIVerbose(env, 0, err)
		})

		// The guard is reset for later calls.
		env.ExceptionClear()
		err = fakes.ThrowNamed(env, simvm.ClassIllegalStateException, "again")
		assert.PanicsWithValue(t, "Java exception: java.lang.IllegalStateException; again", func() {
			exceptions.UnwrapJNIVerbose(env, 0, err)
		})
		return nil
	}))
}

func TestPanicOnException(t *testing.T) {
	vm := newVM(t)
	require.NoError(t, vm.Run(func(env jvm.Env) error {
		assert.Equal(t, int32(3), exceptions.PanicOnException(env, int32(3), nil))

		err := fakes.ThrowNamed(env, simvm.ClassIllegalArgumentException, expectedDescription)
		assert.PanicsWithValue(t,
			"Java exception: java.lang.IllegalArgumentException; EXPECTED_DESCRIPTION",
			func() { exceptions.PanicOnException(env, int32(0), err) })
		assert.False(t, env.ExceptionCheck())

		assert.PanicsWithValue(t, "JNI error: Invalid constructor return type (must be void)", func() {
			exceptions.PanicOnException(env, int32(0),
				jvm.NewError(jvm.KindInvalidCtorReturn, "Invalid constructor return type (must be void)"))
		})
		return nil
	}))
}

func TestCheckErrorOnException(t *testing.T) {
	vm := newVM(t)
	require.NoError(t, vm.Run(func(env jvm.Env) error {
		v, err := exceptions.CheckErrorOnException(env, "value", nil)
		assert.NoError(t, err)
		assert.Equal(t, "value", v)

		thrown := fakes.ThrowNamed(env, simvm.ClassArithmeticException, expectedDescription)
		_, err = exceptions.CheckErrorOnException(env, "", thrown)
		var e *errors.Error
		if assert.ErrorAs(t, err, &e) {
			assert.Equal(t, errors.KindJavaException, e.Kind)
			assert.Equal(t, "java.lang.ArithmeticException", e.Class)
			assert.Equal(t, "Java exception: java.lang.ArithmeticException; EXPECTED_DESCRIPTION", e.Detail)
		}
		assert.False(t, env.ExceptionCheck())

		thrown = fakes.ThrowNamed(env, simvm.ClassOutOfMemoryError, "heap")
		assert.PanicsWithValue(t, "Java exception: java.lang.OutOfMemoryError; heap", func() {
			_, _ = exceptions.CheckErrorOnException(env, "", thrown)
		})
		assert.False(t, env.ExceptionCheck())

		assert.Panics(t, func() {
			_, _ = exceptions.CheckErrorOnException(env, "", jvm.NewError(jvm.KindOther, "transport"))
		})
		return nil
	}))
}

func TestIsPending(t *testing.T) {
	assert.True(t, exceptions.IsPending(jvm.ErrJavaException))
	assert.True(t, exceptions.IsPending(jvm.NewError(jvm.KindExceptionPending, "pending")))
	assert.False(t, exceptions.IsPending(jvm.ErrThreadDetached))
	assert.False(t, exceptions.IsPending(nil))
}
