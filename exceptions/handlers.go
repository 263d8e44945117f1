package exceptions

import (
	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/jvm"
)

// Handler converts a caught exception that is an instance of Class into an
// error. Handle runs with no exception pending; it may call back into the
// Env and panics if that fails.
type Handler struct {
	Class  string
	Handle func(env jvm.Env, exc jvm.Object) *errors.Error
}

// DefaultHandlers is used for calls that do not run service logic, such as
// artifact deployment.
var DefaultHandlers = []Handler{
	{Class: ClassIllegalArgumentException, Handle: HandleIllegalArgument},
}

// TransactionHandlers is used for calls that run service logic supplied by
// the user, such as transaction execution.
var TransactionHandlers = []Handler{
	{Class: ClassExecutionException, Handle: HandleExecution},
	{Class: ClassUnexpectedExecutionException, Handle: HandleUnexpected},
	{Class: ClassIllegalArgumentException, Handle: HandleIllegalArgument},
}

// HandleDefault applies to exceptions no handler matched.
func HandleDefault(env jvm.Env, exc jvm.Object) *errors.Error {
	if exc.IsNull() {
		panic("No exception thrown.")
	}
	desc := Describe(env, exc)
	name, err := ClassName(env, exc)
	return errors.JavaException(UnwrapJNI(name, err), desc)
}

// HandleIllegalArgument reports the exception message as an
// illegal_argument error.
func HandleIllegalArgument(env jvm.Env, exc jvm.Object) *errors.Error {
	name, err := ClassName(env, exc)
	name = UnwrapJNI(name, err)
	msg, _, err := Message(env, exc)
	return errors.IllegalArgument(name, UnwrapJNI(msg, err))
}

// HandleExecution turns ExecutionException into a service error with the
// code from getErrorCode() and the exception message, "" when null.
func HandleExecution(env jvm.Env, exc jvm.Object) *errors.Error {
	if exc.IsNull() {
		panic("No exception thrown.")
	}
	v, err := env.CallMethod(exc, "getErrorCode", "()B")
	code, _ := UnwrapJNI(v, err).(int8)
	msg, _, err := Message(env, exc)
	return errors.Service(uint8(code), UnwrapJNI(msg, err))
}

// HandleUnexpected unwraps UnexpectedExecutionException: the error carries
// the class and message of its cause. Without a cause the wrapper itself is
// reported.
func HandleUnexpected(env jvm.Env, exc jvm.Object) *errors.Error {
	v, err := env.CallMethod(exc, "getCause", sigGetCause)
	cause, _ := UnwrapJNI(v, err).(jvm.Object)
	if cause.IsNull() {
		cause = exc
	} else {
		defer env.DeleteLocalRef(cause)
	}

	name, err := ClassName(env, cause)
	name = UnwrapJNI(name, err)
	msg, _, err := Message(env, cause)
	return errors.Unexpected(name, UnwrapJNI(msg, err))
}
