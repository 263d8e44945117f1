package fakes

import (
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/jvm"
	"github.com/wippyai/javabinding/jvm/simvm"
)

const (
	fieldErrorCode     = "errorCode"
	fieldDetailMessage = "detailMessage"

	descString jvm.Type = "Ljava/lang/String;"
)

// ExecutionExceptionCtor is the signature of the ExecutionException
// constructor taking an error code and a message.
const ExecutionExceptionCtor = "(BLjava/lang/String;)V"

// ExceptionClasses returns the binding exception classes:
// ExecutionException, carrying an application error code, and
// UnexpectedExecutionException, wrapping the cause of a failed call.
func ExceptionClasses() []simvm.ClassDef {
	execution := simvm.ThrowableDef(exceptions.ClassExecutionException, simvm.ClassException)
	execution.Fields = map[string]jvm.Type{fieldErrorCode: jvm.Byte}
	execution.Constructors[ExecutionExceptionCtor] = func(env jvm.Env, this jvm.Object, args []jvm.Value) (jvm.Value, error) {
		if err := env.SetField(this, fieldErrorCode, string(jvm.Byte), args[0]); err != nil {
			return nil, err
		}
		return nil, env.SetField(this, fieldDetailMessage, string(descString), args[1])
	}
	execution.Methods = map[string]simvm.Method{
		"getErrorCode()B": func(env jvm.Env, this jvm.Object, _ []jvm.Value) (jvm.Value, error) {
			return env.GetField(this, fieldErrorCode, string(jvm.Byte))
		},
	}

	unexpected := simvm.ThrowableDef(exceptions.ClassUnexpectedExecutionException, simvm.ClassRuntimeException)

	return []simvm.ClassDef{execution, unexpected}
}

// DefineExceptions defines ExceptionClasses in vm.
func DefineExceptions(vm *simvm.VM) error {
	for _, def := range ExceptionClasses() {
		if err := vm.DefineClass(def); err != nil {
			return err
		}
	}
	return nil
}

// NewExecutionException creates an ExecutionException with the given code
// and message as a local reference.
func NewExecutionException(env jvm.Env, code uint8, msg string) (jvm.Object, error) {
	cls, err := env.FindClass(exceptions.ClassExecutionException)
	if err != nil {
		return jvm.Null, err
	}
	defer env.DeleteLocalRef(cls)

	s, err := env.NewString(msg)
	if err != nil {
		return jvm.Null, err
	}
	defer env.DeleteLocalRef(s)
	return env.NewObject(cls, ExecutionExceptionCtor, int8(code), s)
}

// ThrowNamed throws a new exception of the named class with msg and
// returns the resulting pending-exception error, the way a managed method
// that throws reports back to its caller.
func ThrowNamed(env jvm.Env, className, msg string) error {
	cls, err := env.FindClass(className)
	if err != nil {
		return err
	}
	defer env.DeleteLocalRef(cls)
	if err := env.ThrowNew(cls, msg); err != nil {
		return err
	}
	return jvm.ErrJavaException
}
