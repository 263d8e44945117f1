package jvm

// ErrorKind classifies transport-level failures.
type ErrorKind string

const (
	KindJavaException     ErrorKind = "java_exception"
	KindThreadDetached    ErrorKind = "thread_detached"
	KindInvalidCtorReturn ErrorKind = "invalid_ctor_return"
	KindWrongValueType    ErrorKind = "wrong_value_type"
	KindInvalidArgCount   ErrorKind = "invalid_arg_count"
	KindNullPointer       ErrorKind = "null_pointer"
	KindInvalidReference  ErrorKind = "invalid_reference"
	KindInvalidSignature  ErrorKind = "invalid_signature"
	KindFieldNotFound     ErrorKind = "field_not_found"
	KindExceptionPending  ErrorKind = "exception_pending"
	KindFrameUnderflow    ErrorKind = "frame_underflow"
	KindOther             ErrorKind = "other"
)

// Error is a failure of the call machinery itself, as opposed to an
// exception thrown by managed code. KindJavaException is the exception:
// it signals that a managed exception is now pending on the Env.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return e.Detail
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	// ErrJavaException reports that a managed exception is pending.
	ErrJavaException = &Error{Kind: KindJavaException, Detail: "Java exception was thrown"}

	// ErrThreadDetached reports that the calling thread is not attached.
	ErrThreadDetached = &Error{Kind: KindThreadDetached, Detail: "Current thread is not attached to the java VM"}
)

// NewError creates a transport error.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}
