package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAttach  Phase = "attach"  // thread attachment
	PhaseCall    Phase = "call"    // call into managed code
	PhaseHandle  Phase = "handle"  // handle registry
	PhaseView    Phase = "view"    // storage view access
	PhaseRuntime Phase = "runtime" // service runtime operations
	PhaseConfig  Phase = "config"  // configuration and JVM arguments
	PhaseStorage Phase = "storage" // database operations
)

// Kind categorizes the error
type Kind string

const (
	KindJNI                Kind = "jni_error"
	KindJavaException      Kind = "java_exception"
	KindIllegalArgument    Kind = "illegal_argument"
	KindService            Kind = "service"
	KindUnexpected         Kind = "unexpected"
	KindLimitExhausted     Kind = "limit_exhausted"
	KindForbiddenParameter Kind = "forbidden_parameter"
	KindInvalidInput       Kind = "invalid_input"
	KindIncorrectArtifact  Kind = "incorrect_artifact"
	KindNotFound           Kind = "not_found"
	KindInvalidData        Kind = "invalid_data"
	KindStorage            Kind = "storage_error"
)

// Error is the structured error type used throughout the binding.
//
// Errors of KindService carry an application-defined Code chosen by the
// managed service; they are the only recoverable outcome of a callback.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Class  string
	Detail string
	Code   uint8
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Kind == KindService {
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(int(e.Code)))
		b.WriteByte(')')
	}

	if e.Class != "" {
		b.WriteString(" in ")
		b.WriteString(e.Class)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Phase in target matches any phase; service errors also
// compare codes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	if e.Kind == KindService && e.Code != t.Code {
		return false
	}
	return true
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Class sets the managed class the error originates from
func (b *Builder) Class(name string) *Builder {
	b.err.Class = name
	return b
}

// Code sets the application-defined error code
func (b *Builder) Code(code uint8) *Builder {
	b.err.Code = code
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the execution error taxonomy

// JNI creates a transport-level error: the cross-boundary machinery failed
// for a reason other than a thrown exception.
func JNI(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindJNI,
		Detail: detail,
		Cause:  cause,
	}
}

// JavaException creates an error for an exception no handler expected.
func JavaException(class, description string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindJavaException,
		Class:  class,
		Detail: description,
	}
}

// IllegalArgument creates an error for a rejected argument.
func IllegalArgument(class, message string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindIllegalArgument,
		Class:  class,
		Detail: message,
	}
}

// Service creates a recoverable service error with an application code.
func Service(code uint8, message string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindService,
		Code:   code,
		Detail: message,
	}
}

// Unexpected creates an error for a failure reported through a wrapper
// exception; Detail holds the wrapped cause's message.
func Unexpected(class, message string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUnexpected,
		Class:  class,
		Detail: message,
	}
}

// LimitExhausted creates a thread attachment limit error
func LimitExhausted(limit int) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindLimitExhausted,
		Detail: fmt.Sprintf("The limit on thread attachment is exhausted (limit is %d)", limit),
		Value:  limit,
	}
}

// ForbiddenParameter creates an error for a reserved JVM parameter
func ForbiddenParameter(param string) *Error {
	return &Error{
		Phase: PhaseConfig,
		Kind:  KindForbiddenParameter,
		Detail: fmt.Sprintf("Trying to specify JVM parameter [%s] that is set by EJB internally. "+
			"Use EJB parameters instead.", param),
		Value: param,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// IncorrectArtifact creates an error for an artifact addressed to another runtime
func IncorrectArtifact(runtimeID uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindIncorrectArtifact,
		Detail: fmt.Sprintf("artifact belongs to runtime %d", runtimeID),
		Value:  runtimeID,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidData creates an error for stored data that cannot be decoded
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Storage creates a database error
func Storage(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseStorage,
		Kind:   KindStorage,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
