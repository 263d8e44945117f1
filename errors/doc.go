// Package errors provides the structured execution error taxonomy of the binding.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The taxonomy mirrors how failures are treated at the managed/native boundary:
//
//	jni_error          the call machinery itself failed (fatal to service logic)
//	java_exception     an exception no handler expected (a bug, reported as text)
//	illegal_argument   the managed side rejected an argument
//	service            application-defined code and message (recoverable)
//	unexpected         failure reported through a wrapper exception
//	limit_exhausted    thread attachment limit reached (deployment sizing)
//	forbidden_parameter a reserved JVM argument was supplied
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindIllegalArgument).
//		Class("java/lang/IllegalArgumentException").
//		Detail("negative amount: %d", amount).
//		Build()
//
// Or use convenience constructors:
//
//	err := errors.Service(5, "insufficient funds")
//	err := errors.LimitExhausted(16)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
