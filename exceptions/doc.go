// Package exceptions translates between managed exceptions and native
// errors at the call boundary.
//
// Calls from native code into managed callbacks go through Call and its
// presets. Whatever happens on the managed side comes back as one of:
//
//	jni_error        the call machinery failed; not caused by a throw
//	java_exception   a throw no handler expected; a bug, not an outcome
//	illegal_argument the callback rejected its arguments
//	service          ExecutionException: application code and message
//	unexpected       UnexpectedExecutionException: the wrapped cause
//
// Only service errors are an ordinary outcome. Call sites that do not need
// handler dispatch use PanicOnException, which treats any throw as fatal,
// or CheckErrorOnException, which is fatal only for java.lang.Error.
//
// In the other direction, native entry points called by managed code wrap
// their body in Catch. A returned error or a panic becomes a thrown
// java.lang.RuntimeException and the entry point returns a sentinel, so a
// Go panic never crosses into managed code.
package exceptions
