// Package jvm defines the JNI-shaped interface the binding uses to talk to
// a managed runtime.
//
// The binding never depends on a concrete runtime: executors attach
// threads through VM, and native entry points and callbacks work through
// Env. Package simvm provides an in-process implementation.
//
// # Errors
//
// Env methods return *Error for failures of the call machinery. The
// special kind KindJavaException (ErrJavaException) means the call itself
// worked but managed code threw; the exception is now pending on the Env
// and must be fetched with ExceptionOccurred and cleared with
// ExceptionClear before any further managed call.
//
// # Signatures
//
// Methods and fields are addressed by name and descriptor, as in JNI:
//
//	env.CallMethod(obj, "executeTransaction", "(IIJ[B)V", svc, tx, view, args)
//	env.NewObject(cls, "(Ljava/lang/String;)V", msg)
//
// Argument and result values follow the mapping documented on Value.
package jvm
