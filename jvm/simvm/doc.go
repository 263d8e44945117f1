// Package simvm is an in-process managed runtime implementing the jvm
// interfaces.
//
// It models the parts of a JVM the binding interacts with: per-OS-thread
// attachment, local reference frames, global references, classes with
// single inheritance, constructors and methods looked up by signature,
// fields, strings, byte arrays and exceptions. Managed code is written in
// Go as Method functions registered through DefineClass.
//
// The runtime is strict where a real JVM would crash or misbehave: an Env
// used from a foreign thread panics, local references are rejected on
// threads that do not own them, and most calls fail while an exception is
// pending. Stats exposes reference and attachment counters so tests can
// assert the binding does not leak.
//
// Thread identity comes from jvm.CurrentThreadID. Where
// jvm.ThreadIDSupported is false every thread looks the same to the
// runtime, so the foreign thread checks do not apply there.
//
//	vm := simvm.New()
//	err := vm.Run(func(env jvm.Env) error {
//	    cls, err := env.FindClass("java/lang/IllegalArgumentException")
//	    if err != nil {
//	        return err
//	    }
//	    return env.ThrowNew(cls, "bad argument")
//	})
package simvm
