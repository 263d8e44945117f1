// Package bindings implements the native side of the managed service
// runtime: the entry points the managed code calls, and the proxy through
// which native code calls the managed runtime adapter.
//
// # Entry points
//
// Every entry point is a Bridge method taking the calling thread's
// jvm.Env. Resources cross the boundary as int64 handles issued by the
// bridge registry. A failing entry point never panics into the managed
// runtime: it leaves a java.lang.RuntimeException pending and returns a
// sentinel (0, false or null).
//
//	db := bridge.TemporaryDBNativeCreate(env)
//	fork := bridge.DatabaseNativeCreateFork(env, db)
//	entry := bridge.EntryIndexProxyNativeCreate(env, name, fork)
//	bridge.EntryIndexProxyNativeSet(env, entry, value)
//	bridge.EntryIndexProxyNativeFree(env, entry)
//	bridge.DatabaseNativeMerge(env, db, fork)
//
// Handles returned by create methods are owned by the managed side and
// must be freed with the matching Free method. Merging consumes the fork
// handle.
//
// # Runtime proxy
//
// RuntimeProxy calls the adapter through the bridge executor. Transaction
// execution exposes the fork as a borrowed view handle for the duration of
// the call and classifies exceptions with the transaction handlers: an
// ExecutionException becomes a service error with its code. Node ties a
// database and a runtime together and commits one block per transaction.
package bindings
