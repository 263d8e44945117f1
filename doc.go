// Package javabinding binds a key-value storage engine and a transaction
// pipeline to a managed runtime reached through a JNI-style interface.
//
// Native objects are exposed to managed code as opaque 64-bit handles.
// Every call that crosses the boundary goes through an executor that
// attaches the calling OS thread, and every managed exception coming back
// is classified into a structured Go error.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	javabinding/
//	├── resource/        Handle registry with ownership and type checks
//	├── errors/          Structured error types for debugging
//	├── jvm/             Interface to the managed runtime and method signatures
//	│   └── simvm/       In-process managed runtime used by tests and the CLI
//	├── executor/        Thread attachment strategies (main, leaking, dumb, pool)
//	├── exceptions/      Panic and exception translation at the boundary
//	├── storage/         goleveldb database, snapshots, forks, patches and indexes
//	├── bindings/        Native entry points, runtime proxy and node
//	├── config/          TOML configuration and managed runtime arguments
//	├── fakes/           QA service runtime and binding exception classes
//	└── cmd/ejb/         Command line: run, check-config, console
//
// # Quick Start
//
// Start a node with the QA service runtime:
//
//	vm := simvm.New()
//	if err := fakes.DefineQaRuntime(vm); err != nil {
//	    log.Fatal(err)
//	}
//	b := bindings.NewBridge(executor.NewMain(vm))
//
//	var proxy *bindings.RuntimeProxy
//	err := vm.Run(func(env jvm.Env) error {
//	    obj, _, err := fakes.NewQaRuntime(env, b)
//	    if err != nil {
//	        return err
//	    }
//	    defer env.DeleteLocalRef(obj)
//	    proxy = bindings.NewRuntimeProxy(b, env, obj)
//	    return nil
//	})
//
//	db, _ := storage.NewTemporaryDB()
//	node := bindings.NewNode(b, db, proxy)
//	if err := node.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Stop()
//
//	err = node.SubmitTransaction(1, fakes.TxPutValue, []byte("hello"))
//
// # Handles
//
// A handle is either owned by managed code, which frees it through a
// native free method, or borrowed for the duration of one call. Borrowed
// handles are unregistered when the call returns, so a handle retained by
// managed code past its call fails validation instead of touching freed
// memory.
//
// # Thread Safety
//
// Bridge, Node and RuntimeProxy are safe for concurrent use. Node
// serializes transactions; each one is executed on a fork and committed
// as its own block.
package javabinding
