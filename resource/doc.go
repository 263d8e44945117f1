// Package resource manages native values exposed to the managed runtime
// through integer handles.
//
// The managed side cannot hold native values directly. Instead it keeps an
// int64 Handle, and every native entry point turns the handle back into the
// value through a Registry, which checks the handle is live, of the
// expected Go type, and of the expected ownership.
//
// # Ownership
//
//	JavaOwned    created by ToHandle; lives until DropHandle or AcquireOwnership
//	NativeOwned  created by NonOwned/Borrow; lives until the native frame closes it
//
// # Usage
//
//	reg := resource.NewRegistry()
//
//	h := resource.ToHandle(reg, db)              // hand to the managed side
//	db := resource.CastHandle[*storage.DB](reg, h) // inside an entry point
//	resource.DropHandle[*storage.DB](reg, h)      // managed side frees it
//
//	resource.Borrow(reg, view, func(h resource.Handle) error {
//	    return callManaged(h) // h is unregistered when this returns
//	})
//
// # Violations
//
// Protocol violations (handle 0, unknown handle, double registration, wrong
// type, wrong ownership) panic with *Violation. They indicate bugs in the
// binding or memory corruption on the managed side. Native entry points
// recover them and raise a managed exception; anywhere else they are fatal.
//
// # Observers
//
// Subscribe an Observer to receive registered/unregistered events, for
// example to log handle churn at debug level.
package resource
