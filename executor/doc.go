// Package executor attaches OS threads to a managed runtime.
//
// Every call into managed code must happen on a thread that the VM knows
// about. An Executor locks the calling goroutine to its OS thread, makes
// sure that thread is attached, and runs the call. WithAttached also wraps
// the call in a local reference frame so references created during the
// call are released afterwards.
//
// # Strategies
//
//	Dumb     attach before the call, detach after; unbounded, slow
//	Leaking  attach on first use, never detach; bounded by a limit
//	Main     Leaking with limit max(16, 2*NumCPU)
//	Pool     fixed attached worker threads; calls are handed off to them
//
// Exceeding the Leaking limit panics with a limit_exhausted error. The
// limit protects the VM from unbounded thread growth; hitting it means
// the deployment runs more native threads than it was sized for.
package executor
