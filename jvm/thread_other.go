//go:build !linux && !windows

package jvm

// ThreadIDSupported reports whether CurrentThreadID identifies OS threads.
const ThreadIDSupported = false

// CurrentThreadID returns 0: OS thread identity is not available on this
// platform.
func CurrentThreadID() int64 {
	return 0
}
