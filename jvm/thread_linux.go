//go:build linux

package jvm

import "golang.org/x/sys/unix"

// ThreadIDSupported reports whether CurrentThreadID identifies OS threads.
const ThreadIDSupported = true

// CurrentThreadID returns the identifier of the calling OS thread. The
// caller must have locked its goroutine to the thread for the value to stay
// meaningful.
func CurrentThreadID() int64 {
	return int64(unix.Gettid())
}
