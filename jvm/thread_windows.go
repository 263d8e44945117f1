//go:build windows

package jvm

import "golang.org/x/sys/windows"

// ThreadIDSupported reports whether CurrentThreadID identifies OS threads.
const ThreadIDSupported = true

// CurrentThreadID returns the identifier of the calling OS thread.
func CurrentThreadID() int64 {
	return int64(windows.GetCurrentThreadId())
}
