//go:build !unix

package thread

// raiseThreadPriority is a no-op on platforms without a POSIX priority API.
func raiseThreadPriority() {}
