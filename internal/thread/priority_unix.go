//go:build unix

package thread

import "golang.org/x/sys/unix"

// raiseThreadPriority nudges the calling OS thread's scheduling priority so
// that GPU submission work is less likely to be preempted by background
// goroutines sharing the same core. Best-effort: a permission failure (no
// CAP_SYS_NICE) is silently ignored, matching this package's "never panic,
// never fail the caller over a non-essential tuning step" stance.
func raiseThreadPriority() {
	_ = unix.Setpriority(unix.PRIO_PROCESS, 0, -5)
}
