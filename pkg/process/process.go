// Package process inspects other processes by PID.
package process

import (
	stderrors "errors"

	"golang.org/x/sys/unix"
)

// IsProcessAlive reports whether pid names a live process. A process owned
// by another user still counts as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// signal 0 checks existence without delivering anything
	err := unix.Kill(pid, 0)
	return err == nil || stderrors.Is(err, unix.EPERM)
}
