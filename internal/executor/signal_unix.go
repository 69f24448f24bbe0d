//go:build unix

package executor

import (
	"syscall"
)

// sendTermSignal asks the decompiler to stop; it is killed once
// forceKillDelay has passed.
func sendTermSignal(proc processHandle) error {
	if proc == nil {
		return nil
	}
	return proc.Signal(syscall.SIGTERM)
}
