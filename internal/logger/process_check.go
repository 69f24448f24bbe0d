package logger

import (
	"errors"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

func toPID32(pid int) (int32, bool) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, false
	}
	return int32(pid), true
}

// isProcessRunning reports whether pid looks alive. Inspection failures other
// than "not running" count as alive so a live process never loses its log.
func isProcessRunning(pid int) bool {
	pid32, ok := toPID32(pid)
	if !ok {
		return false
	}
	exists, err := process.PidExists(pid32)
	switch {
	case err == nil:
		return exists
	case errors.Is(err, process.ErrorProcessNotRunning):
		return false
	default:
		return true
	}
}

// getProcessStartTime returns the zero time when the start time is unknown.
func getProcessStartTime(pid int) time.Time {
	pid32, ok := toPID32(pid)
	if !ok {
		return time.Time{}
	}
	proc, err := process.NewProcess(pid32)
	if err != nil {
		return time.Time{}
	}
	ms, err := proc.CreateTime()
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
