//go:build windows

package executor

func sendTermSignal(proc processHandle) error {
	if proc == nil {
		return nil
	}
	return proc.Kill()
}
