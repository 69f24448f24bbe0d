package logger

import "sync/atomic"

// The active logger is process-wide state owned by the CLI glue. Library
// components receive their *Logger explicitly.
var active atomic.Pointer[Logger]

func SetLogger(l *Logger) { active.Store(l) }

func ActiveLogger() *Logger { return active.Load() }

// CloseLogger detaches and closes the active logger.
func CloseLogger() error {
	l := active.Swap(nil)
	if l == nil {
		return nil
	}
	return l.Close()
}

func LogDebug(msg string) { active.Load().Debug(msg) }
func LogInfo(msg string)  { active.Load().Info(msg) }
func LogWarn(msg string)  { active.Load().Warn(msg) }
func LogError(msg string) { active.Load().Error(msg) }
