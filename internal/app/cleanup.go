package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	config "renpy-unapk/internal/config"
)

// scheduleStartupCleanup removes orphaned logs in the background and returns
// a func that waits for it. UNAPK_SKIP_LOG_CLEANUP=1 disables it.
func scheduleStartupCleanup() (wait func()) {
	if config.ParseBoolFlag(os.Getenv(config.EnvPrefix+"_SKIP_LOG_CLEANUP"), false) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, err := cleanupOldLogsFn()
		if err != nil {
			logWarn(fmt.Sprintf("Log cleanup: %v", err))
		}
		if stats.Deleted > 0 {
			logInfo(fmt.Sprintf("Removed %d stale log files", stats.Deleted))
		}
	}()
	return func() { <-done }
}

func runCleanupMode(out io.Writer) int {
	stats, err := cleanupOldLogsFn()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "Cleanup completed")
	fmt.Fprintf(out, "Files scanned: %d\n", stats.Scanned)
	fmt.Fprintf(out, "Files deleted: %d\n", stats.Deleted)
	if len(stats.DeletedFiles) > 0 {
		fmt.Fprintln(out, "  "+strings.Join(stats.DeletedFiles, "\n  "))
	}
	fmt.Fprintf(out, "Files kept: %d\n", stats.Kept)
	if len(stats.KeptFiles) > 0 {
		fmt.Fprintln(out, "  "+strings.Join(stats.KeptFiles, "\n  "))
	}
	if stats.Errors > 0 {
		fmt.Fprintf(out, "Deletion errors: %d\n", stats.Errors)
	}
	return 0
}
