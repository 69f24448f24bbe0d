package app

import (
	"time"

	backend "renpy-unapk/internal/backend"
	executor "renpy-unapk/internal/executor"
)

type Backend = backend.Backend

// newDecompilerFn builds the per-file decompile function for a run. Tests
// replace it to avoid spawning processes.
var newDecompilerFn = defaultNewDecompiler

func defaultNewDecompiler(log *Logger, name, command string, timeout time.Duration) (executor.DecompileFunc, error) {
	d, err := executor.NewProcessDecompiler(log, name, command, timeout)
	if err != nil {
		return nil, err
	}
	log.Info("Selected decompiler: " + d.Backend().Name() + " (" + d.Command() + ")")
	return d.Decompile, nil
}
