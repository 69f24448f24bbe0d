package backend

import (
	"strings"

	config "renpy-unapk/internal/config"
)

// UnrpycBackend runs the unrpyc command line decompiler once per file.
type UnrpycBackend struct{}

func (UnrpycBackend) Name() string       { return "unrpyc" }
func (UnrpycBackend) Command() string    { return "unrpyc" }
func (UnrpycBackend) Protocol() Protocol { return ProtocolText }
func (UnrpycBackend) Env(config.DecompileOptions) map[string]string {
	return map[string]string{"PYTHONIOENCODING": "utf-8"}
}

func (UnrpycBackend) BuildArgs(opts config.DecompileOptions, file string) []string {
	args := optionFlags(opts)
	if tf := strings.TrimSpace(opts.TranslationFile); tf != "" {
		args = append(args, "-t", tf)
	}
	if opts.TranslationMode() {
		logWarnFn("unrpyc writes translations itself; per-file translation output is not collected")
	}
	return append(args, file)
}
