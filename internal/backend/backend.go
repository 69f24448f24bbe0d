package backend

import config "renpy-unapk/internal/config"

// Protocol describes what a decompiler prints on stdout.
type Protocol int

const (
	// ProtocolText is free-form output; only the exit code carries the outcome.
	ProtocolText Protocol = iota
	// ProtocolJSONEvents is one JSON event object per line.
	ProtocolJSONEvents
)

// Backend describes how to invoke one external decompiler for a single
// compiled script file.
type Backend interface {
	Name() string
	Command() string
	BuildArgs(opts config.DecompileOptions, file string) []string
	Env(opts config.DecompileOptions) map[string]string
	Protocol() Protocol
}

var (
	logWarnFn  = func(string) {}
	logErrorFn = func(string) {}
)

// SetLogFuncs configures optional logging hooks used by some backends.
// Callers can safely pass nil to disable the hook.
func SetLogFuncs(warnFn, errorFn func(string)) {
	if warnFn != nil {
		logWarnFn = warnFn
	} else {
		logWarnFn = func(string) {}
	}
	if errorFn != nil {
		logErrorFn = errorFn
	} else {
		logErrorFn = func(string) {}
	}
}

// optionFlags maps the shared decompile options onto unrpyc-style flags.
func optionFlags(opts config.DecompileOptions) []string {
	var args []string
	if opts.Overwrite {
		args = append(args, "--clobber")
	}
	if opts.Dump {
		args = append(args, "--dump")
	}
	if opts.SL1AsPython {
		args = append(args, "--sl1-as-python")
	}
	if opts.Comparable {
		args = append(args, "--comparable")
	}
	if opts.NoPyExpr {
		args = append(args, "--no-pyexpr")
	}
	if opts.TagOutsideBlock {
		args = append(args, "--tag-outside-block")
	}
	if opts.InitOffset {
		args = append(args, "--init-offset")
	}
	if opts.TryHarder {
		args = append(args, "--try-harder")
	}
	return args
}
