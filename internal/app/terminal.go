package app

import (
	"os"

	"github.com/mattn/go-isatty"
)

var isTerminalFn = defaultIsTerminal

// defaultIsTerminal reports whether stderr is an interactive terminal.
func defaultIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func isTerminal() bool { return isTerminalFn() }
