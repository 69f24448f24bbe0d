package executor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync/atomic"
	"time"

	backend "renpy-unapk/internal/backend"
)

type Backend = backend.Backend

// processHandle is the subset of *os.Process the executor needs.
type processHandle interface {
	Pid() int
	Kill() error
	Signal(os.Signal) error
}

// commandRunner abstracts one decompiler process so tests can substitute it.
type commandRunner interface {
	Start() error
	Wait() error
	StdoutPipe() (io.ReadCloser, error)
	SetStderr(io.Writer)
	SetEnv(env map[string]string)
	Process() processHandle
}

// forceKillDelay is how long a process gets after SIGTERM before it is killed.
var forceKillDelay atomic.Int32

func init() {
	forceKillDelay.Store(5)
}

var (
	selectBackendFn  = backend.Select
	commandContext   = exec.CommandContext
	newCommandRunner = func(ctx context.Context, name string, args ...string) commandRunner {
		return newRealCmd(commandContext(ctx, name, args...))
	}
)

type realCmd struct {
	cmd *exec.Cmd
}

func newRealCmd(cmd *exec.Cmd) *realCmd {
	rc := &realCmd{cmd: cmd}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return sendTermSignal(osProcess{cmd.Process})
	}
	cmd.WaitDelay = time.Duration(forceKillDelay.Load()) * time.Second
	return rc
}

func (r *realCmd) Start() error                       { return r.cmd.Start() }
func (r *realCmd) Wait() error                        { return r.cmd.Wait() }
func (r *realCmd) StdoutPipe() (io.ReadCloser, error) { return r.cmd.StdoutPipe() }
func (r *realCmd) SetStderr(w io.Writer)              { r.cmd.Stderr = w }

func (r *realCmd) SetEnv(env map[string]string) {
	if len(env) == 0 {
		return
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	merged := os.Environ()
	for _, k := range keys {
		merged = append(merged, k+"="+env[k])
	}
	r.cmd.Env = merged
}

func (r *realCmd) Process() processHandle {
	if r.cmd.Process == nil {
		return nil
	}
	return osProcess{r.cmd.Process}
}

type osProcess struct{ p *os.Process }

func (o osProcess) Pid() int                 { return o.p.Pid }
func (o osProcess) Kill() error              { return o.p.Kill() }
func (o osProcess) Signal(s os.Signal) error { return o.p.Signal(s) }
