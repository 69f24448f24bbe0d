package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	config "renpy-unapk/internal/config"
	"renpy-unapk/internal/logger"
)

// DecompileFunc processes one file. It must not touch state shared with other
// calls. A returned error wrapping ErrSkip or ErrBadHeader selects that state;
// any other error marks the file as failed. Log lines are kept in every case.
type DecompileFunc func(ctx context.Context, req BatchRequest) (FileOutput, error)

// Runner executes batches of DecompileFunc calls.
type Runner struct {
	log *logger.Logger
	out io.Writer
}

// NewRunner returns a Runner that streams each finished file's log lines to
// out. A nil out discards them.
func NewRunner(log *logger.Logger, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{log: log, out: out}
}

// Run processes every request and returns exactly one result per request.
// With one worker the results come back in input order; otherwise in
// completion order. parallelism <= 0 means one worker per CPU.
func (r *Runner) Run(ctx context.Context, reqs []BatchRequest, fn DecompileFunc, parallelism int) []TaskResult {
	results := make([]TaskResult, 0, len(reqs))
	if len(reqs) == 0 {
		r.log.Warn("No script files to decompile.")
		return results
	}

	workers := config.ClampWorkers(parallelism, len(reqs))
	r.log.Debug(fmt.Sprintf("Decompiling %d files with %d workers", len(reqs), workers))

	if workers == 1 {
		for _, req := range reqs {
			res := r.runOne(ctx, req, fn)
			r.emit(res)
			results = append(results, res)
		}
		return results
	}

	done := make(chan TaskResult, len(reqs))
	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, req := range reqs {
			req := req
			g.Go(func() error {
				done <- r.runOne(ctx, req, fn)
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	for res := range done {
		r.emit(res)
		results = append(results, res)
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, req BatchRequest, fn DecompileFunc) (res TaskResult) {
	res = NewTaskResult(req)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.State = StateError
			res.Error = fmt.Errorf("panic while decompiling %s: %v", req.Path, p)
			res.LogLines = append(res.LogLines, fmt.Sprintf("Error while decompiling %s:", req.Path), fmt.Sprint(p))
			res.LogLines = append(res.LogLines, strings.Split(strings.TrimRight(string(debug.Stack()), "\n"), "\n")...)
			r.log.Error(res.Error.Error())
		}
		res.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Error = err
		res.LogLines = append(res.LogLines, fmt.Sprintf("Not decompiling %s: %v", req.Path, err))
		return res
	}

	out, err := fn(ctx, req)
	res.LogLines = append(res.LogLines, out.LogLines...)
	switch {
	case err == nil:
		res.State = StateOK
		res.Value = out.Value
	case errors.Is(err, ErrSkip):
		res.State = StateSkip
	case errors.Is(err, ErrBadHeader):
		res.State = StateBadHeader
	default:
		res.State = StateError
		res.Error = err
		res.LogLines = append(res.LogLines, fmt.Sprintf("Error while decompiling %s:", req.Path))
		res.LogLines = append(res.LogLines, strings.Split(err.Error(), "\n")...)
		r.log.Warn(fmt.Sprintf("Decompiling %s failed: %v", req.Path, err))
	}
	return res
}

// emit writes a finished result's log lines followed by a blank line. It is
// only called from the goroutine that collects results.
func (r *Runner) emit(res TaskResult) {
	var b strings.Builder
	for _, line := range res.LogLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(r.out, b.String())
}
