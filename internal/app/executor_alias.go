package app

import (
	"context"
	"io"

	executor "renpy-unapk/internal/executor"
)

func collectFiles(paths []string) (files, notFound []string, err error) {
	return executor.CollectFiles(paths)
}

func runBatch(ctx context.Context, log *Logger, out io.Writer, reqs []BatchRequest, fn executor.DecompileFunc, workers int) []TaskResult {
	return executor.NewRunner(log, out).Run(ctx, reqs, fn, workers)
}

func summarize(results []TaskResult) Summary { return executor.Summarize(results) }

func generateFinalOutput(s Summary) string { return executor.GenerateFinalOutput(s) }
