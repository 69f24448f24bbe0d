package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	config "renpy-unapk/internal/config"
	"renpy-unapk/internal/history"
	"renpy-unapk/internal/watch"
)

func newWatchCommand(opts *cliOptions) *cobra.Command {
	var existing bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:           "watch [dir]",
		Short:         "Restore archives as they appear in a directory",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return codeErr(runWithLoggerAndCleanup(opts, func(log *Logger) int {
				cfg, err := loadConfig(cmd, opts)
				if err != nil {
					log.Error(err.Error())
					return 1
				}
				dir := cfg.SearchDir
				if len(args) == 1 {
					dir = config.ExpandPath(args[0])
				}
				return runWatch(cmd.Context(), cfg, log, cmd.OutOrStdout(), dir, existing, debounce)
			}))
		},
	}
	cmd.Flags().BoolVar(&existing, "existing", false, "Also process archives already in the directory")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a new archive is processed")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, log *Logger, out io.Writer, dir string, existing bool, debounce time.Duration) int {
	tool, err := NewTool(cfg, log, out)
	if err != nil {
		log.Error(err.Error())
		return 1
	}
	defer tool.Close()

	if existing {
		found, err := DiscoverArchives(dir)
		if err != nil {
			log.Error(fmt.Sprintf("Cannot read %s: %v", dir, err))
			return 1
		}
		tool.ProcessAll(ctx, found)
	}

	w, err := watch.NewArchiveWatcher(dir, log, func(paths []string) {
		tool.ProcessAll(ctx, paths)
	})
	if err != nil {
		log.Error(fmt.Sprintf("Cannot watch %s: %v", dir, err))
		return 1
	}
	w.SetDebounce(debounce)
	w.Start(ctx)
	defer w.Stop()

	fmt.Fprintf(out, "Watching %s for new archives (Ctrl+C to stop)\n", dir)
	<-ctx.Done()
	log.Info("Watch stopped")
	return 0
}

func newHistoryCommand(opts *cliOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history [run-id]",
		Short:         "List recent runs, or show one run in detail",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(opts.ConfigFile)
			if err != nil {
				return err
			}
			path := config.ExpandPath(v.GetString("history-path"))
			if path == "" {
				path = config.DefaultHistoryPath()
			}
			if path == "" {
				return errors.New("cannot locate the history database; set UNAPK_HISTORY_PATH")
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return printRun(cmd.Context(), cmd.OutOrStdout(), store, args[0])
			}
			return printRecent(cmd.Context(), cmd.OutOrStdout(), store, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}

func printRecent(ctx context.Context, out io.Writer, store *history.Store, limit int) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tFILES\tFAILED\tARCHIVE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.ID), humanize.Time(r.StartedAt), r.Status, r.Total, r.BadHeader+r.Error, r.Archive)
	}
	return tw.Flush()
}

func printRun(ctx context.Context, out io.Writer, store *history.Store, id string) error {
	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run:      %s\n", r.ID)
	fmt.Fprintf(out, "Archive:  %s\n", r.Archive)
	if r.ProjectDir != "" {
		fmt.Fprintf(out, "Project:  %s\n", r.ProjectDir)
	}
	fmt.Fprintf(out, "Started:  %s (%s)\n", r.StartedAt.Local().Format(time.DateTime), humanize.Time(r.StartedAt))
	fmt.Fprintf(out, "Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "Status:   %s\n", r.Status)
	if r.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", r.Message)
	}
	fmt.Fprintf(out, "Files:    %d total, %d ok, %d skipped, %d bad header, %d failed\n", r.Total, r.OK, r.Skip, r.BadHeader, r.Error)
	for _, f := range r.Files {
		line := fmt.Sprintf("  [%s] %s", f.State, f.File)
		if f.Error != "" {
			line += ": " + f.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newCleanupCommand(opts *cliOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:           "cleanup",
		Short:         "Remove logs of finished runs and old history entries",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := runCleanupMode(cmd.OutOrStdout()); code != 0 {
				return exitError{code: code}
			}
			if olderThan <= 0 {
				return nil
			}
			path := config.DefaultHistoryPath()
			if v, err := config.NewViper(opts.ConfigFile); err == nil {
				if p := config.ExpandPath(v.GetString("history-path")); p != "" {
					path = p
				}
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "History entries removed: %d\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "history-older-than", 0, "Also delete history runs older than this (e.g. 720h)")
	return cmd
}
