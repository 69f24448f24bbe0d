package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	backend "renpy-unapk/internal/backend"
	config "renpy-unapk/internal/config"
	"renpy-unapk/internal/report"
)

const toolName = "unapk"

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

func codeErr(code int) error {
	if code == 0 {
		return nil
	}
	return exitError{code: code}
}

type cliOptions struct {
	ConfigFile string
	Version    bool
	Verbose    bool
	Quiet      bool

	SearchDir         string
	Prefix            string
	Workers           int
	Timeout           int
	Decompiler        string
	DecompilerCommand string
	ReportPath        string
	NoHistory         bool

	Clobber              bool
	Dump                 bool
	TranslationFile      string
	WriteTranslationFile string
	Language             string
	SL1AsPython          bool
	Comparable           bool
	NoPyExpr             bool
	TagOutsideBlock      bool
	InitOffset           bool
	TryHarder            bool
}

func Main() {
	Run()
}

// Run is the program entrypoint for cmd/unapk/main.go.
func Run() {
	exitFn(run(os.Args[1:]))
}

func run(argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	cmd.SetArgs(argv)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:           toolName + " [flags] [archive.apk]",
		Short:         "Restore Ren'Py Android packages into project directories",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", toolName, version)
				return nil
			}
			return codeErr(runWithLoggerAndCleanup(opts, func(log *Logger) int {
				cfg, err := loadConfig(cmd, opts)
				if err != nil {
					log.Error(err.Error())
					return 1
				}
				if len(args) == 1 {
					cfg.ArchivePath = args[0]
				}
				return runRestore(cmd.Context(), cfg, log, cmd.OutOrStdout())
			}))
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	addGlobalFlags(cmd.PersistentFlags(), opts)
	cmd.Flags().BoolVarP(&opts.Version, "version", "v", false, "Print version and exit")

	cmd.AddCommand(
		newDecompileCommand(opts),
		newExtractCommand(opts),
		newWatchCommand(opts),
		newHistoryCommand(opts),
		newCleanupCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: $HOME/.unapk/config.*)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Show debug log output")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Do not mirror log output to stderr")

	fs.StringVar(&opts.SearchDir, "search-dir", config.DefaultSearchDir, "Directory searched for archives when none is named")
	fs.StringVar(&opts.Prefix, "prefix", "", "Obfuscation prefix stripped from names (default \"x-\")")
	fs.IntVarP(&opts.Workers, "workers", "j", 0, "Parallel decompile workers (0: one per CPU)")
	fs.IntVar(&opts.Timeout, "timeout", 0, "Per-file decompile timeout in seconds (default 600)")
	fs.StringVar(&opts.Decompiler, "decompiler", config.DefaultDecompiler, "Decompiler backend ("+strings.Join(backend.Names(), ", ")+")")
	fs.StringVar(&opts.DecompilerCommand, "decompiler-command", "", "Executable run for each script (overrides the backend default)")
	fs.StringVar(&opts.ReportPath, "report", "", "Write a run report (.json, .yaml or .toml; {name} expands to the archive name)")
	fs.BoolVar(&opts.NoHistory, "no-history", false, "Do not record runs in the history database")

	fs.BoolVarP(&opts.Clobber, "clobber", "c", false, "Overwrite existing output files")
	fs.BoolVarP(&opts.Dump, "dump", "d", false, "Pretty print the AST to a file instead of decompiling")
	fs.StringVarP(&opts.TranslationFile, "translation-file", "t", "", "Use the given translation file while decompiling")
	fs.StringVarP(&opts.WriteTranslationFile, "write-translation-file", "T", "", "Extract translations and write them to the given file")
	fs.StringVarP(&opts.Language, "language", "l", config.DefaultLanguage, "Language of the extracted translations")
	fs.BoolVar(&opts.SL1AsPython, "sl1-as-python", false, "Decompile screenlang 1 screens as python")
	fs.BoolVar(&opts.Comparable, "comparable", false, "Emit output meant for comparison, not execution")
	fs.BoolVar(&opts.NoPyExpr, "no-pyexpr", false, "Dump mode: print PyExpr objects as plain strings")
	fs.BoolVar(&opts.TagOutsideBlock, "tag-outside-block", false, "Always put SL2 tags on the same line as the screen")
	fs.BoolVar(&opts.InitOffset, "init-offset", false, "Guess init offsets and emit init offset statements")
	fs.BoolVar(&opts.TryHarder, "try-harder", false, "Try harder on obfuscated scripts")
}

func newDecompileCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decompile <path>...",
		Short:         "Decompile compiled scripts in the given files or directories",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return codeErr(runWithLoggerAndCleanup(opts, func(log *Logger) int {
				cfg, err := loadConfig(cmd, opts)
				if err != nil {
					log.Error(err.Error())
					return 1
				}
				tool, err := NewTool(cfg, log, cmd.OutOrStdout())
				if err != nil {
					log.Error(err.Error())
					return 1
				}
				defer tool.Close()

				if _, err := tool.DecompilePaths(cmd.Context(), args); err != nil {
					log.Error(err.Error())
					return 1
				}
				return 0
			}))
		},
	}
}

func newExtractCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "extract <archive.apk>",
		Short:         "Restore the project directory without decompiling",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return codeErr(runWithLoggerAndCleanup(opts, func(log *Logger) int {
				cfg, err := loadConfig(cmd, opts)
				if err != nil {
					log.Error(err.Error())
					return 1
				}
				tool := newExtractTool(cfg, log, cmd.OutOrStdout())
				layout, stats, err := tool.Extract(cmd.Context(), args[0])
				if err != nil {
					log.Error(fmt.Sprintf("%s failed: %v", args[0], err))
					return 1
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s (%d names normalized).\n", args[0], layout.ProjectDir, stats.Renamed)
				return 0
			}))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version and exit",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", toolName, version)
			return nil
		},
	}
}

func runWithLoggerAndCleanup(opts *cliOptions, fn func(log *Logger) int) (exitCode int) {
	logger, err := NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to initialize logger: %v\n", err)
		return 1
	}
	if !opts.Quiet {
		logger.AttachConsole(os.Stderr, opts.Verbose)
	}
	setLogger(logger)
	backend.SetLogFuncs(logWarn, logError)

	defer func() {
		logger := activeLogger()
		if logger != nil {
			logger.Flush()
		}
		backend.SetLogFuncs(nil, nil)
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: failed to close logger: %v\n", err)
		}
		if logger == nil {
			return
		}

		if exitCode != 0 && opts.Quiet {
			if entries := logger.ExtractRecentErrors(10); len(entries) > 0 {
				fmt.Fprintln(os.Stderr, "\n=== Recent Errors ===")
				for _, entry := range entries {
					fmt.Fprintln(os.Stderr, entry)
				}
			}
		}
		if exitCode != 0 {
			fmt.Fprintf(os.Stderr, "Log file: %s\n", logger.Path())
			return
		}
		_ = logger.RemoveLogFile()
	}()

	// Clean up stale logs from previous runs.
	wait := scheduleStartupCleanup()
	defer wait()

	return fn(logger)
}

// loadConfig resolves every setting with the precedence flag > environment
// or config file > default.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*config.Config, error) {
	v, err := config.NewViper(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildConfig(cmd.Flags(), opts, v)
}

func buildConfig(fs *pflag.FlagSet, opts *cliOptions, v *viper.Viper) (*config.Config, error) {
	str := func(name, flagVal, def string) string {
		if fs.Changed(name) {
			return strings.TrimSpace(flagVal)
		}
		if val := strings.TrimSpace(v.GetString(name)); val != "" {
			return val
		}
		return def
	}
	boolean := func(name string, flagVal bool) bool {
		if fs.Changed(name) {
			return flagVal
		}
		if v.IsSet(name) {
			return config.ParseBoolFlag(v.GetString(name), false)
		}
		return false
	}
	integer := func(name string, flagVal int) int {
		if fs.Changed(name) {
			return flagVal
		}
		if v.IsSet(name) {
			return v.GetInt(name)
		}
		return 0
	}

	cfg := &config.Config{
		SearchDir:         config.ExpandPath(str("search-dir", opts.SearchDir, config.DefaultSearchDir)),
		Prefix:            str("prefix", opts.Prefix, ""),
		Workers:           integer("workers", opts.Workers),
		Timeout:           integer("timeout", opts.Timeout),
		Decompiler:        str("decompiler", opts.Decompiler, config.DefaultDecompiler),
		DecompilerCommand: config.ExpandPath(str("decompiler-command", opts.DecompilerCommand, "")),
		ReportPath:        config.ExpandPath(str("report", opts.ReportPath, "")),
		HistoryEnabled:    !boolean("no-history", opts.NoHistory),
		HistoryPath:       config.ExpandPath(str("history-path", "", config.DefaultHistoryPath())),
		Verbose:           opts.Verbose,
		Quiet:             opts.Quiet,
		Options: config.DecompileOptions{
			Overwrite:            boolean("clobber", opts.Clobber),
			TryHarder:            boolean("try-harder", opts.TryHarder),
			Dump:                 boolean("dump", opts.Dump),
			NoPyExpr:             boolean("no-pyexpr", opts.NoPyExpr),
			InitOffset:           boolean("init-offset", opts.InitOffset),
			Comparable:           boolean("comparable", opts.Comparable),
			TagOutsideBlock:      boolean("tag-outside-block", opts.TagOutsideBlock),
			SL1AsPython:          boolean("sl1-as-python", opts.SL1AsPython),
			TranslationFile:      config.ExpandPath(str("translation-file", opts.TranslationFile, "")),
			WriteTranslationFile: config.ExpandPath(str("write-translation-file", opts.WriteTranslationFile, "")),
			Language:             str("language", opts.Language, config.DefaultLanguage),
		},
	}
	if cfg.Workers == 0 {
		cfg.Workers = config.ResolveMaxParallelWorkers()
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *config.Config) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("--workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative, got %d", cfg.Timeout)
	}
	if cfg.Options.Language == "" {
		return fmt.Errorf("--language requires a value")
	}
	if cfg.Options.Dump && cfg.Options.TranslationMode() {
		return fmt.Errorf("--dump cannot be combined with --write-translation-file")
	}
	if tf := cfg.Options.TranslationFile; tf != "" {
		if _, err := os.Stat(tf); err != nil {
			return fmt.Errorf("File not found: %s", tf)
		}
	}
	if _, err := backend.Select(cfg.Decompiler); err != nil {
		return err
	}
	if cfg.ReportPath != "" {
		if _, err := report.FormatFor(cfg.ReportPath); err != nil {
			return err
		}
	}
	return nil
}

// runRestore processes the named archive, or every archive in the search
// directory. Per-archive and per-file failures are reported but keep the exit
// code at 0.
func runRestore(ctx context.Context, cfg *config.Config, log *Logger, out io.Writer) int {
	var archives []string
	if cfg.ArchivePath != "" {
		if _, err := os.Stat(cfg.ArchivePath); err != nil {
			log.Error("Archive not found: " + cfg.ArchivePath)
			return 1
		}
		archives = []string{cfg.ArchivePath}
	} else {
		found, err := DiscoverArchives(cfg.SearchDir)
		if err != nil {
			log.Error(fmt.Sprintf("Cannot read %s: %v", cfg.SearchDir, err))
			return 1
		}
		if len(found) == 0 {
			fmt.Fprintf(out, "No .apk file found in %s. Is the archive in this directory?\n", cfg.SearchDir)
			return 1
		}
		archives = found
	}

	tool, err := NewTool(cfg, log, out)
	if err != nil {
		log.Error(err.Error())
		return 1
	}
	defer tool.Close()

	if failed := tool.ProcessAll(ctx, archives); failed > 0 {
		log.Warn(fmt.Sprintf("%d of %d archives could not be restored", failed, len(archives)))
	}
	return 0
}
