package app

import (
	"os"
	"path/filepath"
	"testing"

	config "renpy-unapk/internal/config"
)

func TestParseConfigDefaults(t *testing.T) {
	home := setupAppTest(t)

	cfg, err := parseConfig(nil)
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.Decompiler != config.DefaultDecompiler || cfg.SearchDir != config.DefaultSearchDir {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Options.Language != config.DefaultLanguage || cfg.Options.Overwrite {
		t.Fatalf("unexpected option defaults: %+v", cfg.Options)
	}
	if !cfg.HistoryEnabled || cfg.HistoryPath != filepath.Join(home, ".unapk", "history.db") {
		t.Fatalf("history = %v %q", cfg.HistoryEnabled, cfg.HistoryPath)
	}
	if cfg.Workers != 0 {
		t.Fatalf("Workers = %d, want 0", cfg.Workers)
	}
}

func TestParseConfigPrecedence(t *testing.T) {
	home := setupAppTest(t)
	cfgFile := filepath.Join(home, "unapk.yaml")
	content := "language: german\nworkers: 3\nclobber: true\ndecompiler: custom\ndecompiler-command: /opt/dec\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UNAPK_LANGUAGE", "french")

	cfg, err := parseConfig([]string{"--config", cfgFile})
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.Options.Language != "french" {
		t.Errorf("env should beat config file, Language = %q", cfg.Options.Language)
	}
	if cfg.Workers != 3 || !cfg.Options.Overwrite {
		t.Errorf("config file values not applied: workers=%d overwrite=%v", cfg.Workers, cfg.Options.Overwrite)
	}
	if cfg.Decompiler != "custom" || cfg.DecompilerCommand != "/opt/dec" {
		t.Errorf("decompiler = %q %q", cfg.Decompiler, cfg.DecompilerCommand)
	}

	cfg, err = parseConfig([]string{"--config", cfgFile, "-l", "japanese", "-j", "2", "--clobber=false"})
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.Options.Language != "japanese" || cfg.Workers != 2 || cfg.Options.Overwrite {
		t.Errorf("flags should win: %+v", cfg)
	}
}

func TestParseConfigWorkersFromEnv(t *testing.T) {
	setupAppTest(t)
	t.Setenv("UNAPK_MAX_PARALLEL_WORKERS", "500")

	cfg, err := parseConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 100 {
		t.Fatalf("Workers = %d, want clamp to 100", cfg.Workers)
	}
}

func TestParseConfigOptionFlags(t *testing.T) {
	setupAppTest(t)
	cfg, err := parseConfig([]string{"-c", "-d", "--sl1-as-python", "--comparable", "--no-pyexpr", "--tag-outside-block", "--init-offset", "--try-harder", "--no-history", "--prefix", "obf_"})
	if err != nil {
		t.Fatal(err)
	}
	o := cfg.Options
	if !o.Overwrite || !o.Dump || !o.SL1AsPython || !o.Comparable || !o.NoPyExpr || !o.TagOutsideBlock || !o.InitOffset || !o.TryHarder {
		t.Fatalf("options = %+v", o)
	}
	if cfg.HistoryEnabled || cfg.Prefix != "obf_" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigValidation(t *testing.T) {
	home := setupAppTest(t)
	tests := []struct {
		name string
		argv []string
	}{
		{"negative workers", []string{"-j", "-1"}},
		{"negative timeout", []string{"--timeout", "-5"}},
		{"dump with translations", []string{"-d", "-T", "out.json"}},
		{"missing translation file", []string{"-t", filepath.Join(home, "missing.rpyt")}},
		{"unknown decompiler", []string{"--decompiler", "bogus"}},
		{"bad report extension", []string{"--report", "out.csv"}},
		{"empty language", []string{"-l", " "}},
		{"missing config file", []string{"--config", filepath.Join(home, "nope.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseConfig(tt.argv); err == nil {
				t.Fatalf("parseConfig(%v) expected error", tt.argv)
			}
		})
	}
}

func TestRunExitCodes(t *testing.T) {
	setupAppTest(t)
	setDecompileFunc(t, okDecompile)

	empty := t.TempDir()
	if code := run([]string{"--quiet", "--search-dir", empty}); code != 1 {
		t.Errorf("no archive: exit = %d, want 1", code)
	}
	if code := run([]string{"--quiet", filepath.Join(empty, "missing.apk")}); code != 1 {
		t.Errorf("missing archive: exit = %d, want 1", code)
	}
	if code := run([]string{"--quiet", "--decompiler", "bogus", "--search-dir", empty}); code != 1 {
		t.Errorf("config error: exit = %d, want 1", code)
	}
	if code := run([]string{"version"}); code != 0 {
		t.Errorf("version: exit = %d, want 0", code)
	}

	// Per-file failures do not change the exit code.
	dir := t.TempDir()
	writeAPK(t, filepath.Join(dir, "game.apk"), gameFiles("x-script.rpyc", "x-broken.rpyc"))
	if code := run([]string{"--quiet", "--no-history", "--search-dir", dir}); code != 0 {
		t.Errorf("batch with failures: exit = %d, want 0", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "game", "script.rpyc")); err != nil {
		t.Errorf("project not restored: %v", err)
	}
}

func TestExtractCommand(t *testing.T) {
	setupAppTest(t)
	dir := t.TempDir()
	apk := filepath.Join(dir, "game.apk")
	writeAPK(t, apk, gameFiles("x-script.rpyc"))

	if code := run([]string{"extract", "--quiet", apk}); code != 0 {
		t.Fatalf("extract: exit = %d, want 0", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "game", "script.rpyc")); err != nil {
		t.Fatalf("project not restored: %v", err)
	}
	if code := run([]string{"extract", "--quiet", filepath.Join(dir, "missing.apk")}); code != 1 {
		t.Fatalf("extract missing: exit = %d, want 1", code)
	}
}

func TestCleanupCommand(t *testing.T) {
	setupAppTest(t)
	prev := cleanupOldLogsFn
	cleanupOldLogsFn = func() (CleanupStats, error) {
		return CleanupStats{Scanned: 2, Deleted: 1, Kept: 1}, nil
	}
	t.Cleanup(func() { cleanupOldLogsFn = prev })

	if code := run([]string{"cleanup"}); code != 0 {
		t.Fatalf("cleanup: exit = %d, want 0", code)
	}
}
