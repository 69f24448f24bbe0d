package app

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	config "renpy-unapk/internal/config"
	executor "renpy-unapk/internal/executor"
)

// setupAppTest isolates HOME, the layout cache and the terminal check.
func setupAppTest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("TMPDIR", t.TempDir())
	t.Setenv(config.EnvPrefix+"_SKIP_LOG_CLEANUP", "1")
	config.ResetLayoutCacheForTest()
	t.Cleanup(config.ResetLayoutCacheForTest)

	prevTerm := isTerminalFn
	isTerminalFn = func() bool { return false }
	t.Cleanup(func() { isTerminalFn = prevTerm })
	return home
}

func setDecompileFunc(t *testing.T, fn executor.DecompileFunc) {
	t.Helper()
	prev := newDecompilerFn
	newDecompilerFn = func(*Logger, string, string, time.Duration) (executor.DecompileFunc, error) {
		return fn, nil
	}
	t.Cleanup(func() { newDecompilerFn = prev })
}

// okDecompile succeeds for every file except those whose name contains
// "broken".
func okDecompile(_ context.Context, req executor.BatchRequest) (executor.FileOutput, error) {
	if strings.Contains(filepath.Base(req.Path), "broken") {
		return executor.FileOutput{}, os.ErrInvalid
	}
	return executor.FileOutput{LogLines: []string{"Decompiling " + req.Path}}, nil
}

// parseConfig resolves a Config from argv the way the root command does.
func parseConfig(argv []string) (*config.Config, error) {
	opts := &cliOptions{}
	cmd := &cobra.Command{SilenceErrors: true, SilenceUsage: true, Args: cobra.ArbitraryArgs}
	addGlobalFlags(cmd.Flags(), opts)
	if err := cmd.ParseFlags(argv); err != nil {
		return nil, err
	}
	return loadConfig(cmd, opts)
}

func writeAPK(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func gameFiles(scripts ...string) map[string]string {
	files := map[string]string{
		"AndroidManifest.xml":                       "manifest",
		"assets/android-presplash.jpg":              "jpg",
		"res/mipmap-xxxhdpi-v4/icon_background.png": "bg",
		"res/mipmap-xxxhdpi-v4/icon_foreground.png": "fg",
	}
	for _, s := range scripts {
		files["assets/x-game/"+s] = "RENPY RPC2"
	}
	return files
}
