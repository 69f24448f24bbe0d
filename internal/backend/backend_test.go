package backend

import (
	"reflect"
	"strings"
	"testing"

	config "renpy-unapk/internal/config"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "unrpyc", false},
		{"unrpyc", "unrpyc", false},
		{" CUSTOM ", "custom", false},
		{"pickle", "", true},
	}
	for _, tt := range tests {
		b, err := Select(tt.name)
		if tt.wantErr {
			if err == nil || !strings.Contains(err.Error(), "available: custom, unrpyc") {
				t.Fatalf("Select(%q) error = %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Select(%q) error = %v", tt.name, err)
		}
		if b.Name() != tt.want {
			t.Fatalf("Select(%q) = %s, want %s", tt.name, b.Name(), tt.want)
		}
	}
}

func TestUnrpycBuildArgs(t *testing.T) {
	opts := config.DecompileOptions{
		Overwrite:       true,
		Dump:            true,
		SL1AsPython:     true,
		Comparable:      true,
		NoPyExpr:        true,
		TagOutsideBlock: true,
		InitOffset:      true,
		TryHarder:       true,
		TranslationFile: "tl.bin",
	}
	got := UnrpycBackend{}.BuildArgs(opts, "game/script.rpyc")
	want := []string{
		"--clobber", "--dump", "--sl1-as-python", "--comparable", "--no-pyexpr",
		"--tag-outside-block", "--init-offset", "--try-harder",
		"-t", "tl.bin", "game/script.rpyc",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildArgs() = %v, want %v", got, want)
	}

	if got := (UnrpycBackend{}).BuildArgs(config.DecompileOptions{}, "a.rpyc"); !reflect.DeepEqual(got, []string{"a.rpyc"}) {
		t.Fatalf("BuildArgs() with no options = %v", got)
	}
}

func TestCustomBuildArgs(t *testing.T) {
	opts := config.DecompileOptions{TryHarder: true, WriteTranslationFile: "out.json", Language: "german"}
	got := CustomBackend{}.BuildArgs(opts, "a.rpyc")
	want := []string{"--json-events", "--try-harder", "--extract-translations", "--language", "german", "a.rpyc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildArgs() = %v, want %v", got, want)
	}
	if env := (CustomBackend{}).Env(config.DecompileOptions{}); env["UNAPK_LANGUAGE"] != config.DefaultLanguage {
		t.Fatalf("Env() = %v", env)
	}
	if (CustomBackend{}).Protocol() != ProtocolJSONEvents || (UnrpycBackend{}).Protocol() != ProtocolText {
		t.Fatal("unexpected protocols")
	}
}

func TestUnrpycWarnsInTranslationMode(t *testing.T) {
	var warned []string
	SetLogFuncs(func(msg string) { warned = append(warned, msg) }, nil)
	t.Cleanup(func() { SetLogFuncs(nil, nil) })

	UnrpycBackend{}.BuildArgs(config.DecompileOptions{WriteTranslationFile: "x.json"}, "a.rpyc")
	if len(warned) != 1 {
		t.Fatalf("warnings = %v", warned)
	}
}

func TestResolveCommand(t *testing.T) {
	if got := ResolveCommand(UnrpycBackend{}, ""); got != "unrpyc" {
		t.Fatalf("got %q", got)
	}
	if got := ResolveCommand(UnrpycBackend{}, " /opt/unrpyc.py "); got != "/opt/unrpyc.py" {
		t.Fatalf("got %q", got)
	}
	if got := ResolveCommand(CustomBackend{}, ""); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := ResolveCommand(nil, ""); got != "" {
		t.Fatalf("got %q", got)
	}
}
