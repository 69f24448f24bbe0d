package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLayout(t *testing.T, body string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	if body != "" {
		dir := filepath.Join(home, ".unapk")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "layout.json"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ResetLayoutCacheForTest()
	t.Cleanup(ResetLayoutCacheForTest)
}

func TestResolveLayoutDefaults(t *testing.T) {
	writeLayout(t, "")

	got := ResolveLayout("")
	if got.Prefix != DefaultPrefix {
		t.Fatalf("Prefix = %q", got.Prefix)
	}
	if len(got.Relocations) != 4 || got.Relocations[0].Source != "assets/x-game" {
		t.Fatalf("Relocations = %+v", got.Relocations)
	}

	got = ResolveLayout("renpy-")
	if got.Relocations[0].Source != "assets/renpy-game" {
		t.Fatalf("prefix override not applied: %+v", got.Relocations[0])
	}
}

func TestResolveLayoutMergesFile(t *testing.T) {
	writeLayout(t, `{
		"prefix": "p-",
		"leading_only": true,
		"relocations": [
			{"source": "assets/android-presplash.jpg", "dest": "splash.jpg"},
			{"source": "assets/extra", "dest": "extra"},
			{"source": "../escape"},
			{"source": ""}
		]
	}`)

	got := ResolveLayout("")
	if got.Prefix != "p-" || !got.LeadingOnly {
		t.Fatalf("layout = %+v", got)
	}
	if len(got.Relocations) != 5 {
		t.Fatalf("Relocations = %+v", got.Relocations)
	}
	if got.Relocations[0].Source != "assets/p-game" || !got.Relocations[0].Required {
		t.Fatalf("game relocation = %+v", got.Relocations[0])
	}
	if got.Relocations[3].Dest != "splash.jpg" {
		t.Fatalf("presplash override = %+v", got.Relocations[3])
	}
	if got.Relocations[4].Source != "assets/extra" {
		t.Fatalf("extra relocation = %+v", got.Relocations[4])
	}
}

func TestResolveLayoutReplace(t *testing.T) {
	writeLayout(t, `{"replace": true, "relocations": [{"source": "assets/game", "required": true}]}`)

	got := ResolveLayout("")
	if len(got.Relocations) != 1 || got.Relocations[0].Source != "assets/game" {
		t.Fatalf("Relocations = %+v", got.Relocations)
	}
}

func TestResolveLayoutInvalidJSONFallsBack(t *testing.T) {
	writeLayout(t, `{not json`)

	got := ResolveLayout("")
	if got.Prefix != DefaultPrefix || len(got.Relocations) != 4 {
		t.Fatalf("layout = %+v", got)
	}
}
