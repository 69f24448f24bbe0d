package archive

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestNormalizedName(t *testing.T) {
	tests := []struct {
		name        string
		leadingOnly bool
		want        string
	}{
		{"x-script.rpyc", false, "script.rpyc"},
		{"x-x-a.rpyc", false, "a.rpyc"},
		{"x-game", false, "game"},
		{"script.rpyc", false, "script.rpyc"},
		{"abx-c.txt", false, "abc.txt"},
		{"ch1x-intro.rpyc", false, "ch1intro.rpyc"},
		{"a-x-b.png", false, "a-b.png"},
		{"x-ax-b.png", false, "ab.png"},
		{"xx--a.txt", false, "a.txt"},
		{"x-", false, "x-"},
		{"x-.rpyc", false, "x-.rpyc"},
		{"image.x-png", false, "image.x-png"},
		{"x-x-a.rpyc", true, "a.rpyc"},
		{"ch1x-intro.rpyc", true, "ch1x-intro.rpyc"},
		{"x-ax-b.png", true, "ax-b.png"},
	}
	for _, tt := range tests {
		n := NewNormalizer(nil, "x-").LeadingOnly(tt.leadingOnly)
		if got := n.NormalizedName(tt.name); got != tt.want {
			t.Errorf("NormalizedName(%q, leadingOnly=%v) = %q, want %q", tt.name, tt.leadingOnly, got, tt.want)
		}
	}
}

func TestNormalizedNameEmptyToken(t *testing.T) {
	if got := NewNormalizer(nil, "").NormalizedName("x-a.txt"); got != "x-a.txt" {
		t.Fatalf("got %q", got)
	}
}

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if strings.HasSuffix(f, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(out)
	return out
}

func equalLists(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalizeRenamesChildrenBeforeParent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"x-game/x-script.rpyc",
		"x-game/x-sub/x-x-a.txt",
		"x-game/options.rpyc",
		"android-icon_background.png",
	)

	stats, err := NewNormalizer(nil, "x-").Normalize(root)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := []string{
		"android-icon_background.png",
		"game/",
		"game/options.rpyc",
		"game/script.rpyc",
		"game/sub/",
		"game/sub/a.txt",
	}
	if got := listTree(t, root); !equalLists(got, want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
	if stats.Renamed != 4 {
		t.Fatalf("Renamed = %d, want 4", stats.Renamed)
	}
	if stats.Visited != 6 {
		t.Fatalf("Visited = %d, want 6", stats.Visited)
	}
	if stats.Err() != nil {
		t.Fatalf("unexpected errors: %v", stats.Err())
	}

	again, err := NewNormalizer(nil, "x-").Normalize(root)
	if err != nil {
		t.Fatal(err)
	}
	if again.Renamed != 0 {
		t.Fatalf("second pass renamed %d entries", again.Renamed)
	}
}

func TestNormalizeCollisionWithExistingSibling(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "x-a.txt")

	stats, err := NewNormalizer(nil, "x-").Normalize(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Collisions) != 1 {
		t.Fatalf("Collisions = %d, want 1", len(stats.Collisions))
	}
	c := stats.Collisions[0]
	if c.From != "x-a.txt" || c.To != "a.txt" {
		t.Fatalf("collision = %+v", c)
	}
	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	if err != nil || string(data) != "a.txt" {
		t.Fatalf("a.txt was overwritten: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(root, "x-a.txt")); err != nil {
		t.Fatalf("x-a.txt should be left in place: %v", err)
	}
	var target *RenameCollisionError
	if !errors.As(stats.Err(), &target) {
		t.Fatalf("Err() should wrap a RenameCollisionError")
	}
}

func TestNormalizeCollisionBetweenRenamedSiblings(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x-a.txt", "x-x-a.txt")

	stats, err := NewNormalizer(nil, "x-").Normalize(root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Renamed != 1 || len(stats.Collisions) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	want := []string{"a.txt", "x-x-a.txt"}
	if got := listTree(t, root); !equalLists(got, want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
}

func TestNormalizeKeepsEmptyStem(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x-/", "x-.rpyc")

	stats, err := NewNormalizer(nil, "x-").Normalize(root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Renamed != 0 {
		t.Fatalf("Renamed = %d, want 0", stats.Renamed)
	}
	want := []string{"x-.rpyc", "x-/"}
	if got := listTree(t, root); !equalLists(got, want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
}

func TestNormalizeContinuesAfterRenameFailure(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x-a.txt", "x-b.txt")

	orig := renameFn
	renameFn = func(from, to string) error {
		if filepath.Base(from) == "x-a.txt" {
			return errors.New("denied")
		}
		return orig(from, to)
	}
	t.Cleanup(func() { renameFn = orig })

	stats, err := NewNormalizer(nil, "x-").Normalize(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Failures) != 1 || stats.Renamed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	want := []string{"b.txt", "x-a.txt"}
	if got := listTree(t, root); !equalLists(got, want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
}

func TestNormalizeRejectsMissingRoot(t *testing.T) {
	if _, err := NewNormalizer(nil, "x-").Normalize(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
