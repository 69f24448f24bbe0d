// Package archive restores an Android package into a project tree: it unpacks
// the archive into a staging directory, relocates the game payload and icons
// into the project directory and strips the packaging prefix from every name.
package archive

import (
	"path"
	"path/filepath"
	"strings"
)

// Relocation moves one path from the unpacked archive into the project.
// Source is slash-separated and relative to the archive root. Dest is
// relative to the project directory; an empty Dest keeps the base name of
// Source and "." merges the contents of a Source directory into the project
// directory itself.
type Relocation struct {
	Source   string `json:"source"`
	Dest     string `json:"dest,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// DefaultRelocations returns the relocation table for a Ren'Py Android build
// whose payload names carry prefix.
func DefaultRelocations(prefix string) []Relocation {
	return []Relocation{
		{Source: "assets/" + prefix + "game", Dest: ".", Required: true},
		{Source: "res/mipmap-xxxhdpi-v4/icon_background.png", Dest: "android-icon_background.png"},
		{Source: "res/mipmap-xxxhdpi-v4/icon_foreground.png", Dest: "android-icon_foreground.png"},
		{Source: "assets/android-presplash.jpg", Dest: "android-presplash.jpg"},
	}
}

func (r Relocation) sourcePath(stagingDir string) string {
	return filepath.Join(stagingDir, filepath.FromSlash(r.Source))
}

// mergesIntoProject reports whether Source's children land directly in the
// project directory.
func (r Relocation) mergesIntoProject() bool {
	dest := strings.TrimSpace(r.Dest)
	return dest != "" && path.Clean(filepath.ToSlash(dest)) == "."
}

func (r Relocation) destPath(projectDir string) string {
	dest := strings.TrimSpace(r.Dest)
	if dest == "" {
		dest = path.Base(r.Source)
	}
	return filepath.Join(projectDir, filepath.FromSlash(dest))
}

// ProjectLayout describes where one archive is unpacked and restored to.
type ProjectLayout struct {
	ArchivePath string
	StagingDir  string
	ProjectDir  string
	Relocations []Relocation
}

// ProjectDirFor derives the project directory by stripping the archive's
// extension: games/demo.apk -> games/demo.
func ProjectDirFor(archivePath string) string {
	return strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
}
