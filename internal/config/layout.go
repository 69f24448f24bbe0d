package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"renpy-unapk/internal/archive"
	ilogger "renpy-unapk/internal/logger"
)

// LayoutConfig is the optional $HOME/.unapk/layout.json file.
//
//	{
//	  "prefix": "x-",
//	  "leading_only": false,
//	  "replace": false,
//	  "relocations": [{"source": "assets/extra", "dest": "extra"}]
//	}
//
// Relocations extend the defaults; an entry with the same source replaces the
// default one. With replace set, only the listed relocations are used.
type LayoutConfig struct {
	Prefix      string               `json:"prefix,omitempty"`
	LeadingOnly bool                 `json:"leading_only,omitempty"`
	Replace     bool                 `json:"replace,omitempty"`
	Relocations []archive.Relocation `json:"relocations,omitempty"`
}

// ResolvedLayout is the layout used for one run.
type ResolvedLayout struct {
	Prefix      string
	LeadingOnly bool
	Relocations []archive.Relocation
}

var (
	layoutConfigOnce   sync.Once
	layoutConfigCached *LayoutConfig
)

func layoutConfig() *LayoutConfig {
	layoutConfigOnce.Do(func() {
		layoutConfigCached = loadLayoutConfig()
	})
	if layoutConfigCached == nil {
		return &LayoutConfig{}
	}
	return layoutConfigCached
}

func loadLayoutConfig() *LayoutConfig {
	dir, ok := HomeConfigDir()
	if !ok {
		return &LayoutConfig{}
	}
	configPath := filepath.Join(dir, "layout.json")

	data, err := os.ReadFile(configPath) // #nosec G304 -- fixed name under the user's config dir
	if err != nil {
		if !os.IsNotExist(err) {
			ilogger.LogWarn(fmt.Sprintf("Failed to read layout config %s: %v; using defaults", configPath, err))
		}
		return &LayoutConfig{}
	}

	var cfg LayoutConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		ilogger.LogWarn(fmt.Sprintf("Failed to parse layout config %s: %v; using defaults", configPath, err))
		return &LayoutConfig{}
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)

	valid := cfg.Relocations[:0]
	for _, r := range cfg.Relocations {
		if err := validateRelocation(r); err != nil {
			ilogger.LogWarn(fmt.Sprintf("Ignoring relocation in %s: %v", configPath, err))
			continue
		}
		valid = append(valid, r)
	}
	cfg.Relocations = valid
	return &cfg
}

func validateRelocation(r archive.Relocation) error {
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("relocation source is empty")
	}
	for _, p := range []string{r.Source, r.Dest} {
		if p == "" {
			continue
		}
		if path.IsAbs(p) || filepath.IsAbs(p) {
			return fmt.Errorf("%q must be relative", p)
		}
		clean := path.Clean(filepath.ToSlash(p))
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("%q escapes its root", p)
		}
	}
	return nil
}

// ResolveLayout merges layout.json with the built-in relocation table. A
// non-empty prefixOverride wins over the file's prefix.
func ResolveLayout(prefixOverride string) ResolvedLayout {
	cfg := layoutConfig()

	prefix := strings.TrimSpace(prefixOverride)
	if prefix == "" {
		prefix = cfg.Prefix
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	out := ResolvedLayout{Prefix: prefix, LeadingOnly: cfg.LeadingOnly}
	if cfg.Replace && len(cfg.Relocations) > 0 {
		out.Relocations = append([]archive.Relocation(nil), cfg.Relocations...)
		return out
	}

	overrides := make(map[string]archive.Relocation, len(cfg.Relocations))
	for _, r := range cfg.Relocations {
		overrides[r.Source] = r
	}
	for _, r := range archive.DefaultRelocations(prefix) {
		if o, ok := overrides[r.Source]; ok {
			r = o
			delete(overrides, r.Source)
		}
		out.Relocations = append(out.Relocations, r)
	}
	for _, r := range cfg.Relocations {
		if _, ok := overrides[r.Source]; ok {
			out.Relocations = append(out.Relocations, r)
			delete(overrides, r.Source)
		}
	}
	return out
}

func ResetLayoutCacheForTest() {
	layoutConfigCached = nil
	layoutConfigOnce = sync.Once{}
}
