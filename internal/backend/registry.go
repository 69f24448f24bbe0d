package backend

import (
	"fmt"
	"sort"
	"strings"
)

var registry = map[string]Backend{
	"unrpyc": UnrpycBackend{},
	"custom": CustomBackend{},
}

// Registry exposes the available backends. Intended for internal inspection/tests.
func Registry() map[string]Backend {
	return registry
}

// Names returns the registered backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Select(name string) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "unrpyc"
	}
	if backend, ok := registry[key]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("unsupported decompiler %q (available: %s)", name, strings.Join(Names(), ", "))
}

// ResolveCommand returns override when set, otherwise the backend's default
// command. An empty result means the backend cannot be run.
func ResolveCommand(b Backend, override string) string {
	if cmd := strings.TrimSpace(override); cmd != "" {
		return cmd
	}
	if b == nil {
		return ""
	}
	return b.Command()
}
