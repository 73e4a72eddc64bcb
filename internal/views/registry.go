// Package views holds the set of UI views shipped with the core GUI.
package views

import (
	"fmt"
	"os"
	"sort"
)

// Registry is an immutable set of view names. It is built once at startup
// and is safe for concurrent reads.
type Registry struct {
	names map[string]struct{}
}

// NewRegistry creates a registry holding the given view names.
func NewRegistry(names ...string) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		r.names[n] = struct{}{}
	}
	return r
}

// Scan builds a registry from the immediate entries of dir. Every entry name
// counts as a view, matching how the core GUI lays out app/view/.
func Scan(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read view directory %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return NewRegistry(names...), nil
}

// Contains reports whether name is a core view.
func (r *Registry) Contains(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.names[name]
	return ok
}

// Len returns the number of views.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns a sorted copy of the view names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
