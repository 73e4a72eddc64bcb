// Package livereload watches the GUI sources and tells connected browsers to
// reload when they change.
package livereload

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns are the files whose changes trigger a reload, relative to
// the GUI web application directory.
var DefaultPatterns = []string{
	"./app/**/*.css",
	"./app/**/*.js",
	"./app/**/*.json",
	"./app/**/*.html",
	"./app/**/*.jpg",
	"./app/**/*.png",
	"./app/**/*.gif",
	"../../../../../apps/**/*.js",
	"../../../../../apps/**/*.html",
	"../../../../../apps/**/*.css",
}

type pattern struct {
	raw   string
	root  string
	globs []glob.Glob
}

// Patterns is a compiled list of watch globs. `**` matches any number of
// directories, including none.
type Patterns struct {
	list []pattern
}

// CompilePatterns resolves each relative pattern against base and compiles
// it.
func CompilePatterns(base string, raw []string) (*Patterns, error) {
	p := &Patterns{}
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		full := r
		if !filepath.IsAbs(full) {
			full = filepath.Join(base, full)
		}
		full = filepath.ToSlash(filepath.Clean(full))

		variants := []string{full}
		if strings.Contains(full, "**/") {
			variants = append(variants, strings.ReplaceAll(full, "**/", ""))
		}

		pt := pattern{raw: r, root: filepath.FromSlash(staticRoot(full))}
		for _, v := range variants {
			g, err := glob.Compile(v, '/')
			if err != nil {
				return nil, fmt.Errorf("compile watch pattern %q: %w", r, err)
			}
			pt.globs = append(pt.globs, g)
		}
		p.list = append(p.list, pt)
	}
	return p, nil
}

// staticRoot returns the leading directories of pattern that contain no
// glob syntax.
func staticRoot(pattern string) string {
	segs := strings.Split(pattern, "/")
	var static []string
	for _, s := range segs[:len(segs)-1] {
		if strings.ContainsAny(s, "*?[{") {
			break
		}
		static = append(static, s)
	}
	root := strings.Join(static, "/")
	if root == "" && strings.HasPrefix(pattern, "/") {
		return "/"
	}
	if root == "" {
		return "."
	}
	return root
}

// Match reports whether path is covered by any pattern.
func (p *Patterns) Match(path string) bool {
	if p == nil {
		return false
	}
	path = filepath.ToSlash(filepath.Clean(path))
	for _, pt := range p.list {
		for _, g := range pt.globs {
			if g.Match(path) {
				return true
			}
		}
	}
	return false
}

// Roots returns the distinct directories that have to be watched, with
// roots nested inside another root removed.
func (p *Patterns) Roots() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var roots []string
	for _, pt := range p.list {
		if _, ok := seen[pt.root]; ok {
			continue
		}
		seen[pt.root] = struct{}{}
		roots = append(roots, pt.root)
	}
	sort.Strings(roots)

	var out []string
next:
	for _, r := range roots {
		for _, o := range out {
			if within(r, o) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Len returns the number of compiled patterns.
func (p *Patterns) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}
