package watcher

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/registry"
)

// Trigger reruns Tasks when a path below Base matches one of Patterns,
// whether or not the tasks' own globs match it. Data documents reach the
// render tasks this way.
type Trigger struct {
	Base     string
	Patterns []string
	Tasks    []string
}

type watchEntry struct {
	base  string
	globs []string
	tasks []string
}

// Mapper maps changed paths to the tasks of a graph.
type Mapper struct {
	entries []watchEntry
	order   map[string]int
}

// NewMapper indexes the watch globs of every task composed in g plus the
// given triggers. Tasks without a base directory are never selected by a
// glob.
func NewMapper(g *graph.Graph, triggers ...Trigger) (*Mapper, error) {
	m := &Mapper{order: make(map[string]int)}

	for i, name := range g.Tasks() {
		m.order[name] = i
		task, err := g.Registry().Resolve(name)
		if err != nil {
			return nil, err
		}
		if task.Base == "" || task.Kind == registry.KindClean {
			continue
		}
		m.entries = append(m.entries, watchEntry{
			base:  absPath(task.Base),
			globs: task.WatchGlobs(),
			tasks: []string{name},
		})
	}

	for _, t := range triggers {
		m.entries = append(m.entries, watchEntry{
			base:  absPath(t.Base),
			globs: t.Patterns,
			tasks: t.Tasks,
		})
	}

	for _, e := range m.entries {
		for _, glob := range e.globs {
			if !doublestar.ValidatePattern(glob) {
				return nil, &InvalidGlobError{Glob: glob}
			}
		}
	}

	return m, nil
}

// InvalidGlobError reports a malformed watch glob.
type InvalidGlobError struct {
	Glob string
}

func (e *InvalidGlobError) Error() string { return "invalid watch glob " + e.Glob }

// Roots returns the directories that must be watched, deduplicated.
func (m *Mapper) Roots() []string {
	seen := make(map[string]bool)
	var roots []string
	for _, e := range m.entries {
		if !seen[e.base] {
			seen[e.base] = true
			roots = append(roots, e.base)
		}
	}
	return roots
}

// Map returns the tasks selected by events in composition order. Tasks
// named by triggers but absent from the graph are ignored.
func (m *Mapper) Map(events []ChangeEvent) []string {
	selected := make(map[string]bool)
	for _, ev := range events {
		path := absPath(ev.Path)
		for _, e := range m.entries {
			if e.matches(path) {
				for _, name := range e.tasks {
					if _, ok := m.order[name]; ok {
						selected[name] = true
					}
				}
			}
		}
	}

	out := make([]string, len(m.order))
	n := 0
	for name := range selected {
		out[m.order[name]] = name
		n++
	}
	names := make([]string, 0, n)
	for _, name := range out {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (e watchEntry) matches(path string) bool {
	rel, err := filepath.Rel(e.base, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, glob := range e.globs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
	}
	return false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
