package registry

import (
	"maps"
	"slices"

	"github.com/conneroisu/sitepipe/internal/transform"
)

// Kind classifies what a task does.
type Kind string

const (
	KindClean    Kind = "clean"
	KindCopy     Kind = "copy"
	KindStyle    Kind = "style"
	KindScript   Kind = "script"
	KindRender   Kind = "render"
	KindValidate Kind = "validate"
	KindExec     Kind = "exec"
)

// Task is the declaration of one named unit of work. Inputs and outputs are
// fixed at registration; nothing about a task is discovered at run time.
type Task struct {
	Name string
	Kind Kind

	// Transform converts the resolved inputs into outputs. Clean tasks
	// have none.
	Transform transform.Adapter

	// Inputs are ordered globs relative to Base. The order of the globs is
	// the order in which matches are handed to Transform.
	Inputs []string
	// Watch globs select the changes that rerun the task. Empty means
	// Inputs.
	Watch []string
	Base  string

	OutputDir string
	// Mirrors receive the same artifacts as OutputDir.
	Mirrors []string

	// Post steps run over the transform outputs in declared order.
	Post   []transform.Adapter
	Config transform.Config

	// Data lists the data documents of a render task, base first.
	Data []string

	// Requires names tasks whose outputs this task consumes.
	Requires []string

	// Cleans lists the output subtrees a clean task removes.
	Cleans []string
}

// WatchGlobs returns the globs that select changes for the task.
func (t *Task) WatchGlobs() []string {
	if len(t.Watch) > 0 {
		return t.Watch
	}
	return t.Inputs
}

// Outputs returns OutputDir followed by every mirror.
func (t *Task) Outputs() []string {
	if t.OutputDir == "" {
		return t.Mirrors
	}
	return append([]string{t.OutputDir}, t.Mirrors...)
}

// clone returns a copy of t that shares no slices or maps with it. The
// adapters themselves are shared.
func (t *Task) clone() *Task {
	c := *t
	c.Inputs = slices.Clone(t.Inputs)
	c.Watch = slices.Clone(t.Watch)
	c.Mirrors = slices.Clone(t.Mirrors)
	c.Post = slices.Clone(t.Post)
	c.Config = maps.Clone(t.Config)
	c.Data = slices.Clone(t.Data)
	c.Requires = slices.Clone(t.Requires)
	c.Cleans = slices.Clone(t.Cleans)
	return &c
}
