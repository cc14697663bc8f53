// Package site declares the tasks of a static site from its configuration
// and composes them into the build graph.
//
// The composition is
//
//	clean -> (images | styles | scripts | files) -> (html | html-dist)
//
// Assets are written to the preview root and mirrored into the
// distribution root. html renders the templates with the site data into
// the preview root and expands @@include directives; html-dist renders them with the site data merged with
// the build overrides into the distribution root. The validate task checks
// the rendered distribution HTML and only belongs to the validation graph.
package site

import (
	"fmt"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/registry"
	"github.com/conneroisu/sitepipe/internal/transform"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

// Task names.
const (
	TaskClean    = "clean"
	TaskImages   = "images"
	TaskStyles   = "styles"
	TaskScripts  = "scripts"
	TaskFiles    = "files"
	TaskHTML     = "html"
	TaskHTMLDist = "html-dist"
	TaskValidate = "validate"
)

// Site holds the sealed registry and the graphs built from one
// configuration.
type Site struct {
	Config   *config.Config
	Registry *registry.Registry

	// Graph is the build graph used by build, watch and publish.
	Graph *graph.Graph
	// Validation is the build graph followed by the validate task.
	Validation *graph.Graph
}

// New declares every task of cfg, composes and validates both graphs.
func New(cfg *config.Config) (*Site, error) {
	reg := registry.New()
	tasks, err := declare(cfg)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	reg.Seal()

	build, err := graph.Compose(reg, composition())
	if err != nil {
		return nil, fmt.Errorf("composing build graph: %w", err)
	}
	if err := build.Validate(); err != nil {
		return nil, err
	}

	validation, err := graph.Compose(reg, graph.Seq(composition(), graph.Step(TaskValidate)))
	if err != nil {
		return nil, fmt.Errorf("composing validation graph: %w", err)
	}
	if err := validation.Validate(); err != nil {
		return nil, err
	}

	return &Site{Config: cfg, Registry: reg, Graph: build, Validation: validation}, nil
}

func composition() graph.Node {
	return graph.Seq(
		graph.Step(TaskClean),
		graph.Par(
			graph.Step(TaskImages),
			graph.Step(TaskStyles),
			graph.Step(TaskScripts),
			graph.Step(TaskFiles),
		),
		graph.Par(graph.Step(TaskHTML), graph.Step(TaskHTMLDist)),
	)
}

func declare(cfg *config.Config) ([]*registry.Task, error) {
	public := filepath.Clean(cfg.Output.Public)
	dist := filepath.Clean(cfg.Output.Dist)
	paths := cfg.Paths

	asset := func(name string, kind registry.Kind, a config.AssetPaths, adapter transform.Adapter) *registry.Task {
		return &registry.Task{
			Name:      name,
			Kind:      kind,
			Transform: adapter,
			Inputs:    a.Files,
			Watch:     a.Watch,
			Base:      filepath.Clean(a.Root),
			OutputDir: filepath.Join(public, a.Dest),
			Mirrors:   []string{filepath.Join(dist, a.Dest)},
		}
	}

	styles := asset(TaskStyles, registry.KindStyle, paths.Styles, transform.Style{})
	if paths.Styles.Command != "" {
		exec, err := transform.NewExec(paths.Styles.Command, ".css")
		if err != nil {
			return nil, fmt.Errorf("paths.styles.command: %w", err)
		}
		styles.Kind, styles.Transform = registry.KindExec, exec
	}
	styles.Post = []transform.Adapter{transform.Rename{Suffix: cfg.Build.MinSuffix}}

	scripts := asset(TaskScripts, registry.KindScript, paths.Scripts, transform.Script{})
	scripts.Config = transform.Config{"bundle": cfg.Build.ScriptBundle}
	if paths.Scripts.Command != "" {
		exec, err := transform.NewExec(paths.Scripts.Command, ".js")
		if err != nil {
			return nil, fmt.Errorf("paths.scripts.command: %w", err)
		}
		// The command minifies the bundle the script adapter produced.
		scripts.Post = []transform.Adapter{exec}
		scripts.Config["minify"] = false
	}
	scripts.Post = append(scripts.Post, transform.Rename{Suffix: cfg.Build.MinSuffix})

	templates := paths.Templates
	html := &registry.Task{
		Name:      TaskHTML,
		Kind:      registry.KindRender,
		Transform: transform.Render{Includes: cfg.Build.FileInclude},
		Inputs:    templates.Files,
		Watch:     templates.Watch,
		Base:      filepath.Clean(templates.Root),
		OutputDir: filepath.Join(public, templates.Dest),
		Data:      []string{cfg.Data.Site},
	}

	htmlDist := &registry.Task{
		Name:      TaskHTMLDist,
		Kind:      registry.KindRender,
		Transform: transform.Render{},
		Inputs:    templates.Files,
		Watch:     templates.Watch,
		Base:      filepath.Clean(templates.Root),
		OutputDir: filepath.Join(dist, templates.Dest),
		Data:      dataDocuments(cfg.Data),
		Requires:  []string{TaskStyles},
	}
	if cfg.Build.StripAttribute != "" {
		htmlDist.Post = []transform.Adapter{
			transform.Replace{Old: cfg.Build.StripAttribute, Exts: []string{".html"}},
		}
	}

	return []*registry.Task{
		{Name: TaskClean, Kind: registry.KindClean, Cleans: []string{public, dist}},
		asset(TaskImages, registry.KindCopy, paths.Images, transform.Copy{}),
		styles,
		scripts,
		asset(TaskFiles, registry.KindCopy, paths.Files, transform.Copy{}),
		html,
		htmlDist,
		{
			Name:      TaskValidate,
			Kind:      registry.KindValidate,
			Transform: transform.Validate{},
			Inputs:    cfg.Validate.Files,
			Base:      filepath.Join(dist, templates.Dest),
			Requires:  []string{TaskHTMLDist},
		},
	}, nil
}

func dataDocuments(d config.DataConfig) []string {
	if d.Build == "" {
		return []string{d.Site}
	}
	return []string{d.Site, d.Build}
}

// Triggers returns the change edges that task globs do not express: a
// change to either data document reruns every render task, and a
// stylesheet change rerenders the preview pages.
func (s *Site) Triggers() []watcher.Trigger {
	var renders []string
	for _, t := range s.Registry.ByKind(registry.KindRender) {
		renders = append(renders, t.Name)
	}

	var triggers []watcher.Trigger
	for _, doc := range dataDocuments(s.Config.Data) {
		triggers = append(triggers, watcher.Trigger{
			Base:     filepath.Dir(doc),
			Patterns: []string{filepath.ToSlash(filepath.Base(doc))},
			Tasks:    renders,
		})
	}

	styles := s.Config.Paths.Styles
	watch := styles.Watch
	if len(watch) == 0 {
		watch = styles.Files
	}
	triggers = append(triggers, watcher.Trigger{
		Base:     filepath.Clean(styles.Root),
		Patterns: watch,
		Tasks:    []string{TaskHTML},
	})
	return triggers
}

// Mapper maps changes to the tasks of the build graph.
func (s *Site) Mapper() (*watcher.Mapper, error) {
	return watcher.NewMapper(s.Graph, s.Triggers()...)
}

// BuildPlan returns the full build plan, without the clean step when clean
// is false.
func (s *Site) BuildPlan(clean bool) (*graph.Plan, error) {
	if clean {
		return s.Graph.FullPlan(), nil
	}
	var names []string
	for _, name := range s.Graph.Tasks() {
		if name != TaskClean {
			names = append(names, name)
		}
	}
	return s.Graph.Induced(names)
}

// ValidationPlan returns the full build followed by validation.
func (s *Site) ValidationPlan() *graph.Plan {
	return s.Validation.FullPlan()
}
