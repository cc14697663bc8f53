package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/registry"
	"github.com/conneroisu/sitepipe/internal/transform"
)

func siteGraph(t *testing.T) *graph.Graph {
	t.Helper()
	reg := registry.New()
	reg.MustRegister(
		&registry.Task{Name: "clean", Kind: registry.KindClean, Cleans: []string{"/site/public"}},
		&registry.Task{Name: "images", Kind: registry.KindCopy, Transform: transform.Copy{},
			Base: "/site/src/images", Inputs: []string{"**/*.*"}},
		&registry.Task{Name: "styles", Kind: registry.KindStyle, Transform: transform.Style{},
			Base: "/site/src/styles", Inputs: []string{"*.scss"}, Watch: []string{"**/*.scss"}},
		&registry.Task{Name: "scripts", Kind: registry.KindScript, Transform: transform.Script{},
			Base: "/site/src/scripts", Inputs: []string{"vendor/**/*.js", "*.js"}},
		&registry.Task{Name: "files", Kind: registry.KindCopy, Transform: transform.Copy{},
			Base: "/site/src/files", Inputs: []string{"**/*.*"}},
		&registry.Task{Name: "html", Kind: registry.KindRender, Transform: transform.Render{},
			Base: "/site/src/templates", Inputs: []string{"**/*.twig"}},
		&registry.Task{Name: "html-dist", Kind: registry.KindRender, Transform: transform.Render{},
			Base: "/site/src/templates", Inputs: []string{"**/*.twig"}},
	)
	reg.Seal()

	g, err := graph.Compose(reg, graph.Seq(
		graph.Step("clean"),
		graph.Par(graph.Step("images"), graph.Step("styles"), graph.Step("scripts"), graph.Step("files")),
		graph.Par(graph.Step("html"), graph.Step("html-dist")),
	))
	require.NoError(t, err)
	return g
}

var dataTrigger = Trigger{
	Base:     "/site/src/data",
	Patterns: []string{"data.json", "data-build.json"},
	Tasks:    []string{"html", "html-dist"},
}

func TestMapperSelectsNarrowestTasks(t *testing.T) {
	m, err := NewMapper(siteGraph(t), dataTrigger)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		paths    []string
		expected []string
	}{
		{"stylesheet", []string{"/site/src/styles/main.scss"}, []string{"styles"}},
		{"nested partial via watch glob", []string{"/site/src/styles/components/_card.scss"}, []string{"styles"}},
		{"vendor script", []string{"/site/src/scripts/vendor/jquery.js"}, []string{"scripts"}},
		{"template", []string{"/site/src/templates/_layouts/base.twig"}, []string{"html", "html-dist"}},
		{"data overrides", []string{"/site/src/data/data-build.json"}, []string{"html", "html-dist"}},
		{"unrelated data file", []string{"/site/src/data/notes.txt"}, nil},
		{"outside every base", []string{"/site/README.md"}, nil},
		{"merged change set", []string{"/site/src/files/a.pdf", "/site/src/images/b.png"}, []string{"images", "files"}},
		{"non-matching extension", []string{"/site/src/styles/readme.md"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var events []ChangeEvent
			for _, p := range tc.paths {
				events = append(events, change(p))
			}
			assert.Equal(t, tc.expected, nilIfEmpty(m.Map(events)))
		})
	}
}

func TestMapperNeverSelectsClean(t *testing.T) {
	m, err := NewMapper(siteGraph(t))
	require.NoError(t, err)
	assert.Empty(t, m.Map([]ChangeEvent{change("/site/public/index.html")}))
}

func TestMapperIgnoresTriggerTasksOutsideGraph(t *testing.T) {
	m, err := NewMapper(siteGraph(t), Trigger{Base: "/site/dist", Patterns: []string{"*.html"}, Tasks: []string{"validate"}})
	require.NoError(t, err)
	assert.Empty(t, m.Map([]ChangeEvent{change("/site/dist/index.html")}))
}

func TestMapperRoots(t *testing.T) {
	m, err := NewMapper(siteGraph(t), dataTrigger)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/site/src/images",
		"/site/src/styles",
		"/site/src/scripts",
		"/site/src/files",
		"/site/src/templates",
		"/site/src/data",
	}, m.Roots())
}

func TestMapperRejectsInvalidGlob(t *testing.T) {
	_, err := NewMapper(siteGraph(t), Trigger{Base: "/site", Patterns: []string{"[unclosed"}, Tasks: []string{"html"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestInducedPlanFromMappedChange(t *testing.T) {
	g := siteGraph(t)
	m, err := NewMapper(g, dataTrigger)
	require.NoError(t, err)

	plan, err := g.Induced(m.Map([]ChangeEvent{change("/site/src/styles/main.scss")}))
	require.NoError(t, err)
	assert.Equal(t, []string{"styles"}, plan.Tasks())
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
