package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/transform"
)

func TestRegisterAndResolve(t *testing.T) {
	reg := New()

	styles := &Task{Name: "styles", Kind: KindStyle, Transform: transform.Style{}, Inputs: []string{"*.scss"}}
	require.NoError(t, reg.Register(styles))

	got, err := reg.Resolve("styles")
	require.NoError(t, err)
	assert.Equal(t, styles, got)
	assert.NotSame(t, styles, got)
	assert.True(t, reg.Has("styles"))
	assert.Equal(t, 1, reg.Count())
}

func TestRegisterDuplicate(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Task{Name: "html"}))

	err := reg.Register(&Task{Name: "html"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipelineerrors.ErrDuplicateTask)
	assert.True(t, pipelineerrors.IsStructural(err))
	assert.Equal(t, 1, reg.Count())
}

func TestResolveUnknown(t *testing.T) {
	_, err := New().Resolve("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipelineerrors.ErrUnknownTask)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegisterRejectsUnnamed(t *testing.T) {
	assert.Error(t, New().Register(&Task{}))
	assert.Error(t, New().Register(nil))
}

func TestSeal(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Task{Name: "clean"}))
	reg.Seal()

	assert.True(t, reg.Sealed())
	err := reg.Register(&Task{Name: "late"})
	assert.ErrorIs(t, err, pipelineerrors.ErrSealed)
}

func TestAllKeepsRegistrationOrder(t *testing.T) {
	reg := New()
	reg.MustRegister(
		&Task{Name: "clean", Kind: KindClean},
		&Task{Name: "styles", Kind: KindStyle},
		&Task{Name: "html", Kind: KindRender},
		&Task{Name: "html-dist", Kind: KindRender},
	)

	var names []string
	for _, task := range reg.All() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"clean", "styles", "html", "html-dist"}, names)

	renders := reg.ByKind(KindRender)
	require.Len(t, renders, 2)
	assert.Equal(t, "html", renders[0].Name)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := New()
	assert.Panics(t, func() {
		reg.MustRegister(&Task{Name: "a"}, &Task{Name: "a"})
	})
}

func TestConcurrentResolveAfterSeal(t *testing.T) {
	reg := New()
	reg.MustRegister(&Task{Name: "a"}, &Task{Name: "b"})
	reg.Seal()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Resolve("a")
			assert.NoError(t, err)
			assert.Len(t, reg.All(), 2)
		}()
	}
	wg.Wait()
}

func TestDeclarationsAreCopied(t *testing.T) {
	reg := New()
	declared := &Task{
		Name:     "html-dist",
		Kind:     KindRender,
		Inputs:   []string{"*.twig"},
		Requires: []string{"styles"},
		Config:   transform.Config{"minify": true},
	}
	require.NoError(t, reg.Register(declared))
	reg.Seal()

	declared.Inputs[0] = "changed.twig"
	declared.Requires = append(declared.Requires, "scripts")

	got, err := reg.Resolve("html-dist")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.twig"}, got.Inputs)
	assert.Equal(t, []string{"styles"}, got.Requires)

	got.Inputs[0] = "other.twig"
	got.Config["minify"] = false
	got.Requires = nil

	again, err := reg.Resolve("html-dist")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.twig"}, again.Inputs)
	assert.Equal(t, []string{"styles"}, again.Requires)
	assert.Equal(t, true, again.Config["minify"])

	reg.All()[0].Inputs[0] = "all.twig"
	assert.Equal(t, []string{"*.twig"}, reg.ByKind(KindRender)[0].Inputs)
}

func TestTaskWatchGlobsAndOutputs(t *testing.T) {
	task := &Task{Inputs: []string{"*.scss"}, OutputDir: "public/css", Mirrors: []string{"dist/css"}}
	assert.Equal(t, []string{"*.scss"}, task.WatchGlobs())
	assert.Equal(t, []string{"public/css", "dist/css"}, task.Outputs())

	task.Watch = []string{"**/*.scss"}
	assert.Equal(t, []string{"**/*.scss"}, task.WatchGlobs())
}
