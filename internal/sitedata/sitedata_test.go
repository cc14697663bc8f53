package sitedata

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

func TestMergeRightBiased(t *testing.T) {
	base := map[string]any{
		"title": "Preview",
		"site": map[string]any{
			"url":   "http://localhost:8000",
			"theme": "light",
		},
		"tags": []any{"a", "b"},
	}
	override := map[string]any{
		"title": "Production",
		"site": map[string]any{
			"url": "https://example.com",
		},
		"tags": []any{"c"},
	}

	merged := Merge(base, override)

	assert.Equal(t, "Production", merged["title"])
	site := merged["site"].(map[string]any)
	assert.Equal(t, "https://example.com", site["url"])
	assert.Equal(t, "light", site["theme"])
	assert.Equal(t, []any{"c"}, merged["tags"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"site": map[string]any{"url": "a"}}
	override := map[string]any{"site": map[string]any{"url": "b"}}

	merged := Merge(base, override)
	merged["site"].(map[string]any)["extra"] = true

	assert.Equal(t, "a", base["site"].(map[string]any)["url"])
	assert.NotContains(t, base["site"].(map[string]any), "extra")
	assert.NotContains(t, override["site"].(map[string]any), "extra")
}

func TestMergeScalarReplacesObject(t *testing.T) {
	merged := Merge(
		map[string]any{"nav": map[string]any{"home": "/"}},
		map[string]any{"nav": false},
	)
	assert.Equal(t, false, merged["nav"])
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "src/data/data.json",
		[]byte(`{"title":"Site","env":{"name":"dev","debug":true}}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "src/data/data-build.json",
		[]byte(`{"env":{"name":"prod"}}`), 0o644))

	t.Run("base only", func(t *testing.T) {
		ctx, err := Load(fs, "src/data/data.json")
		require.NoError(t, err)
		assert.Equal(t, "dev", ctx["env"].(map[string]any)["name"])
	})

	t.Run("with overrides", func(t *testing.T) {
		ctx, err := Load(fs, "src/data/data.json", "src/data/data-build.json")
		require.NoError(t, err)
		env := ctx["env"].(map[string]any)
		assert.Equal(t, "prod", env["name"])
		assert.Equal(t, true, env["debug"])
		assert.Equal(t, "Site", ctx["title"])
	})

	t.Run("missing override is skipped", func(t *testing.T) {
		ctx, err := Load(fs, "src/data/data.json", "src/data/missing.json")
		require.NoError(t, err)
		assert.Equal(t, "Site", ctx["title"])
	})

	t.Run("missing base is structural", func(t *testing.T) {
		_, err := Load(fs, "src/data/nope.json")
		require.Error(t, err)
		assert.True(t, pipelineerrors.IsStructural(err))
		assert.ErrorIs(t, err, pipelineerrors.ErrMissingInput)
	})

	t.Run("invalid json", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"a":`), 0o644))
		_, err := Load(fs, "bad.json")
		require.Error(t, err)
		assert.False(t, pipelineerrors.IsStructural(err))
	})

	t.Run("non-object root", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "list.json", []byte(`null`), 0o644))
		_, err := Load(fs, "list.json")
		assert.Error(t, err)
	})
}
