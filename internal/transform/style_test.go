package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleInlinesImportsAndSkipsPartials(t *testing.T) {
	files := []File{
		{Path: "_variables.scss", Data: []byte(".muted { color: gray; }")},
		{Path: "components/_button.scss", Data: []byte(".btn { padding: 0; }")},
		{Path: "components/_card.scss", Data: []byte(".card { margin: 0; }")},
		{Path: "main.scss", Data: []byte(`@import "variables";
@import "components/**/*.scss";
@import "https://fonts.example.com/inter.css";
body { color: red; }`)},
	}

	result, err := Style{}.Invoke(context.Background(), files, Config{"minify": false})
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)

	out := result.Outputs[0]
	assert.Equal(t, "main.css", out.Path)
	css := string(out.Data)
	assert.Contains(t, css, ".muted { color: gray; }")
	assert.Contains(t, css, ".btn { padding: 0; }")
	assert.Contains(t, css, ".card { margin: 0; }")
	assert.Contains(t, css, `@import "https://fonts.example.com/inter.css";`)
	assert.Less(t, strings.Index(css, ".btn"), strings.Index(css, ".card"))
}

func TestStyleMinifies(t *testing.T) {
	files := []File{{Path: "main.css", Data: []byte("body {\n  color: red;\n}\n")}}

	result, err := Style{}.Invoke(context.Background(), files, nil)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, "body{color:red}", string(result.Outputs[0].Data))
}

func TestStyleDetectsCircularImport(t *testing.T) {
	files := []File{
		{Path: "a.scss", Data: []byte(`@import "b";`)},
		{Path: "b.scss", Data: []byte(`@import "a";`)},
	}

	_, err := Style{}.Invoke(context.Background(), files, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular @import")
}

func TestStyleIsDeterministic(t *testing.T) {
	files := []File{
		{Path: "b.scss", Data: []byte("b { x: 1 }")},
		{Path: "a.scss", Data: []byte("a { x: 1 }")},
	}

	first, err := Style{}.Invoke(context.Background(), files, nil)
	require.NoError(t, err)
	second, err := Style{}.Invoke(context.Background(), files, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "a.css", first.Outputs[0].Path)
}
