package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/executor"
	"github.com/conneroisu/sitepipe/internal/logging"
)

const layoutTemplate = `<!DOCTYPE html><html lang="en"><head><title>{{ site.title }}</title></head>` +
	`<body>{% block body %}{% endblock %}</body></html>`

// writeSite lays out the default source tree in a temporary directory and
// makes it the working directory.
func writeSite(t *testing.T, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/images/logo.png":        "PNG",
		"src/styles/main.scss":       "body { color: red; }",
		"src/scripts/app.js":         "var app = 1;",
		"src/files/terms.txt":        "terms",
		"src/templates/_layout.twig": layoutTemplate,
		"src/templates/index.twig":   `{% extends "_layout.twig" %}{% block body %}<p>{{ site.url }}</p>{% endblock %}`,
		"src/data/data.json":         `{"site": {"title": "Local", "url": "http://localhost:8000"}}`,
		"src/data/data-build.json":   `{"site": {"url": "https://example.com"}}`,
	}
	for name, content := range extra {
		files[name] = content
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	t.Chdir(dir)
	return dir
}

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	cfgFile = ""
	buildClean = true
	buildFormat = formatTable
	validateFormat = formatTable
	publishFormat = formatTable
	publishDryRun = false
	graphChanged = nil
	graphValidation = false
	versionFormat = "text"
	versionShort = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir := writeSite(t, nil)

	out, err := execute(t, "build", "--format", "json")
	require.NoError(t, err)

	var report reportView
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Aborted)
	assert.Len(t, report.Results, 7)
	for _, res := range report.Results {
		assert.Equal(t, "succeeded", res.Status, res.Name)
	}

	assert.FileExists(t, filepath.Join(dir, "public/css/main.min.css"))
	assert.FileExists(t, filepath.Join(dir, "dist/js/app.min.js"))
	assert.FileExists(t, filepath.Join(dir, "dist/index.html"))
}

func TestBuildWithoutCleanKeepsStaleFiles(t *testing.T) {
	dir := writeSite(t, map[string]string{"public/stale.txt": "old"})

	_, err := execute(t, "build", "--clean=false")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "public/stale.txt"))

	_, err = execute(t, "build")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "public/stale.txt"))
}

func TestBuildTransformFailureExitsZero(t *testing.T) {
	writeSite(t, map[string]string{"src/styles/broken.scss": `@import "broken";`})

	out, err := execute(t, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed")
}

func TestBuildAbortsOnMissingSource(t *testing.T) {
	dir := writeSite(t, nil)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "src/files")))

	_, err := execute(t, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build aborted")
}

func TestValidateCommand(t *testing.T) {
	t.Run("clean markup passes", func(t *testing.T) {
		writeSite(t, nil)
		_, err := execute(t, "validate")
		require.NoError(t, err)
	})

	t.Run("error findings fail", func(t *testing.T) {
		writeSite(t, map[string]string{
			"src/templates/gallery.twig": `{% extends "_layout.twig" %}{% block body %}<img src="a.png">{% endblock %}`,
		})
		out, err := execute(t, "validate", "--format", "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed with 1 errors")
		assert.Contains(t, out, "img-alt")
	})
}

func TestGraphCommand(t *testing.T) {
	writeSite(t, nil)

	out, err := execute(t, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "├── clean\n")
	assert.Contains(t, out, "    └── html-dist\n")

	out, err = execute(t, "graph", "--changed", "src/data/data.json")
	require.NoError(t, err)
	// html-dist requires the stylesheets it links.
	assert.Equal(t, "seq\n├── styles\n└── par\n    ├── html\n    └── html-dist\n", out)

	out, err = execute(t, "graph", "--validation")
	require.NoError(t, err)
	assert.Contains(t, out, "└── validate\n")
}

func TestPublishDryRun(t *testing.T) {
	writeSite(t, nil)

	out, err := execute(t, "publish", "--dry-run", "--format", "json")
	require.NoError(t, err)

	var objects []struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.Contains(t, keys, "index.html")
	assert.Contains(t, keys, "css/main.min.css")
}

func TestPublishRequiresStore(t *testing.T) {
	writeSite(t, nil)

	_, err := execute(t, "publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish.endpoint")
}

func TestFormatFlagRejectsUnknown(t *testing.T) {
	writeSite(t, nil)

	_, err := execute(t, "build", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "platform")
}

func TestLogReportIncludesTotals(t *testing.T) {
	var buf bytes.Buffer
	a := &app{logger: logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelInfo, Output: &buf})}

	report := &executor.Report{Results: []executor.TaskResult{
		{Name: "styles", Status: executor.StatusSucceeded},
	}}
	logReport(context.Background(), a, report, executor.Metrics{Runs: 3, CacheHits: 3, CacheMisses: 1})

	out := buf.String()
	assert.Contains(t, out, "Build finished")
	assert.Contains(t, out, "runs=3")
	assert.Contains(t, out, "75.0%")
}
