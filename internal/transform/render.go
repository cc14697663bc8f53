package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Render executes every non-partial template of the input set against the
// data context found in the "data" option. Includes, extends and imports
// resolve against the input set only, so a render never reads the disk.
//
// .twig templates produce .html outputs; .html templates keep their name.
//
// With Includes set, @@include directives left in the rendered pages are
// expanded from the unrendered input set afterwards.
type Render struct {
	Includes bool
}

// Name returns the adapter name.
func (Render) Name() string { return "render" }

// Invoke renders the templates.
func (r Render) Invoke(_ context.Context, files []File, cfg Config) (Result, error) {
	sources := index(files)
	loader := &memoryLoader{files: sources}
	set := pongo2.NewSet("render", loader)

	data := pongo2.Context{}
	if d, ok := cfg["data"].(map[string]any); ok {
		for k, v := range d {
			data[k] = v
		}
	}

	out := make([]File, 0, len(files))
	for _, f := range files {
		if IsPartial(f.Path) {
			continue
		}

		tpl, err := set.FromFile(f.Path)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", f.Path, err)
		}
		rendered, err := tpl.ExecuteBytes(data)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", f.Path, err)
		}
		if r.Includes {
			rendered, err = expandIncludes(rendered, sources)
			if err != nil {
				return Result{}, fmt.Errorf("%s: %w", f.Path, err)
			}
		}

		name := f.Path
		if path.Ext(name) == ".twig" {
			name = ReplaceExt(name, ".html")
		}
		out = append(out, File{Path: name, Data: rendered})
	}
	SortFiles(out)
	return Result{Outputs: out}, nil
}

// memoryLoader implements pongo2.TemplateLoader over the input set.
// Names resolve from the template root first and then relative to the
// including template.
type memoryLoader struct {
	files map[string][]byte
}

func (l *memoryLoader) Abs(base, name string) string {
	rooted := path.Clean(strings.TrimPrefix(name, "/"))
	if _, ok := l.files[rooted]; ok || base == "" {
		return rooted
	}
	return path.Join(path.Dir(base), name)
}

func (l *memoryLoader) Get(p string) (io.Reader, error) {
	data, ok := l.files[p]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", p, os.ErrNotExist)
	}
	return bytes.NewReader(data), nil
}
