// Package transform wraps each external transformation of the pipeline
// (style compilation, script bundling, template rendering, markup
// validation) behind the Adapter interface.
//
// An adapter receives the files its task declared as inputs and returns the
// files to write. Adapters must not read anything beyond the files and
// configuration they are handed; the executor resolves globs, loads data
// documents and writes outputs.
package transform

import (
	"context"
	"path"
	"sort"
	"strings"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

// File is a path relative to a task base (inputs) or output directory
// (outputs), always slash separated, plus its content.
type File struct {
	Path string
	Data []byte
}

// Config carries per-task adapter options.
type Config map[string]any

// String returns the string option key or def.
func (c Config) String(key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Result is what an adapter produced.
type Result struct {
	Outputs  []File
	Findings []pipelineerrors.Finding
}

// Adapter is a pure input to output conversion.
type Adapter interface {
	Name() string
	Invoke(ctx context.Context, files []File, cfg Config) (Result, error)
}

// AdapterFunc lets a function act as an Adapter.
type AdapterFunc struct {
	ID string
	Fn func(ctx context.Context, files []File, cfg Config) (Result, error)
}

// Name returns the adapter name.
func (f AdapterFunc) Name() string { return f.ID }

// Invoke calls Fn.
func (f AdapterFunc) Invoke(ctx context.Context, files []File, cfg Config) (Result, error) {
	return f.Fn(ctx, files, cfg)
}

// Apply runs steps over files in order, each step receiving the previous
// step's outputs. Findings accumulate.
func Apply(ctx context.Context, files []File, cfg Config, steps ...Adapter) (Result, error) {
	result := Result{Outputs: files}
	for _, step := range steps {
		next, err := step.Invoke(ctx, result.Outputs, cfg)
		if err != nil {
			return Result{}, err
		}
		result.Outputs = next.Outputs
		result.Findings = append(result.Findings, next.Findings...)
	}
	return result, nil
}

// SortFiles orders files by path so adapters emit deterministic output.
func SortFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

// IsPartial reports whether p is a partial: a file or directory segment
// starting with an underscore. Partials are only reachable through imports
// and includes and never produce output of their own.
func IsPartial(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}

// ReplaceExt swaps the extension of p for ext (".css", ".html", ...).
func ReplaceExt(p, ext string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ext
}

func index(files []File) map[string][]byte {
	m := make(map[string][]byte, len(files))
	for _, f := range files {
		m[f.Path] = f.Data
	}
	return m
}
