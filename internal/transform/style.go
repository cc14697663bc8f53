package transform

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

var importPattern = regexp.MustCompile(`@import\s+["']([^"']+)["']\s*;`)

// Style compiles every non-partial stylesheet into one .css output.
//
// @import statements naming a file from the input set are inlined, and
// glob imports such as @import "components/**/*.scss" expand to every
// matching input in path order. Imports of URLs or unknown files are left in
// place for the browser. The result is minified unless the "minify" option
// is false.
type Style struct{}

// Name returns the adapter name.
func (Style) Name() string { return "style" }

// Invoke compiles the stylesheets.
func (Style) Invoke(_ context.Context, files []File, cfg Config) (Result, error) {
	sources := index(files)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)

	out := make([]File, 0, len(files))
	for _, f := range files {
		if IsPartial(f.Path) {
			continue
		}
		compiled, err := inlineImports(f.Path, sources, paths, map[string]bool{})
		if err != nil {
			return Result{}, err
		}
		if minifyEnabled(cfg) {
			min, err := m.Bytes("text/css", compiled)
			if err != nil {
				return Result{}, fmt.Errorf("%s: %w", f.Path, err)
			}
			compiled = min
		}
		out = append(out, File{Path: ReplaceExt(f.Path, ".css"), Data: compiled})
	}
	SortFiles(out)
	return Result{Outputs: out}, nil
}

func minifyEnabled(cfg Config) bool {
	if v, ok := cfg["minify"].(bool); ok {
		return v
	}
	return true
}

func inlineImports(p string, sources map[string][]byte, paths []string, stack map[string]bool) ([]byte, error) {
	if stack[p] {
		return nil, fmt.Errorf("%s: circular @import", p)
	}
	stack[p] = true
	defer delete(stack, p)

	src := sources[p]
	dir := path.Dir(p)

	var firstErr error
	result := importPattern.ReplaceAllFunc(src, func(stmt []byte) []byte {
		if firstErr != nil {
			return stmt
		}
		target := string(importPattern.FindSubmatch(stmt)[1])
		if isRemote(target) {
			return stmt
		}

		matches := resolveImport(dir, target, sources, paths)
		if len(matches) == 0 {
			return stmt
		}

		var b strings.Builder
		for _, match := range matches {
			inlined, err := inlineImports(match, sources, paths, stack)
			if err != nil {
				firstErr = err
				return stmt
			}
			b.Write(inlined)
			b.WriteByte('\n')
		}
		return []byte(b.String())
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

func isRemote(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "//") ||
		strings.HasPrefix(target, "url(")
}

func resolveImport(dir, target string, sources map[string][]byte, paths []string) []string {
	joined := path.Clean(path.Join(dir, target))

	if strings.ContainsAny(target, "*?[{") {
		var matches []string
		for _, p := range paths {
			if ok, _ := doublestar.Match(joined, p); ok {
				matches = append(matches, p)
			}
		}
		return matches
	}

	base := path.Base(joined)
	parent := path.Dir(joined)
	candidates := []string{
		joined,
		joined + ".scss",
		joined + ".css",
		path.Join(parent, "_"+base),
		path.Join(parent, "_"+base+".scss"),
		path.Join(parent, "_"+base+".css"),
	}
	for _, c := range candidates {
		if _, ok := sources[c]; ok {
			return []string{c}
		}
	}
	return nil
}
