package transform

import (
	"bytes"
	"context"
	"path"
	"strings"
)

// Rename inserts Suffix before the extension of every output,
// main.css becoming main.min.css.
type Rename struct {
	Suffix string
}

// Name returns the adapter name.
func (r Rename) Name() string { return "rename" }

// Invoke renames files.
func (r Rename) Invoke(_ context.Context, files []File, _ Config) (Result, error) {
	out := make([]File, 0, len(files))
	for _, f := range files {
		ext := path.Ext(f.Path)
		out = append(out, File{Path: strings.TrimSuffix(f.Path, ext) + r.Suffix + ext, Data: f.Data})
	}
	return Result{Outputs: out}, nil
}

// Replace substitutes every literal occurrence of Old with New in outputs
// whose extension is listed in Exts (all outputs when Exts is empty).
type Replace struct {
	Old  string
	New  string
	Exts []string
}

// Name returns the adapter name.
func (r Replace) Name() string { return "replace" }

// Invoke rewrites matching files.
func (r Replace) Invoke(_ context.Context, files []File, _ Config) (Result, error) {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if r.Old == "" || !r.applies(f.Path) {
			out = append(out, f)
			continue
		}
		out = append(out, File{Path: f.Path, Data: bytes.ReplaceAll(f.Data, []byte(r.Old), []byte(r.New))})
	}
	return Result{Outputs: out}, nil
}

func (r Replace) applies(p string) bool {
	if len(r.Exts) == 0 {
		return true
	}
	ext := path.Ext(p)
	for _, e := range r.Exts {
		if e == ext {
			return true
		}
	}
	return false
}
