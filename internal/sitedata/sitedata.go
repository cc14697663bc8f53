// Package sitedata loads the JSON documents handed to the render transform
// and merges them into a single data context.
package sitedata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

// Context is the merged template data.
type Context map[string]any

// Load reads the base document and applies each override document on top of
// it. The base document is mandatory; a missing override is skipped. Every
// document must hold a JSON object at its root.
func Load(fs afero.Fs, base string, overrides ...string) (Context, error) {
	data, err := readDocument(fs, base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pipelineerrors.NewMissingInputError("", base, err)
		}
		return nil, err
	}

	for _, path := range overrides {
		if path == "" {
			continue
		}
		override, err := readDocument(fs, path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		data = Merge(data, override)
	}

	return data, nil
}

func readDocument(fs afero.Fs, path string) (Context, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parsing %s: root must be a JSON object", path)
	}
	return Context(doc), nil
}

// Merge returns a deep copy of base with override applied on top. Nested
// objects merge key by key; on any other collision, arrays included, the
// override value wins. Neither argument is modified.
func Merge(base, override map[string]any) Context {
	out := make(Context, len(base)+len(override))
	for k, v := range base {
		out[k] = clone(v)
	}
	for k, v := range override {
		existing, ok := out[k].(map[string]any)
		incoming, isMap := asMap(v)
		if ok && isMap {
			out[k] = map[string]any(Merge(existing, incoming))
			continue
		}
		out[k] = clone(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Context:
		return m, true
	default:
		return nil, false
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Merge(t, nil))
	case Context:
		return map[string]any(Merge(t, nil))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = clone(item)
		}
		return out
	default:
		return v
	}
}
