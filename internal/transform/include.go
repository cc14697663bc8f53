package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// maxIncludeDepth bounds nested includes so a file including itself fails
// instead of recursing forever.
const maxIncludeDepth = 16

// includeDirective matches @@include('file') and @@include("file", {...}).
// The optional argument is a flat JSON object.
var includeDirective = regexp.MustCompile(`@@include\(\s*(?:'([^']+)'|"([^"]+)")\s*(?:,\s*(\{[^{}]*\}))?\s*\)`)

// expandIncludes replaces every @@include directive in doc with the content
// of the named file from sources. Names resolve from the template root.
// Inside an included file @@key is replaced by the value of key in the
// directive's argument object.
func expandIncludes(doc []byte, sources map[string][]byte) ([]byte, error) {
	return expand(doc, sources, nil, 0)
}

func expand(doc []byte, sources map[string][]byte, params map[string]string, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d", maxIncludeDepth)
	}
	doc = substitute(doc, params)

	matches := includeDirective.FindAllSubmatchIndex(doc, -1)
	if len(matches) == 0 {
		return doc, nil
	}

	var out bytes.Buffer
	last := 0
	for _, m := range matches {
		out.Write(doc[last:m[0]])
		last = m[1]

		name := group(doc, m, 1)
		if name == "" {
			name = group(doc, m, 2)
		}
		rel := path.Clean(strings.TrimPrefix(name, "/"))
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return nil, fmt.Errorf("include %q escapes the template root", name)
		}
		content, ok := sources[rel]
		if !ok {
			return nil, fmt.Errorf("include %q not found", name)
		}

		var args map[string]string
		if raw := group(doc, m, 3); raw != "" {
			parsed, err := parseIncludeArgs(raw)
			if err != nil {
				return nil, fmt.Errorf("include %q: %w", name, err)
			}
			args = parsed
		}

		included, err := expand(content, sources, args, depth+1)
		if err != nil {
			return nil, err
		}
		out.Write(included)
	}
	out.Write(doc[last:])
	return out.Bytes(), nil
}

func group(doc []byte, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return string(doc[m[2*n]:m[2*n+1]])
}

func parseIncludeArgs(raw string) (map[string]string, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	args := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			args[k] = s
			continue
		}
		args[k] = fmt.Sprint(v)
	}
	return args, nil
}

// substitute replaces @@key for every key in params, longest key first so
// @@title does not clobber @@titleSuffix.
func substitute(doc []byte, params map[string]string) []byte {
	if len(params) == 0 {
		return doc
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		doc = bytes.ReplaceAll(doc, []byte("@@"+k), []byte(params[k]))
	}
	return doc
}
