package transform

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

// Script concatenates its inputs, in the order the task declared them, into
// a single bundle named by the "bundle" option (default app.js) and minifies
// it unless the "minify" option is false.
type Script struct{}

// Name returns the adapter name.
func (Script) Name() string { return "script" }

// Invoke bundles the scripts.
func (Script) Invoke(_ context.Context, files []File, cfg Config) (Result, error) {
	if len(files) == 0 {
		return Result{}, nil
	}

	var bundle bytes.Buffer
	for i, f := range files {
		if i > 0 {
			bundle.WriteString("\n;\n")
		}
		bundle.Write(f.Data)
	}

	data := bundle.Bytes()
	if minifyEnabled(cfg) {
		m := minify.New()
		m.AddFunc("application/javascript", js.Minify)
		min, err := m.Bytes("application/javascript", data)
		if err != nil {
			return Result{}, fmt.Errorf("minifying bundle: %w", err)
		}
		data = min
	}

	return Result{Outputs: []File{{Path: cfg.String("bundle", "app.js"), Data: data}}}, nil
}
