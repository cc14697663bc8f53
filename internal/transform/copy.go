package transform

import "context"

// Copy emits every input unchanged. Used for images and plain files.
type Copy struct{}

// Name returns the adapter name.
func (Copy) Name() string { return "copy" }

// Invoke returns the inputs as outputs.
func (Copy) Invoke(_ context.Context, files []File, _ Config) (Result, error) {
	out := make([]File, len(files))
	copy(out, files)
	return Result{Outputs: out}, nil
}
