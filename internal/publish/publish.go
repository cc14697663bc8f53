// Package publish uploads the distribution root to object storage.
package publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// Object is one file scheduled for upload.
type Object struct {
	Key         string `json:"key" yaml:"key"`
	Path        string `json:"path" yaml:"path"`
	Size        int64  `json:"size" yaml:"size"`
	ContentType string `json:"content_type" yaml:"content_type"`
}

// Publisher uploads every file below a root directory.
type Publisher struct {
	fs     afero.Fs
	store  Store
	prefix string
	logger logging.Logger
	dryRun bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithFs reads the root from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Publisher) { p.fs = fs }
}

// WithPrefix places every key below prefix.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) { p.prefix = strings.Trim(prefix, "/") }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// DryRun lists the objects without uploading them. The store may be nil.
func DryRun() Option {
	return func(p *Publisher) { p.dryRun = true }
}

// New creates a publisher writing to store.
func New(store Store, opts ...Option) *Publisher {
	p := &Publisher{fs: afero.NewOsFs(), store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("publish")
	return p
}

// Publish uploads every file below root and returns the objects in key
// order. It stops at the first failed upload.
func (p *Publisher) Publish(ctx context.Context, root string) ([]Object, error) {
	objects, err := p.collect(root)
	if err != nil {
		return nil, err
	}
	if p.dryRun {
		return objects, nil
	}
	if p.store == nil {
		return nil, fmt.Errorf("no store configured")
	}

	op := logging.StartOperation(p.logger, "publish")
	for _, obj := range objects {
		if err := p.upload(ctx, obj); err != nil {
			op.EndWithError(ctx, err, "key", obj.Key)
			return nil, err
		}
		p.logger.Debug(ctx, "Uploaded object", "key", obj.Key, "size", obj.Size)
	}
	op.End(ctx, "objects", len(objects))
	return objects, nil
}

func (p *Publisher) upload(ctx context.Context, obj Object) error {
	f, err := p.fs.Open(obj.Path)
	if err != nil {
		return pipelineerrors.NewIOError("READ_FAILED", "opening published file", err).WithPath(obj.Path)
	}
	defer f.Close()

	if err := p.store.Put(ctx, obj.Key, f, obj.Size, obj.ContentType); err != nil {
		return pipelineerrors.NewIOError("UPLOAD_FAILED", "uploading "+obj.Key, err).WithPath(obj.Path)
	}
	return nil
}

func (p *Publisher) collect(root string) ([]Object, error) {
	exists, err := afero.DirExists(p.fs, root)
	if err != nil || !exists {
		return nil, pipelineerrors.NewMissingInputError("publish", root, err)
	}

	var objects []Object
	err = afero.Walk(p.fs, root, func(full string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Key:         p.key(filepath.ToSlash(rel)),
			Path:        full,
			Size:        info.Size(),
			ContentType: ContentType(full),
		})
		return nil
	})
	if err != nil {
		return nil, pipelineerrors.NewIOError("WALK_FAILED", "listing "+root, err).WithPath(root)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (p *Publisher) key(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return path.Join(p.prefix, rel)
}

// ContentType returns the media type for name, falling back to
// application/octet-stream.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
