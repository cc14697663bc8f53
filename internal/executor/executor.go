// Package executor runs build plans.
//
// Sequential groups run strictly in order. Parallel groups start all of
// their members and complete when every member has reported. A transform
// error fails only its own task; a structural error stops the run from
// starting anything new while already running tasks finish.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/registry"
	"github.com/conneroisu/sitepipe/internal/sitedata"
	"github.com/conneroisu/sitepipe/internal/transform"
)

// Notifier receives transform failures as they happen.
type Notifier interface {
	NotifyFailure(task string, err error)
}

// Executor walks plans over a sealed registry.
type Executor struct {
	reg         *registry.Registry
	fs          afero.Fs
	logger      logging.Logger
	notifier    Notifier
	maxParallel int
	cacheSize   int
	cache       *inputCache
	metrics     metricsRecorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithFs sets the filesystem inputs are read from and outputs written to.
func WithFs(fs afero.Fs) Option {
	return func(e *Executor) { e.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithNotifier sets the receiver of transform failures.
func WithNotifier(n Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

// WithMaxParallel bounds the members of one parallel group that run at the
// same time. Zero means unbounded.
func WithMaxParallel(n int) Option {
	return func(e *Executor) { e.maxParallel = n }
}

// WithCacheSize sets the number of input files cached between runs.
func WithCacheSize(n int) Option {
	return func(e *Executor) { e.cacheSize = n }
}

// New creates an executor. Without WithFs it works on the OS filesystem.
func New(reg *registry.Registry, opts ...Option) (*Executor, error) {
	e := &Executor{
		reg:    reg,
		fs:     afero.NewOsFs(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("executor")

	cache, err := newInputCache(e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating input cache: %w", err)
	}
	e.cache = cache
	return e, nil
}

// Metrics returns a snapshot of the accumulated statistics.
func (e *Executor) Metrics() Metrics {
	m := e.metrics.snapshot()
	m.CacheHits = e.cache.hits.Load()
	m.CacheMisses = e.cache.misses.Load()
	return m
}

// run is the state of one Run call.
type run struct {
	exec *Executor
	ctx  context.Context

	aborted atomic.Bool

	findings *pipelineerrors.FindingCollector

	mutex   sync.Mutex
	status  map[string]Status
	results []TaskResult
	cause   error
}

// Run executes plan and reports every task that ran. It never cancels a
// task once started.
func (e *Executor) Run(ctx context.Context, plan *graph.Plan) *Report {
	start := time.Now()
	perf := logging.StartOperation(e.logger, "run")

	r := &run{
		exec:     e,
		ctx:      ctx,
		findings: pipelineerrors.NewFindingCollector(),
		status:   make(map[string]Status),
	}
	if !plan.Empty() {
		r.node(plan.Root)
	}

	report := &Report{
		Results:   r.ordered(plan),
		Findings:  r.findings.Findings(),
		Aborted:   r.aborted.Load(),
		Cause:     r.cause,
		Duration:  time.Since(start),
		collector: r.findings,
	}
	e.metrics.record(report)

	fields := []interface{}{
		"tasks", len(report.Results),
		"failed", len(report.Failed()),
		"skipped", len(report.Skipped()),
		"findings", len(report.Findings),
	}
	if report.Aborted {
		perf.EndWithError(ctx, report.Cause, fields...)
	} else {
		perf.End(ctx, fields...)
	}
	return report
}

func (r *run) node(n graph.Node) {
	switch n := n.(type) {
	case *graph.StepNode:
		r.step(n.Name)
	case *graph.SeqNode:
		for _, c := range n.Children {
			if r.aborted.Load() {
				return
			}
			r.node(c)
		}
	case *graph.ParNode:
		var g errgroup.Group
		if r.exec.maxParallel > 0 {
			g.SetLimit(r.exec.maxParallel)
		}
		for _, c := range n.Children {
			c := c
			g.Go(func() error {
				r.node(c)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (r *run) abort(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.cause == nil {
		r.cause = err
	}
	r.aborted.Store(true)
}

func (r *run) record(res TaskResult, findings []pipelineerrors.Finding) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.status[res.Name] = res.Status
	r.results = append(r.results, res)
	r.findings.Add(findings...)
}

// requirementFailed returns the first requirement that ran in this run and
// did not succeed. Requirements outside the plan count as satisfied.
func (r *run) requirementFailed(task *registry.Task) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, req := range task.Requires {
		if s, ran := r.status[req]; ran && s != StatusSucceeded {
			return req, true
		}
	}
	return "", false
}

func (r *run) ordered(plan *graph.Plan) []TaskResult {
	if plan == nil {
		return nil
	}
	position := make(map[string]int)
	for i, name := range plan.Tasks() {
		position[name] = i
	}
	out := append([]TaskResult(nil), r.results...)
	sort.SliceStable(out, func(i, j int) bool {
		return position[out[i].Name] < position[out[j].Name]
	})
	return out
}

func (r *run) step(name string) {
	if r.aborted.Load() {
		return
	}
	if err := r.ctx.Err(); err != nil {
		r.abort(err)
		return
	}

	e := r.exec
	logger := e.logger.With("task", name)
	start := time.Now()

	task, err := e.reg.Resolve(name)
	if err != nil {
		r.abort(err)
		r.record(TaskResult{Name: name, Status: StatusFailed, Err: err}, nil)
		return
	}

	if req, failed := r.requirementFailed(task); failed {
		err := pipelineerrors.NewRequirementError(name, req)
		logger.Warn(r.ctx, err, "Task skipped")
		r.record(TaskResult{Name: name, Status: StatusSkipped, Err: err}, nil)
		return
	}

	logger.Debug(r.ctx, "Task started")
	outputs, findings, err := e.execute(r.ctx, task)
	res := TaskResult{Name: name, Status: StatusSucceeded, Duration: time.Since(start), Outputs: outputs}

	for i := range findings {
		if findings[i].Task == "" {
			findings[i].Task = name
		}
	}

	switch {
	case err == nil:
		logger.Debug(r.ctx, "Task finished", "outputs", len(outputs), "duration_ms", res.Duration.Milliseconds())
	case pipelineerrors.IsStructural(err):
		res.Status = StatusFailed
		res.Err = err
		logger.Error(r.ctx, err, "Structural error, aborting run")
		r.abort(err)
	default:
		res.Status = StatusFailed
		res.Err = err
		logger.Error(r.ctx, err, "Task failed")
		if e.notifier != nil {
			e.notifier.NotifyFailure(name, err)
		}
	}

	r.record(res, findings)
}

// execute performs one task and returns the written artifact paths.
func (e *Executor) execute(ctx context.Context, task *registry.Task) ([]string, []pipelineerrors.Finding, error) {
	if task.Kind == registry.KindClean {
		return nil, nil, e.clean(task)
	}
	if task.Transform == nil {
		return nil, nil, pipelineerrors.NewStructuralError("NO_TRANSFORM", "task has no transform", nil).WithTask(task.Name)
	}

	files, err := e.resolve(task)
	if err != nil {
		return nil, nil, err
	}

	cfg := make(transform.Config, len(task.Config)+1)
	for k, v := range task.Config {
		cfg[k] = v
	}
	if len(task.Data) > 0 {
		data, err := sitedata.Load(e.fs, task.Data[0], task.Data[1:]...)
		if err != nil {
			var pe *pipelineerrors.PipelineError
			if pipelineerrors.IsStructural(err) && errors.As(err, &pe) {
				return nil, nil, pe.WithTask(task.Name)
			}
			return nil, nil, pipelineerrors.NewTransformError(task.Name, err)
		}
		cfg["data"] = map[string]any(data)
	}

	steps := append([]transform.Adapter{task.Transform}, task.Post...)
	result, err := transform.Apply(ctx, files, cfg, steps...)
	if err != nil {
		return nil, result.Findings, pipelineerrors.NewTransformError(task.Name, err)
	}

	written, err := e.write(task, result.Outputs)
	return written, result.Findings, err
}

func (e *Executor) clean(task *registry.Task) error {
	for _, root := range task.Cleans {
		if err := e.fs.RemoveAll(root); err != nil {
			return pipelineerrors.NewIOError("CLEAN_FAILED", "removing output tree", err).
				WithTask(task.Name).WithPath(root)
		}
	}
	return nil
}

// resolve expands the task's input globs relative to its base directory.
// Matches of each glob are sorted; across globs the first match wins.
func (e *Executor) resolve(task *registry.Task) ([]transform.File, error) {
	if task.Base == "" {
		return nil, nil
	}
	exists, err := afero.DirExists(e.fs, task.Base)
	if err != nil || !exists {
		return nil, pipelineerrors.NewMissingInputError(task.Name, task.Base, err)
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(e.fs, task.Base))
	seen := make(map[string]bool)
	var files []transform.File

	for _, pattern := range task.Inputs {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, pipelineerrors.NewStructuralError("BAD_GLOB",
				fmt.Sprintf("invalid input glob %q", pattern), err).WithTask(task.Name)
		}
		sort.Strings(matches)

		for _, rel := range matches {
			if seen[rel] {
				continue
			}
			seen[rel] = true

			full := filepath.Join(task.Base, filepath.FromSlash(rel))
			data, err := e.cache.read(e.fs, full)
			if err != nil {
				return nil, pipelineerrors.NewIOError("READ_FAILED", "reading input", err).
					WithTask(task.Name).WithPath(full)
			}
			files = append(files, transform.File{Path: rel, Data: data})
		}
	}
	return files, nil
}

// write stores outputs under the output directory and every mirror.
func (e *Executor) write(task *registry.Task, outputs []transform.File) ([]string, error) {
	written := make([]string, 0, len(outputs))
	for _, f := range outputs {
		clean := path.Clean(f.Path)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, pipelineerrors.NewTransformError(task.Name,
				fmt.Errorf("output %q escapes the output directory", f.Path))
		}
		written = append(written, clean)
	}

	for _, dir := range task.Outputs() {
		for i, f := range outputs {
			target := filepath.Join(dir, filepath.FromSlash(written[i]))
			if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, pipelineerrors.NewIOError("WRITE_FAILED", "creating output directory", err).
					WithTask(task.Name).WithPath(target)
			}
			if err := afero.WriteFile(e.fs, target, f.Data, 0o644); err != nil {
				return nil, pipelineerrors.NewIOError("WRITE_FAILED", "writing output", err).
					WithTask(task.Name).WithPath(target)
			}
		}
	}
	return written, nil
}
