package executor

import (
	"time"

	pipelineerrors "github.com/conneroisu/sitepipe/internal/errors"
)

// Status is the outcome of one task in a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// TaskResult records one executed task. Outputs lists the written artifact
// paths relative to the task's output directory.
type TaskResult struct {
	Name     string        `json:"name" yaml:"name"`
	Status   Status        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
	Outputs  []string      `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Error returns the message of Err, or "".
func (r TaskResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report is the outcome of one plan run. Results follow plan order; tasks
// that never started because the run aborted have no result.
type Report struct {
	Results  []TaskResult             `json:"results" yaml:"results"`
	Findings []pipelineerrors.Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
	Aborted  bool                     `json:"aborted" yaml:"aborted"`
	Cause    error                    `json:"-" yaml:"-"`
	Duration time.Duration            `json:"duration" yaml:"duration"`

	collector *pipelineerrors.FindingCollector
}

// Result returns the result of the named task.
func (r *Report) Result(name string) (TaskResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return TaskResult{}, false
}

// Failed returns the results with status failed.
func (r *Report) Failed() []TaskResult {
	return r.withStatus(StatusFailed)
}

// Skipped returns the results with status skipped.
func (r *Report) Skipped() []TaskResult {
	return r.withStatus(StatusSkipped)
}

func (r *Report) withStatus(s Status) []TaskResult {
	var out []TaskResult
	for _, res := range r.Results {
		if res.Status == s {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether the run completed without abort, failure or skip.
func (r *Report) OK() bool {
	return !r.Aborted && len(r.Failed()) == 0 && len(r.Skipped()) == 0
}

// HasErrorFindings reports whether any finding has error severity.
func (r *Report) HasErrorFindings() bool {
	fc := r.collector
	if fc == nil {
		fc = pipelineerrors.NewFindingCollector()
		fc.Add(r.Findings...)
	}
	return fc.HasErrors()
}
