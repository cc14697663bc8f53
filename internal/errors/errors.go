package errors

import (
	"fmt"
	"sort"
	"sync"
)

// Severity represents the severity of a validation finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets findings serialize severities by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Finding is a single issue reported by the markup validator.
type Finding struct {
	Task     string   `json:"task,omitempty" yaml:"task,omitempty"`
	File     string   `json:"file" yaml:"file"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Rule     string   `json:"rule" yaml:"rule"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// String renders the finding as file:line: severity: message (rule).
func (f Finding) String() string {
	loc := f.File
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", loc, f.Severity, f.Message, f.Rule)
}

// FindingCollector gathers findings from concurrently running tasks.
type FindingCollector struct {
	findings []Finding
	mutex    sync.Mutex
}

// NewFindingCollector creates an empty collector.
func NewFindingCollector() *FindingCollector {
	return &FindingCollector{findings: make([]Finding, 0)}
}

// Add appends findings.
func (fc *FindingCollector) Add(findings ...Finding) {
	if len(findings) == 0 {
		return
	}
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	fc.findings = append(fc.findings, findings...)
}

// Findings returns a copy of the collected findings ordered by file, line
// and rule so reports are stable across runs.
func (fc *FindingCollector) Findings() []Finding {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	result := make([]Finding, len(fc.findings))
	copy(result, fc.findings)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})
	return result
}

// HasErrors reports whether any finding has error severity.
func (fc *FindingCollector) HasErrors() bool {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	for _, f := range fc.findings {
		if f.Severity >= SeverityError {
			return true
		}
	}
	return false
}
