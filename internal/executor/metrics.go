package executor

import (
	"sync"
	"time"
)

// Metrics accumulates executor statistics across runs.
type Metrics struct {
	Runs           int64
	AbortedRuns    int64
	TasksSucceeded int64
	TasksFailed    int64
	TasksSkipped   int64
	CacheHits      int64
	CacheMisses    int64
	TotalDuration  time.Duration
	LastDuration   time.Duration
}

// CacheHitRate returns the input cache hit rate as a percentage.
func (m Metrics) CacheHitRate() float64 {
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(total) * 100
}

type metricsRecorder struct {
	mutex   sync.Mutex
	metrics Metrics
}

func (mr *metricsRecorder) record(report *Report) {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	mr.metrics.Runs++
	if report.Aborted {
		mr.metrics.AbortedRuns++
	}
	for _, res := range report.Results {
		switch res.Status {
		case StatusSucceeded:
			mr.metrics.TasksSucceeded++
		case StatusFailed:
			mr.metrics.TasksFailed++
		case StatusSkipped:
			mr.metrics.TasksSkipped++
		}
	}
	mr.metrics.TotalDuration += report.Duration
	mr.metrics.LastDuration = report.Duration
}

func (mr *metricsRecorder) snapshot() Metrics {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	return mr.metrics
}
