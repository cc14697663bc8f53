package watcher

import (
	"context"
	"sort"
	"time"

	"github.com/conneroisu/sitepipe/internal/executor"
	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// Runner executes a plan. *executor.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, plan *graph.Plan) *executor.Report
}

// Scheduler serializes watched changes into incremental runs. All state is
// owned by the Run loop; at most one plan runs at a time.
type Scheduler struct {
	graph      *graph.Graph
	mapper     *Mapper
	runner     Runner
	clock      Clock
	logger     logging.Logger
	debounce   time.Duration
	maxPending int

	machines map[string]*Machine
	roots    []string
	running  bool
	done     chan *executor.Report

	onComplete func(*executor.Report)
	onState    func(root string, state State)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l logging.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithMaxPendingEvents bounds the events held per root.
func WithMaxPendingEvents(n int) SchedulerOption {
	return func(s *Scheduler) { s.maxPending = n }
}

// OnComplete is called from the loop after every run.
func OnComplete(fn func(*executor.Report)) SchedulerOption {
	return func(s *Scheduler) { s.onComplete = fn }
}

// OnStateChange is called from the loop after every observed event and
// every machine transition.
func OnStateChange(fn func(root string, state State)) SchedulerOption {
	return func(s *Scheduler) { s.onState = fn }
}

// NewScheduler creates a scheduler over g.
func NewScheduler(g *graph.Graph, mapper *Mapper, runner Runner, debounce time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		graph:    g,
		mapper:   mapper,
		runner:   runner,
		clock:    RealClock{},
		logger:   logging.NewNop(),
		debounce: debounce,
		machines: make(map[string]*Machine),
		done:     make(chan *executor.Report, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")
	return s
}

// Run consumes events until ctx is done or events is closed and drained.
// A run in progress is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context, events <-chan ChangeEvent) error {
	// At most one clock wait is outstanding. Deadlines only move later, so
	// an armed wait that fires early is re-armed at the current deadline.
	var armed <-chan time.Time
	for {
		if events == nil && !s.running && !s.anyPending() {
			return nil
		}

		var timer <-chan time.Time
		if !s.running {
			if deadline, ok := s.nextDeadline(); ok {
				if armed == nil {
					armed = s.clock.At(deadline)
				}
				timer = armed
			}
		}

		select {
		case <-ctx.Done():
			if s.running {
				s.complete(<-s.done)
			}
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.observe(ev)

		case <-timer:
			armed = nil
			s.flush(ctx)

		case report := <-s.done:
			s.complete(report)
		}
	}
}

func (s *Scheduler) machine(root string) *Machine {
	m, ok := s.machines[root]
	if !ok {
		m = NewMachine(root, s.debounce, s.maxPending)
		s.machines[root] = m
		s.roots = append(s.roots, root)
		sort.Strings(s.roots)
	}
	return m
}

func (s *Scheduler) observe(ev ChangeEvent) {
	m := s.machine(ev.Root)
	dropped := m.Dropped()
	m.Observe(ev, s.clock.Now())

	if m.Dropped() > dropped {
		s.logger.Warn(context.Background(), nil, "Pending event limit reached, dropping oldest",
			"root", ev.Root, "dropped", m.Dropped())
	}
	s.logger.Debug(context.Background(), "Change observed", "path", ev.Path, "type", ev.Type.String())
	s.transition(m)
}

func (s *Scheduler) transition(m *Machine) {
	if s.onState != nil {
		s.onState(m.Root, m.State())
	}
}

func (s *Scheduler) anyPending() bool {
	for _, m := range s.machines {
		if m.State() == StatePending {
			return true
		}
	}
	return false
}

func (s *Scheduler) nextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, root := range s.roots {
		if d, ok := s.machines[root].Deadline(); ok && (!found || d.Before(next)) {
			next, found = d, true
		}
	}
	return next, found
}

// flush merges every due root into one change set and starts its plan.
func (s *Scheduler) flush(ctx context.Context) {
	now := s.clock.Now()
	var changes []ChangeEvent
	for _, root := range s.roots {
		m := s.machines[root]
		if !m.Due(now) {
			continue
		}
		changes = append(changes, m.Flush()...)
		s.transition(m)
	}
	if len(changes) == 0 {
		return
	}

	names := s.mapper.Map(changes)
	plan, err := s.graph.Induced(names)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to compute plan")
		s.finish()
		return
	}
	if plan.Empty() {
		s.logger.Debug(ctx, "No task affected by changes", "changes", len(changes))
		s.finish()
		return
	}

	s.logger.Info(ctx, "Rebuilding", "changes", len(changes), "tasks", plan.Tasks())
	s.running = true
	go func() {
		s.done <- s.runner.Run(ctx, plan)
	}()
}

func (s *Scheduler) complete(report *executor.Report) {
	s.running = false
	if report != nil && report.Aborted {
		s.logger.Error(context.Background(), report.Cause, "Rebuild aborted")
	}
	s.finish()
	if s.onComplete != nil && report != nil {
		s.onComplete(report)
	}
}

// finish returns every flushing machine to Idle, or to Pending when events
// arrived during the flush.
func (s *Scheduler) finish() {
	for _, root := range s.roots {
		m := s.machines[root]
		if m.State() != StateFlushing {
			continue
		}
		m.Done()
		s.transition(m)
	}
}
