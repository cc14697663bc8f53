package watcher

import "time"

// State of one watched root.
type State int

const (
	StateIdle State = iota
	StatePending
	StateFlushing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// DefaultMaxPendingEvents bounds the events a machine holds between flushes.
const DefaultMaxPendingEvents = 1024

// Machine debounces the events of one root. It holds no timers: the caller
// passes the current time to every transition and asks Due when a flush is
// allowed, which keeps it deterministic under a virtual clock.
//
//	Idle -> Pending on Observe
//	Pending -> Pending on Observe (debounce restarts)
//	Pending -> Flushing on Flush once Due
//	Flushing -> Idle on Done, or Pending when events arrived meanwhile
type Machine struct {
	Root       string
	Debounce   time.Duration
	MaxPending int

	state     State
	pending   []ChangeEvent
	index     map[string]int
	lastEvent time.Time
	dropped   int
}

// NewMachine creates an idle machine.
func NewMachine(root string, debounce time.Duration, maxPending int) *Machine {
	if maxPending <= 0 {
		maxPending = DefaultMaxPendingEvents
	}
	return &Machine{
		Root:       root,
		Debounce:   debounce,
		MaxPending: maxPending,
		index:      make(map[string]int),
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Dropped returns how many events were discarded because the pending set was
// full.
func (m *Machine) Dropped() int { return m.dropped }

// PendingEvents returns the number of events waiting for the next flush.
func (m *Machine) PendingEvents() int { return len(m.pending) }

// Observe records an event. Repeated events for a path collapse into the
// latest one, keeping the position of the first.
func (m *Machine) Observe(ev ChangeEvent, now time.Time) {
	if i, ok := m.index[ev.Path]; ok {
		m.pending[i] = ev
	} else {
		if len(m.pending) >= m.MaxPending {
			m.dropOldest()
		}
		m.index[ev.Path] = len(m.pending)
		m.pending = append(m.pending, ev)
	}
	m.lastEvent = now

	if m.state == StateIdle {
		m.state = StatePending
	}
}

func (m *Machine) dropOldest() {
	oldest := m.pending[0]
	m.pending = m.pending[1:]
	delete(m.index, oldest.Path)
	for p, i := range m.index {
		m.index[p] = i - 1
	}
	m.dropped++
}

// Deadline returns when a pending machine becomes due.
func (m *Machine) Deadline() (time.Time, bool) {
	if m.state != StatePending {
		return time.Time{}, false
	}
	return m.lastEvent.Add(m.Debounce), true
}

// Due reports whether the debounce period has elapsed without new events.
func (m *Machine) Due(now time.Time) bool {
	deadline, ok := m.Deadline()
	return ok && !now.Before(deadline)
}

// Flush moves a pending machine to Flushing and returns the accumulated
// events. Anything observed from now on waits for the next cycle.
func (m *Machine) Flush() []ChangeEvent {
	if m.state != StatePending {
		return nil
	}
	events := m.pending
	m.pending = nil
	m.index = make(map[string]int)
	m.state = StateFlushing
	return events
}

// Done ends a flush. The debounce for events that arrived during the flush
// counts from the last of them.
func (m *Machine) Done() {
	if m.state != StateFlushing {
		return
	}
	if len(m.pending) > 0 {
		m.state = StatePending
		return
	}
	m.state = StateIdle
}
