package watcher

import (
	"sync"
	"time"
)

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	// At fires once the clock reaches t, immediately when t has passed.
	At(t time.Time) <-chan time.Time
}

// RealClock uses package time.
type RealClock struct{}

// Now returns time.Now.
func (RealClock) Now() time.Time { return time.Now() }

// At returns a time.After channel for the remaining duration.
func (RealClock) At(t time.Time) <-chan time.Time { return time.After(time.Until(t)) }

// VirtualClock only moves when Advance is called.
type VirtualClock struct {
	mutex   sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewVirtualClock starts a virtual clock at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

// At fires once Advance has moved the clock to t.
func (c *VirtualClock) At(t time.Time) <-chan time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ch := make(chan time.Time, 1)
	if !t.After(c.now) {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: t, ch: ch})
	return ch
}

// Advance moves the clock forward and fires every expired waiter.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.now = c.now.Add(d)
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
}
