// Package testfixtures holds shared test doubles.
package testfixtures

import (
	"sort"
	"sync"
	"time"

	"github.com/BruksfildServices01/consult-scheduler/internal/clock"
)

// ReferenceTime is the instant fake clocks start at unless told otherwise.
func ReferenceTime() time.Time {
	return time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
}

// Clock is a manually advanced time source. Timers registered through
// AfterFunc fire synchronously inside Advance, in trigger order.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	seq     int
	timers  map[int]*fakeTimer
}

type fakeTimer struct {
	clock *Clock
	id    int
	at    time.Time
	fn    func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if _, ok := t.clock.timers[t.id]; !ok {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, timers: make(map[int]*fakeTimer)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Clock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{clock: c, id: c.seq, at: c.current.Add(d), fn: fn}
	c.timers[t.id] = t
	return t
}

// Advance moves the clock forward and runs every timer that became due.
// Timers registered by a callback are honoured if they fall inside the
// window.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.current = target
			c.mu.Unlock()
			return target
		}
		delete(c.timers, next.id)
		if next.at.After(c.current) {
			c.current = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

func (c *Clock) nextDueLocked(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

// PendingTimers returns the number of timers that have not fired or been
// stopped.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

var _ clock.Clock = (*Clock)(nil)
