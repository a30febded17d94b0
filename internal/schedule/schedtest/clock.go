// Package schedtest provides a manually advanced schedule.Scheduler.
package schedtest

import (
	"sort"
	"sync"
	"time"

	"speakerpanel/internal/schedule"
)

// Clock is a schedule.Scheduler whose time only moves when Advance is
// called. Due tasks run synchronously inside Advance, in due order.
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*task
}

type task struct {
	clock   *Clock
	seq     int
	due     time.Time
	period  time.Duration
	fn      func()
	stopped bool
}

func (t *task) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

func New() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) After(d time.Duration, fn func()) schedule.Task {
	return c.add(d, 0, fn)
}

func (c *Clock) Every(d time.Duration, fn func()) schedule.Task {
	return c.add(d, d, fn)
}

func (c *Clock) add(d, period time.Duration, fn func()) *task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &task{clock: c, seq: c.seq, due: c.now.Add(d), period: period, fn: fn}
	c.tasks = append(c.tasks, t)
	return t
}

// Pending counts tasks that are neither stopped nor spent.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Periodic counts live periodic tasks.
func (c *Clock) Periodic() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if !t.stopped && t.period > 0 {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running every task that falls due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.compact()
			c.mu.Unlock()
			return
		}
		c.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			next.stopped = true
		}
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

func (c *Clock) nextDue(target time.Time) *task {
	var live []*task
	for _, t := range c.tasks {
		if !t.stopped && !t.due.After(target) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due.Equal(live[j].due) {
			return live[i].seq < live[j].seq
		}
		return live[i].due.Before(live[j].due)
	})
	return live[0]
}

func (c *Clock) compact() {
	out := c.tasks[:0]
	for _, t := range c.tasks {
		if !t.stopped {
			out = append(out, t)
		}
	}
	c.tasks = out
}
