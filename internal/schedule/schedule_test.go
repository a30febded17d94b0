package schedule_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"speakerpanel/internal/schedule"
	"speakerpanel/internal/schedule/schedtest"
)

func TestCron_AfterFiresOnceAndStopCancels(t *testing.T) {
	c := schedule.NewCron(zerolog.Nop())
	defer c.Stop()

	var fired atomic.Int32
	c.After(10*time.Millisecond, func() { fired.Add(1) })
	cancelled := c.After(10*time.Millisecond, func() { fired.Add(100) })
	cancelled.Stop()

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCron_EveryRegistersAndStopRemoves(t *testing.T) {
	c := schedule.NewCron(zerolog.Nop())
	defer c.Stop()

	task := c.Every(time.Hour, func() {})
	assert.Equal(t, 1, c.Jobs())

	task.Stop()
	task.Stop()
	assert.Equal(t, 0, c.Jobs())
}

func TestClock_RunsTasksInDueOrder(t *testing.T) {
	c := schedtest.New()
	var order []string

	c.After(300*time.Millisecond, func() { order = append(order, "after") })
	tick := c.Every(100*time.Millisecond, func() { order = append(order, "tick") })

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"tick", "tick"}, order)

	c.Advance(100 * time.Millisecond)
	// equal due times run in scheduling order
	assert.Equal(t, []string{"tick", "tick", "after", "tick"}, order)

	tick.Stop()
	c.Advance(time.Second)
	assert.Len(t, order, 4)
	assert.Equal(t, 0, c.Pending())
}

func TestClock_TaskScheduledFromCallbackUsesCallbackTime(t *testing.T) {
	c := schedtest.New()
	start := c.Now()
	var at time.Time

	c.After(100*time.Millisecond, func() {
		c.After(50*time.Millisecond, func() { at = c.Now() })
	})
	c.Advance(time.Second)

	assert.Equal(t, start.Add(150*time.Millisecond), at)
}
