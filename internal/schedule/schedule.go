// Package schedule provides the clock and cancellable timers every
// time-driven part of the panel runs on.
package schedule

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Task is a scheduled unit of work. Stop is safe to call more than once.
type Task interface {
	Stop()
}

// Scheduler hands out one-shot and periodic tasks and reports the time
// they are measured against.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Task
	Every(d time.Duration, fn func()) Task
}

// Cron runs periodic tasks on a gocron scheduler and one-shot tasks on
// runtime timers.
type Cron struct {
	s   *gocron.Scheduler
	log zerolog.Logger
}

func NewCron(log zerolog.Logger) *Cron {
	s := gocron.NewScheduler(time.UTC)
	s.StartAsync()
	return &Cron{
		s:   s,
		log: log.With().Str("component", "schedule").Logger(),
	}
}

func (c *Cron) Now() time.Time { return time.Now() }

func (c *Cron) After(d time.Duration, fn func()) Task {
	return &timerTask{t: time.AfterFunc(d, fn)}
}

// Every starts fn after the first full period, never immediately.
func (c *Cron) Every(d time.Duration, fn func()) Task {
	job, err := c.s.Every(d).WaitForSchedule().SingletonMode().Do(fn)
	if err != nil {
		c.log.Error().Err(err).Dur("every", d).Msg("failed to schedule periodic task")
		return noopTask{}
	}
	return &cronTask{s: c.s, job: job}
}

// Jobs reports how many periodic tasks are currently registered.
func (c *Cron) Jobs() int { return c.s.Len() }

func (c *Cron) Stop() { c.s.Stop() }

type timerTask struct {
	t *time.Timer
}

func (t *timerTask) Stop() { t.t.Stop() }

type cronTask struct {
	once sync.Once
	s    *gocron.Scheduler
	job  *gocron.Job
}

func (t *cronTask) Stop() {
	t.once.Do(func() { t.s.RemoveByReference(t.job) })
}

type noopTask struct{}

func (noopTask) Stop() {}
