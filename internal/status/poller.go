package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"speakerpanel/internal/device"
	"speakerpanel/internal/schedule"
	"speakerpanel/internal/view"
)

type Fetcher interface {
	Info(ctx context.Context) (device.Snapshot, error)
}

// Poller keeps the now-playing view fresh. It polls on a fixed period
// while the page is visible and not at all while it is hidden.
type Poller struct {
	api      Fetcher
	sink     view.Sink
	sched    schedule.Scheduler
	interval time.Duration
	log      zerolog.Logger

	sf singleflight.Group

	mu      sync.Mutex
	ctx     context.Context
	task    schedule.Task
	hidden  bool
	last    device.Snapshot
	hasLast bool
}

func NewPoller(api Fetcher, sink view.Sink, sched schedule.Scheduler, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		api:      api,
		sink:     sink,
		sched:    sched,
		interval: interval,
		ctx:      context.Background(),
		log:      log.With().Str("component", "status").Logger(),
	}
}

// Start refreshes once and starts the periodic timer. Timer callbacks run
// under ctx.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	p.Refresh(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hidden {
		p.startLocked()
	}
}

// Stop cancels the periodic timer.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// SetVisible follows the page's visibility. Hiding cancels the timer
// outright; becoming visible again refreshes at once and restarts it.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	if !visible {
		p.hidden = true
		p.stopLocked()
		p.mu.Unlock()
		p.log.Debug().Msg("page hidden; polling suspended")
		return
	}
	if !p.hidden {
		p.mu.Unlock()
		return
	}
	p.hidden = false
	ctx := p.ctx
	p.mu.Unlock()

	p.Refresh(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hidden {
		p.startLocked()
	}
	p.log.Debug().Msg("page visible; polling resumed")
}

func (p *Poller) startLocked() {
	if p.task != nil {
		return
	}
	p.task = p.sched.Every(p.interval, p.tick)
}

func (p *Poller) stopLocked() {
	if p.task == nil {
		return
	}
	p.task.Stop()
	p.task = nil
}

func (p *Poller) tick() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	p.Refresh(ctx)
}

// Refresh fetches and renders the current snapshot. Overlapping calls
// share one request. A failed fetch is dropped; the next tick supersedes it.
func (p *Poller) Refresh(ctx context.Context) {
	_, _, _ = p.sf.Do("info", func() (any, error) {
		s, err := p.api.Info(ctx)
		if err != nil {
			p.log.Debug().Err(err).Msg("status poll failed")
			return nil, err
		}

		p.mu.Lock()
		p.last = s
		p.hasLast = true
		p.mu.Unlock()

		p.sink.Render(view.Update{Kind: view.KindNowPlaying, Data: view.FromSnapshot(s)})
		return nil, nil
	})
}

// Last returns the most recent snapshot, if any poll has succeeded.
func (p *Poller) Last() (device.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasLast
}

// Polling reports whether the periodic timer is armed.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task != nil
}
