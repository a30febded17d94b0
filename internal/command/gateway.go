// Package command issues fire-and-forget commands to the device and
// schedules the status refresh that follows each one.
package command

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"speakerpanel/internal/device"
	"speakerpanel/internal/schedule"
)

// Delay classes. Device-side state takes longer to settle after starting
// media than after a plain transport command.
type Delays struct {
	Generic    time.Duration
	MediaStart time.Duration
	VideoStart time.Duration
	Seek       time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Generic:    300 * time.Millisecond,
		MediaStart: 1500 * time.Millisecond,
		VideoStart: 2000 * time.Millisecond,
		Seek:       500 * time.Millisecond,
	}
}

type Poster interface {
	Post(ctx context.Context, path string) (device.Result, error)
}

type Refresher interface {
	Refresh(ctx context.Context)
}

type Gateway struct {
	api     Poster
	refresh Refresher
	sched   schedule.Scheduler
	delays  Delays
	log     zerolog.Logger
}

func NewGateway(api Poster, refresh Refresher, sched schedule.Scheduler, delays Delays, log zerolog.Logger) *Gateway {
	def := DefaultDelays()
	if delays.Generic <= 0 {
		delays.Generic = def.Generic
	}
	if delays.MediaStart <= 0 {
		delays.MediaStart = def.MediaStart
	}
	if delays.VideoStart <= 0 {
		delays.VideoStart = def.VideoStart
	}
	if delays.Seek <= 0 {
		delays.Seek = def.Seek
	}
	return &Gateway{
		api:     api,
		refresh: refresh,
		sched:   sched,
		delays:  delays,
		log:     log.With().Str("component", "command").Logger(),
	}
}

func (g *Gateway) Delays() Delays { return g.delays }

// Issue posts path and never fails: transport and decode errors come back
// as Result{Success: false}. Once the outcome is known, exactly one status
// refresh is scheduled after delay.
func (g *Gateway) Issue(ctx context.Context, path string, delay time.Duration) device.Result {
	res, err := g.api.Post(ctx, path)
	if err != nil {
		g.log.Warn().Err(err).Str("path", path).Msg("command failed")
		res = device.Result{Success: false}
	}

	g.sched.After(delay, func() {
		g.refresh.Refresh(context.Background())
	})
	return res
}
