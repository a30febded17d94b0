package panel

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speakerpanel/internal/device"
	"speakerpanel/internal/schedule"
	"speakerpanel/internal/view"
)

var (
	ErrUnknownAction = errors.New("unknown transport action")
	ErrNoDuration    = errors.New("nothing seekable is playing")
)

// Transport actions accepted by Controls.Transport.
const (
	ActionPlayPause  = "play-pause"
	ActionStop       = "stop"
	ActionSkip       = "skip"
	ActionVolumeUp   = "volume-up"
	ActionVolumeDown = "volume-down"
)

type Issuer interface {
	Issue(ctx context.Context, path string, delay time.Duration) device.Result
}

type SnapshotSource interface {
	Last() (device.Snapshot, bool)
}

// Controls maps transport gestures onto device commands.
type Controls struct {
	cmd      Issuer
	status   SnapshotSource
	sched    schedule.Scheduler
	generic  time.Duration
	seek     time.Duration
	debounce time.Duration
	sink     view.Sink
	log      zerolog.Logger

	mu     sync.Mutex
	volume schedule.Task
}

func NewControls(cmd Issuer, status SnapshotSource, sched schedule.Scheduler, generic, seek, debounce time.Duration, sink view.Sink, log zerolog.Logger) *Controls {
	return &Controls{
		cmd:      cmd,
		status:   status,
		sched:    sched,
		generic:  generic,
		seek:     seek,
		debounce: debounce,
		sink:     sink,
		log:      log.With().Str("component", "controls").Logger(),
	}
}

func (c *Controls) Transport(ctx context.Context, action string) (device.Result, error) {
	switch action {
	case ActionPlayPause:
		return c.PlayPause(ctx), nil
	case ActionStop:
		return c.issue(ctx, device.PathStop), nil
	case ActionSkip:
		return c.issue(ctx, device.PathSkip), nil
	case ActionVolumeUp:
		return c.issue(ctx, device.PathVolumeUp), nil
	case ActionVolumeDown:
		return c.issue(ctx, device.PathVolumeDown), nil
	default:
		return device.Result{}, ErrUnknownAction
	}
}

// PlayPause pauses when the last snapshot says something is playing and
// plays otherwise.
func (c *Controls) PlayPause(ctx context.Context) device.Result {
	snap, _ := c.status.Last()
	if snap.Playing {
		return c.issue(ctx, device.PathPause)
	}
	return c.issue(ctx, device.PathPlay)
}

// SetVolume shows level at once and sends it after the debounce period.
// A newer level replaces one not yet sent.
func (c *Controls) SetVolume(level int) {
	level = max(0, min(100, level))
	c.sink.Render(view.Update{Kind: view.KindVolume, Data: level})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.volume != nil {
		c.volume.Stop()
	}
	var task schedule.Task
	task = c.sched.After(c.debounce, func() {
		c.mu.Lock()
		if c.volume != task {
			// replaced after the timer had already fired
			c.mu.Unlock()
			return
		}
		c.volume = nil
		c.mu.Unlock()
		c.issue(context.Background(), device.VolumePath(level))
	})
	c.volume = task
}

// Seek jumps to fraction (0..1) of the current track.
func (c *Controls) Seek(ctx context.Context, fraction float64) (device.Result, error) {
	snap, ok := c.status.Last()
	if !ok || snap.Duration <= 0 || math.IsNaN(snap.Duration) {
		return device.Result{}, ErrNoDuration
	}
	if math.IsNaN(fraction) {
		fraction = 0
	}
	fraction = math.Max(0, math.Min(1, fraction))

	pos := time.Duration(fraction * snap.Duration * float64(time.Second))
	return c.cmd.Issue(ctx, device.SeekPath(pos), c.seek), nil
}

func (c *Controls) issue(ctx context.Context, path string) device.Result {
	res := c.cmd.Issue(ctx, path, c.generic)
	if !res.Success {
		c.log.Debug().Str("path", path).Str("error", res.Error).Msg("command not accepted")
	}
	if res.Volume != nil {
		c.sink.Render(view.Update{Kind: view.KindVolume, Data: *res.Volume})
	}
	return res
}
