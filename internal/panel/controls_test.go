package panel

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakerpanel/internal/device"
	"speakerpanel/internal/schedule"
	"speakerpanel/internal/schedule/schedtest"
	"speakerpanel/internal/view"
	"speakerpanel/internal/view/viewtest"
)

type issued struct {
	path  string
	delay time.Duration
}

type fakeIssuer struct {
	calls  []issued
	result device.Result
}

func (f *fakeIssuer) Issue(_ context.Context, path string, delay time.Duration) device.Result {
	f.calls = append(f.calls, issued{path, delay})
	return f.result
}

type fixedSnapshot struct {
	snap device.Snapshot
	ok   bool
}

func (f fixedSnapshot) Last() (device.Snapshot, bool) { return f.snap, f.ok }

func newControls(snap fixedSnapshot) (*Controls, *fakeIssuer, *schedtest.Clock, *viewtest.Recorder) {
	cmd := &fakeIssuer{result: device.Result{Success: true}}
	clock := schedtest.New()
	rec := &viewtest.Recorder{}
	c := NewControls(cmd, snap, clock, 300*time.Millisecond, 500*time.Millisecond, 100*time.Millisecond, rec, zerolog.Nop())
	return c, cmd, clock, rec
}

func TestPlayPause_FollowsLastSnapshot(t *testing.T) {
	c, cmd, _, _ := newControls(fixedSnapshot{snap: device.Snapshot{Playing: true}, ok: true})
	c.PlayPause(context.Background())

	idle, cmd2, _, _ := newControls(fixedSnapshot{})
	idle.PlayPause(context.Background())

	assert.Equal(t, []issued{{device.PathPause, 300 * time.Millisecond}}, cmd.calls)
	assert.Equal(t, []issued{{device.PathPlay, 300 * time.Millisecond}}, cmd2.calls)
}

func TestTransport_Actions(t *testing.T) {
	c, cmd, _, _ := newControls(fixedSnapshot{})

	for _, a := range []string{ActionStop, ActionSkip, ActionVolumeUp, ActionVolumeDown} {
		_, err := c.Transport(context.Background(), a)
		require.NoError(t, err)
	}
	_, err := c.Transport(context.Background(), "rewind")
	assert.ErrorIs(t, err, ErrUnknownAction)

	var paths []string
	for _, call := range cmd.calls {
		paths = append(paths, call.path)
	}
	assert.Equal(t, []string{device.PathStop, device.PathSkip, device.PathVolumeUp, device.PathVolumeDown}, paths)
}

func TestTransport_RendersReportedVolume(t *testing.T) {
	c, cmd, _, rec := newControls(fixedSnapshot{})
	v := 45
	cmd.result = device.Result{Success: true, Volume: &v}

	_, err := c.Transport(context.Background(), ActionVolumeUp)
	require.NoError(t, err)

	got, ok := rec.Last(view.KindVolume)
	require.True(t, ok)
	assert.Equal(t, 45, got)
}

func TestSetVolume_DebouncesToLatest(t *testing.T) {
	c, cmd, clock, rec := newControls(fixedSnapshot{})

	c.SetVolume(10)
	clock.Advance(50 * time.Millisecond)
	c.SetVolume(20)
	clock.Advance(50 * time.Millisecond)
	c.SetVolume(130)
	assert.Empty(t, cmd.calls)

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, []issued{{device.VolumePath(100), 300 * time.Millisecond}}, cmd.calls)
	assert.Equal(t, []any{10, 20, 100}, rec.Of(view.KindVolume))
	assert.Zero(t, clock.Pending())
}

// firedScheduler hands out one-shots whose timers have already fired:
// Stop cannot cancel them and the test runs them by hand.
type firedScheduler struct {
	*schedtest.Clock
	fns []func()
}

type firedTask struct{ n int }

func (*firedTask) Stop() {}

func (s *firedScheduler) After(_ time.Duration, fn func()) schedule.Task {
	s.fns = append(s.fns, fn)
	return &firedTask{n: len(s.fns)}
}

func TestSetVolume_StaleCallbackDoesNotSend(t *testing.T) {
	cmd := &fakeIssuer{result: device.Result{Success: true}}
	sched := &firedScheduler{Clock: schedtest.New()}
	c := NewControls(cmd, fixedSnapshot{}, sched, 300*time.Millisecond, 500*time.Millisecond, 100*time.Millisecond, view.Discard, zerolog.Nop())

	c.SetVolume(30)
	c.SetVolume(60)
	require.Len(t, sched.fns, 2)

	// the first timer fired before the second SetVolume replaced it
	sched.fns[0]()
	assert.Empty(t, cmd.calls)

	sched.fns[1]()
	assert.Equal(t, []issued{{device.VolumePath(60), 300 * time.Millisecond}}, cmd.calls)
}

func TestSeek_ByFraction(t *testing.T) {
	c, cmd, _, _ := newControls(fixedSnapshot{snap: device.Snapshot{Duration: 200}, ok: true})

	_, err := c.Seek(context.Background(), 0.5)
	require.NoError(t, err)
	_, err = c.Seek(context.Background(), 1.7)
	require.NoError(t, err)

	assert.Equal(t, []issued{
		{"/api/seek/1:40", 500 * time.Millisecond},
		{"/api/seek/3:20", 500 * time.Millisecond},
	}, cmd.calls)
}

func TestSeek_NothingPlaying(t *testing.T) {
	c, cmd, _, _ := newControls(fixedSnapshot{ok: true})

	_, err := c.Seek(context.Background(), 0.3)
	assert.ErrorIs(t, err, ErrNoDuration)
	assert.Empty(t, cmd.calls)
}
