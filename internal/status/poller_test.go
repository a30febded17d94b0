package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakerpanel/internal/device"
	"speakerpanel/internal/schedule/schedtest"
	"speakerpanel/internal/view"
	"speakerpanel/internal/view/viewtest"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	snap  device.Snapshot
	err   error
}

func (f *fakeFetcher) Info(context.Context) (device.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newPoller(api *fakeFetcher) (*Poller, *schedtest.Clock, *viewtest.Recorder) {
	clock := schedtest.New()
	rec := &viewtest.Recorder{}
	return NewPoller(api, rec, clock, 3*time.Second, zerolog.Nop()), clock, rec
}

func TestStart_RefreshesThenPollsEveryInterval(t *testing.T) {
	api := &fakeFetcher{snap: device.Snapshot{Title: "Echoes", Playing: true}}
	p, clock, rec := newPoller(api)

	p.Start(context.Background())
	assert.Equal(t, 1, api.Calls())

	clock.Advance(9 * time.Second)
	assert.Equal(t, 4, api.Calls())

	last, ok := rec.Last(view.KindNowPlaying)
	require.True(t, ok)
	assert.Equal(t, "Echoes", last.(view.NowPlaying).Title)
}

func TestRefresh_FailureIsDroppedSilently(t *testing.T) {
	api := &fakeFetcher{err: errors.New("timeout")}
	p, clock, rec := newPoller(api)

	p.Start(context.Background())
	clock.Advance(6 * time.Second)

	assert.Equal(t, 3, api.Calls())
	assert.Equal(t, 0, rec.Count(view.KindNowPlaying))
	_, ok := p.Last()
	assert.False(t, ok)
	assert.True(t, p.Polling(), "failures never stop the timer")
}

func TestSetVisible_HideShowCyclesNeverStackTimers(t *testing.T) {
	api := &fakeFetcher{}
	p, clock, _ := newPoller(api)
	p.Start(context.Background())
	require.Equal(t, 1, clock.Periodic())

	for i := 0; i < 5; i++ {
		p.SetVisible(false)
		p.SetVisible(false)
		assert.Equal(t, 0, clock.Periodic(), "hidden page has no timer")
		assert.False(t, p.Polling())

		before := api.Calls()
		p.SetVisible(true)
		assert.Equal(t, before+1, api.Calls(), "one immediate refresh on show")
		assert.Equal(t, 1, clock.Periodic())

		p.SetVisible(true)
		assert.Equal(t, before+1, api.Calls(), "already visible is a no-op")
	}

	calls := api.Calls()
	clock.Advance(3 * time.Second)
	assert.Equal(t, calls+1, api.Calls())
}

func TestSetVisible_HiddenPageDoesNotPoll(t *testing.T) {
	api := &fakeFetcher{}
	p, clock, _ := newPoller(api)
	p.Start(context.Background())

	p.SetVisible(false)
	clock.Advance(time.Minute)
	assert.Equal(t, 1, api.Calls())
}

func TestRender_ReplacesWholeSnapshot(t *testing.T) {
	api := &fakeFetcher{snap: device.Snapshot{Title: "First", Artist: "A"}}
	p, _, rec := newPoller(api)

	p.Refresh(context.Background())
	api.snap = device.Snapshot{Title: "Second"}
	p.Refresh(context.Background())

	last, _ := rec.Last(view.KindNowPlaying)
	np := last.(view.NowPlaying)
	assert.Equal(t, "Second", np.Title)
	assert.Empty(t, np.Artist)
}
