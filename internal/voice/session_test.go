package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakerpanel/internal/schedule/schedtest"
	"speakerpanel/internal/view"
	"speakerpanel/internal/view/viewtest"
)

// fakeRecognizer ends the session synchronously on Stop, as a browser
// recognizer eventually fires onend after stop().
type fakeRecognizer struct {
	session  *Session
	starts   int
	stops    int
	startErr error
}

func (r *fakeRecognizer) Start() error {
	r.starts++
	return r.startErr
}

func (r *fakeRecognizer) Stop() {
	r.stops++
	if r.session != nil {
		r.session.HandleEvent(Event{Type: EventEnd})
	}
}

type fakeSubmitter struct {
	mu    sync.Mutex
	texts []string
	busy  bool
	err   error
}

func (f *fakeSubmitter) SmartSend(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeSubmitter) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *fakeSubmitter) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// countingUnlocker runs during, when set, inside Unlock to stand in for a
// platform that is slow to accept the silent sample.
type countingUnlocker struct {
	n      int
	during func()
}

func (u *countingUnlocker) Unlock(context.Context) {
	u.n++
	if u.during != nil {
		u.during()
	}
}

type sessionFixture struct {
	s      *Session
	rec    *fakeRecognizer
	submit *fakeSubmitter
	unlock *countingUnlocker
	clock  *schedtest.Clock
	view   *viewtest.Recorder
}

func newSessionFixture(threshold time.Duration) *sessionFixture {
	f := &sessionFixture{
		rec:    &fakeRecognizer{},
		submit: &fakeSubmitter{},
		unlock: &countingUnlocker{},
		clock:  schedtest.New(),
		view:   &viewtest.Recorder{},
	}
	f.s = NewSession(f.rec, f.submit, f.unlock, f.clock, f.view, SessionConfig{
		Tick:      100 * time.Millisecond,
		Settle:    300 * time.Millisecond,
		Threshold: func() time.Duration { return threshold },
	}, zerolog.Nop())
	f.rec.session = f.s
	f.s.SetAvailable(true)
	return f
}

func (f *sessionFixture) say(text string, final bool) {
	f.s.HandleEvent(Event{Type: EventResult, Segments: []Segment{{Text: text, Final: final}}})
}

func TestSession_SilenceStopsAndSubmits(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	require.NoError(t, f.s.Start(context.Background()))
	assert.Equal(t, Listening, f.s.State())
	assert.Equal(t, 1, f.unlock.n)

	f.say("skip the song", true)

	f.clock.Advance(1400 * time.Millisecond)
	assert.Equal(t, Listening, f.s.State())
	assert.Zero(t, f.rec.stops)

	f.clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, f.rec.stops)
	assert.Equal(t, Sending, f.s.State())
	assert.Empty(t, f.submit.Sent(), "submit waits for the settle delay")

	input, ok := f.view.Last(view.KindInput)
	require.True(t, ok)
	assert.Equal(t, "skip the song", input)

	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"skip the song"}, f.submit.Sent())
	assert.Equal(t, Idle, f.s.State())
	assert.Zero(t, f.clock.Pending())
}

func TestSession_SlowUnlockDoesNotEatSilence(t *testing.T) {
	f := newSessionFixture(300 * time.Millisecond)
	f.unlock.during = func() { f.clock.Advance(800 * time.Millisecond) }

	require.NoError(t, f.s.Start(context.Background()))
	assert.Equal(t, Listening, f.s.State())
	assert.Equal(t, 1, f.rec.starts)
	assert.Zero(t, f.rec.stops, "silence is measured from the recognizer start")

	f.clock.Advance(200 * time.Millisecond)
	assert.Zero(t, f.rec.stops)

	f.clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, f.rec.stops)
	assert.Equal(t, Idle, f.s.State())
}

func TestSession_UserStopResendsAfterSilenceStop(t *testing.T) {
	f := newSessionFixture(300 * time.Millisecond)
	// the recognizer ignores the first stop and keeps running
	f.rec.session = nil

	require.NoError(t, f.s.Start(context.Background()))
	f.clock.Advance(400 * time.Millisecond)
	assert.Equal(t, 1, f.rec.stops)
	assert.Equal(t, Listening, f.s.State())

	require.NoError(t, f.s.Toggle(context.Background()))
	assert.Equal(t, 2, f.rec.stops)

	f.s.Stop()
	assert.Equal(t, 2, f.rec.stops, "one user stop is enough")

	f.s.HandleEvent(Event{Type: EventEnd})
	assert.Equal(t, Idle, f.s.State())
	assert.Empty(t, f.submit.Sent())
}

func TestSession_InterimAndFinalResultsResetSilence(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	require.NoError(t, f.s.Start(context.Background()))

	f.clock.Advance(1000 * time.Millisecond)
	f.say("turn", false)
	f.clock.Advance(1000 * time.Millisecond)
	assert.Equal(t, Listening, f.s.State())

	f.say("turn it down", true)
	f.clock.Advance(1400 * time.Millisecond)
	assert.Equal(t, Listening, f.s.State())

	f.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, f.rec.stops)

	f.clock.Advance(time.Second)
	assert.Equal(t, []string{"turn it down"}, f.submit.Sent())
}

func TestSession_ThresholdIsReadAtStart(t *testing.T) {
	threshold := 1500 * time.Millisecond
	f := newSessionFixture(0)
	f.s.cfg.Threshold = func() time.Duration { return threshold }

	require.NoError(t, f.s.Start(context.Background()))
	threshold = 5 * time.Second

	f.clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, f.rec.stops)
}

func TestSession_StopWithoutSpeechSubmitsNothing(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	require.NoError(t, f.s.Start(context.Background()))
	f.say("hmm", false)

	f.s.Stop()
	assert.Equal(t, Idle, f.s.State())

	f.clock.Advance(5 * time.Second)
	assert.Empty(t, f.submit.Sent())
	assert.Zero(t, f.clock.Pending())

	listening, _ := f.view.Last(view.KindListening)
	assert.Equal(t, false, listening)
}

func TestSession_StopWithSpeechStillSubmits(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	require.NoError(t, f.s.Start(context.Background()))
	f.say("what time is it", true)

	f.s.Stop()
	f.s.Stop()
	assert.Equal(t, 1, f.rec.stops)

	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"what time is it"}, f.submit.Sent())
}

func TestSession_Toggle(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)

	require.NoError(t, f.s.Toggle(context.Background()))
	assert.Equal(t, Listening, f.s.State())

	require.NoError(t, f.s.Toggle(context.Background()))
	assert.Equal(t, Idle, f.s.State())
	assert.Equal(t, 1, f.rec.stops)
}

func TestSession_NoSpeechError(t *testing.T) {
	t.Run("with final text submits", func(t *testing.T) {
		f := newSessionFixture(1500 * time.Millisecond)
		require.NoError(t, f.s.Start(context.Background()))
		f.say("play the radio", true)

		f.s.HandleEvent(Event{Type: EventError, Error: CodeNoSpeech})
		assert.Equal(t, Sending, f.s.State())

		// the trailing end event must not submit a second time
		f.s.HandleEvent(Event{Type: EventEnd})
		f.clock.Advance(time.Second)
		assert.Equal(t, []string{"play the radio"}, f.submit.Sent())
	})

	t.Run("without text goes idle", func(t *testing.T) {
		f := newSessionFixture(1500 * time.Millisecond)
		require.NoError(t, f.s.Start(context.Background()))

		f.s.HandleEvent(Event{Type: EventError, Error: CodeNoSpeech})
		f.s.HandleEvent(Event{Type: EventEnd})
		f.clock.Advance(time.Second)

		assert.Equal(t, Idle, f.s.State())
		assert.Empty(t, f.submit.Sent())
		assert.Zero(t, f.view.Count(view.KindError))
	})
}

func TestSession_PermissionDeniedShowsMessage(t *testing.T) {
	for _, code := range []string{CodeNotAllowed, CodeServiceNotAllowed} {
		t.Run(code, func(t *testing.T) {
			f := newSessionFixture(1500 * time.Millisecond)
			require.NoError(t, f.s.Start(context.Background()))
			f.say("half a sentence", true)

			f.s.HandleEvent(Event{Type: EventError, Error: code})
			f.clock.Advance(time.Second)

			assert.Equal(t, Idle, f.s.State())
			assert.Empty(t, f.submit.Sent())
			msg, ok := f.view.Last(view.KindError)
			require.True(t, ok)
			assert.Equal(t, PermissionMessage, msg)
			assert.Zero(t, f.clock.Periodic())
		})
	}
}

func TestSession_OtherErrorsAreSilent(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	require.NoError(t, f.s.Start(context.Background()))

	f.s.HandleEvent(Event{Type: EventError, Error: CodeNetwork})

	assert.Equal(t, Idle, f.s.State())
	assert.Zero(t, f.view.Count(view.KindError))
	assert.Zero(t, f.clock.Periodic())
}

func TestSession_SingleActiveSession(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	require.NoError(t, f.s.Start(context.Background()))

	err := f.s.Start(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, f.rec.starts)
	assert.Equal(t, 1, f.clock.Periodic())
}

func TestSession_StartRejectedWhileSendInFlight(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	f.submit.busy = true

	assert.ErrorIs(t, f.s.Start(context.Background()), ErrBusy)
	assert.Zero(t, f.rec.starts)
}

func TestSession_Unavailable(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	f.s.SetAvailable(false)

	assert.ErrorIs(t, f.s.Start(context.Background()), ErrUnavailable)
	assert.Zero(t, f.rec.starts)

	avail, _ := f.view.Last(view.KindMicAvailable)
	assert.Equal(t, false, avail)
}

func TestSession_RecognizerStartFailure(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	f.rec.startErr = errors.New("mic busy")

	assert.Error(t, f.s.Start(context.Background()))
	assert.Equal(t, Idle, f.s.State())
	assert.Zero(t, f.clock.Pending())
}

func TestSession_ResultsOutsideListeningAreIgnored(t *testing.T) {
	f := newSessionFixture(1500 * time.Millisecond)
	f.say("stray", true)

	final, display := f.s.Transcript()
	assert.Empty(t, final)
	assert.Empty(t, display)
	assert.Zero(t, f.view.Count(view.KindTranscript))
}
