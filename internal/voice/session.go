// Package voice runs the conversational side of the panel: capturing an
// utterance, deciding when it has ended, sending it to the assistant and
// playing the spoken reply.
package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speakerpanel/internal/schedule"
	"speakerpanel/internal/view"
)

type State int

const (
	Idle State = iota
	Listening
	Sending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Sending:
		return "sending"
	default:
		return "unknown"
	}
}

// PermissionMessage is shown when the user or platform denies the microphone.
const PermissionMessage = "Microphone access was denied. Allow it in the browser settings to use voice input."

// Submitter receives finished utterances.
type Submitter interface {
	SmartSend(ctx context.Context, text string) error
	Busy() bool
}

// Unlocker prepares audio output on a user gesture.
type Unlocker interface {
	Unlock(ctx context.Context)
}

type SessionConfig struct {
	// Tick is how often elapsed silence is checked.
	Tick time.Duration
	// Settle is the pause between filling the input and submitting it.
	Settle time.Duration
	// Threshold returns the silence that ends an utterance. It is read
	// once per session.
	Threshold func() time.Duration
}

// Session is the voice capture state machine:
//
//	Idle -> Listening -> Idle
//	                  -> Sending -> Idle
//
// Only a user gesture leaves Idle. Silence is the only transition the
// session triggers by itself.
type Session struct {
	rec    Recognizer
	submit Submitter
	unlock Unlocker
	sched  schedule.Scheduler
	sink   view.Sink
	cfg    SessionConfig
	log    zerolog.Logger

	mu            sync.Mutex
	state         State
	available     bool
	id            string
	transcript    Transcript
	startedAt     time.Time
	lastSpeech    time.Time
	limit         time.Duration
	silence       schedule.Task
	stopRequested bool
	stoppedByUser bool
}

func NewSession(rec Recognizer, submit Submitter, unlock Unlocker, sched schedule.Scheduler, sink view.Sink, cfg SessionConfig, log zerolog.Logger) *Session {
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Threshold == nil {
		cfg.Threshold = func() time.Duration { return 1500 * time.Millisecond }
	}
	return &Session{
		rec:    rec,
		submit: submit,
		unlock: unlock,
		sched:  sched,
		sink:   sink,
		cfg:    cfg,
		log:    log.With().Str("component", "voice").Logger(),
	}
}

// SetAvailable records whether the platform can capture speech at all.
// Without it the microphone control stays hidden and Start always fails.
func (s *Session) SetAvailable(ok bool) {
	s.mu.Lock()
	s.available = ok
	s.mu.Unlock()
	s.sink.Render(view.Update{Kind: view.KindMicAvailable, Data: ok})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the retained final text and the current display text.
func (s *Session) Transcript() (final, display string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Final(), s.transcript.Display()
}

// Toggle is the microphone control's gesture: it starts a session when
// idle and stops the running one otherwise.
func (s *Session) Toggle(ctx context.Context) error {
	if s.State() == Listening {
		s.Stop()
		return nil
	}
	return s.Start(ctx)
}

// Start begins listening. It fails with ErrUnavailable when the platform
// cannot capture speech and with ErrBusy while a session or a send is in
// progress. Audio is unlocked on the same gesture before capture begins;
// the silence clock starts once the recognizer is running.
func (s *Session) Start(ctx context.Context) error {
	if err := s.startable(); err != nil {
		return err
	}

	s.unlock.Unlock(ctx)

	s.mu.Lock()
	if err := s.startableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = Listening
	s.id = uuid.NewString()
	s.transcript.Reset()
	s.startedAt = s.sched.Now()
	s.limit = s.cfg.Threshold()
	s.stopRequested = false
	s.stoppedByUser = false
	id, limit := s.id, s.limit
	s.mu.Unlock()

	s.log.Info().Str("session", id).Dur("silence", limit).Msg("listening")
	s.sink.Render(view.Update{Kind: view.KindListening, Data: true})
	s.sink.Render(view.Update{Kind: view.KindTranscript, Data: view.Transcript{}})

	if err := s.rec.Start(); err != nil {
		s.log.Warn().Err(err).Str("session", id).Msg("recognizer failed to start")
		s.mu.Lock()
		if s.state == Listening && s.id == id {
			s.resetLocked()
		}
		s.mu.Unlock()
		s.sink.Render(view.Update{Kind: view.KindListening, Data: false})
		return err
	}

	s.mu.Lock()
	if s.state == Listening && s.id == id && !s.stopRequested {
		s.lastSpeech = s.sched.Now()
		s.silence = s.sched.Every(s.cfg.Tick, s.checkSilence)
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) startable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startableLocked()
}

func (s *Session) startableLocked() error {
	if !s.available {
		return ErrUnavailable
	}
	if s.state != Idle || s.submit.Busy() {
		return ErrBusy
	}
	return nil
}

// Stop ends listening on the user's request. Whatever final text has been
// recognized is still submitted once the recognizer reports its end. A stop
// already sent on silence is sent again.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Listening || s.stoppedByUser {
		s.mu.Unlock()
		return
	}
	s.stoppedByUser = true
	s.stopRequested = true
	s.stopSilenceLocked()
	id := s.id
	s.mu.Unlock()

	s.log.Debug().Str("session", id).Msg("stop requested by user")
	s.rec.Stop()
}

// HandleEvent applies one recognizer callback.
func (s *Session) HandleEvent(ev Event) {
	switch ev.Type {
	case EventStart:
		s.log.Debug().Msg("recognizer started")
	case EventResult:
		s.onResult(ev.Segments)
	case EventError:
		s.onError(ev.Error)
	case EventEnd:
		s.onEnd()
	default:
		s.log.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown recognizer event")
	}
}

func (s *Session) onResult(segments []Segment) {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return
	}
	s.transcript.Apply(segments)
	// any speech, interim or final, restarts the silence clock
	s.lastSpeech = s.sched.Now()
	tv := view.Transcript{
		Final:   s.transcript.Final(),
		Interim: s.transcript.Interim(),
		Display: s.transcript.Display(),
	}
	s.mu.Unlock()

	s.sink.Render(view.Update{Kind: view.KindTranscript, Data: tv})
}

func (s *Session) onError(code string) {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return
	}
	id := s.id

	switch classify(code) {
	case errorNoSpeech:
		if s.transcript.Final() != "" {
			// the utterance ended before the recognizer noticed; treat it as done
			text := s.finishLocked()
			s.mu.Unlock()
			s.log.Debug().Str("session", id).Msg("no-speech after speech; submitting")
			s.afterFinish(text)
			return
		}
		s.resetLocked()
		s.mu.Unlock()
		s.log.Debug().Str("session", id).Msg("no speech detected")
		s.sink.Render(view.Update{Kind: view.KindListening, Data: false})

	case errorPermission:
		s.resetLocked()
		s.mu.Unlock()
		s.log.Warn().Str("session", id).Str("code", code).Msg("microphone permission denied")
		s.sink.Render(view.Update{Kind: view.KindListening, Data: false})
		s.sink.Render(view.Update{Kind: view.KindError, Data: PermissionMessage})

	default:
		s.resetLocked()
		s.mu.Unlock()
		s.log.Debug().Str("session", id).Str("code", code).Msg("recognizer error")
		s.sink.Render(view.Update{Kind: view.KindListening, Data: false})
	}
}

func (s *Session) onEnd() {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return
	}
	byUser := s.stoppedByUser
	id := s.id
	dur := s.sched.Now().Sub(s.startedAt)
	text := s.finishLocked()
	s.mu.Unlock()

	s.log.Info().Str("session", id).Bool("by_user", byUser).Dur("duration", dur).
		Bool("submit", text != "").Msg("listening ended")
	s.afterFinish(text)
}

// finishLocked leaves Listening. With retained text the session moves to
// Sending and the text is returned for submission; otherwise it is Idle.
func (s *Session) finishLocked() string {
	text := s.transcript.Final()
	if text == "" {
		s.resetLocked()
		return ""
	}
	s.stopSilenceLocked()
	s.state = Sending
	return text
}

func (s *Session) afterFinish(text string) {
	s.sink.Render(view.Update{Kind: view.KindListening, Data: false})
	if text == "" {
		return
	}
	s.sink.Render(view.Update{Kind: view.KindInput, Data: text})
	s.sched.After(s.cfg.Settle, func() { s.autoSubmit(text) })
}

func (s *Session) autoSubmit(text string) {
	err := s.submit.SmartSend(context.Background(), text)
	switch {
	case errors.Is(err, ErrBusy):
		s.log.Info().Msg("send already in flight; utterance dropped")
	case err != nil:
		s.log.Debug().Err(err).Msg("auto-submit finished with error")
	}

	s.mu.Lock()
	if s.state == Sending {
		s.state = Idle
	}
	s.mu.Unlock()
}

// checkSilence runs every tick while listening.
func (s *Session) checkSilence() {
	s.mu.Lock()
	if s.state != Listening || s.stopRequested {
		s.mu.Unlock()
		return
	}
	elapsed := s.sched.Now().Sub(s.lastSpeech)
	if elapsed < s.limit {
		s.mu.Unlock()
		return
	}
	s.stopRequested = true
	s.stopSilenceLocked()
	id := s.id
	s.mu.Unlock()

	s.log.Debug().Str("session", id).Dur("silence", elapsed).Msg("silence detected; stopping recognizer")
	s.rec.Stop()
}

func (s *Session) resetLocked() {
	s.stopSilenceLocked()
	s.state = Idle
}

func (s *Session) stopSilenceLocked() {
	if s.silence != nil {
		s.silence.Stop()
		s.silence = nil
	}
}
