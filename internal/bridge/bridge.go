// Package bridge drives the browser's speech recognizer and audio element
// from the panel. Commands go out as render updates; the browser reports
// back over the local HTTP surface.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speakerpanel/internal/view"
	"speakerpanel/internal/voice"
)

var ErrUnknownRequest = errors.New("bridge: unknown playback request")

type RecognizerCommand struct {
	Action string `json:"action"` // start | stop
}

type AudioCommand struct {
	ID     string  `json:"id,omitempty"`
	Action string  `json:"action"` // play | pause | volume
	Src    string  `json:"src,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// Recognizer asks the browser to start or stop speech recognition. Its
// callbacks come back as voice.Events.
type Recognizer struct {
	sink view.Sink
}

func NewRecognizer(sink view.Sink) *Recognizer {
	return &Recognizer{sink: sink}
}

func (r *Recognizer) Start() error {
	r.sink.Render(view.Update{Kind: view.KindRecognizer, Data: RecognizerCommand{Action: "start"}})
	return nil
}

func (r *Recognizer) Stop() {
	r.sink.Render(view.Update{Kind: view.KindRecognizer, Data: RecognizerCommand{Action: "stop"}})
}

// Audio is a voice.Element backed by the browser's audio element. Play
// waits for the browser to acknowledge the request; only the most recent
// request is ever waited on.
type Audio struct {
	sink    view.Sink
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	pending string
	waiter  chan error
}

func NewAudio(sink view.Sink, ackTimeout time.Duration, log zerolog.Logger) *Audio {
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	return &Audio{
		sink:    sink,
		timeout: ackTimeout,
		log:     log.With().Str("component", "bridge_audio").Logger(),
	}
}

func (a *Audio) Play(ctx context.Context, src string) error {
	id := uuid.NewString()
	ch := make(chan error, 1)

	a.mu.Lock()
	if a.waiter != nil {
		a.waiter <- voice.ErrPlaybackSuperseded
	}
	a.pending, a.waiter = id, ch
	a.mu.Unlock()

	a.sink.Render(view.Update{Kind: view.KindAudio, Data: AudioCommand{ID: id, Action: "play", Src: src}})

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		a.mu.Lock()
		if a.pending == id {
			a.pending, a.waiter = "", nil
		}
		a.mu.Unlock()
		a.log.Debug().Str("id", id).Msg("no playback acknowledgement")
		return fmt.Errorf("%w: %v", voice.ErrPlaybackRejected, ctx.Err())
	}
}

// Ack resolves the pending play request id. A negative ack carries the
// browser's reason.
func (a *Audio) Ack(id string, ok bool, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id == "" || id != a.pending {
		return ErrUnknownRequest
	}

	var err error
	if !ok {
		if reason == "" {
			reason = "refused"
		}
		err = fmt.Errorf("%w: %s", voice.ErrPlaybackRejected, reason)
	}
	a.waiter <- err
	a.pending, a.waiter = "", nil
	return nil
}

func (a *Audio) Pause() {
	a.sink.Render(view.Update{Kind: view.KindAudio, Data: AudioCommand{Action: "pause"}})
}

func (a *Audio) SetVolume(v float64) {
	a.sink.Render(view.Update{Kind: view.KindAudio, Data: AudioCommand{Action: "volume", Volume: v}})
}
