package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speakerpanel/internal/view"
)

// Element is the platform's single audio player. Play returns once the
// platform has accepted or refused the request.
type Element interface {
	Play(ctx context.Context, src string) error
	Pause()
	SetVolume(v float64)
}

// SilentSample is a few milliseconds of silence as a WAV data URI, used to
// satisfy gesture-gated autoplay policies without an audible click.
var SilentSample = silentWAV(8000, 40)

const unlockVolume = 0.01

// DefaultUnlockTimeout bounds how long a gesture waits for the silent
// sample to be accepted.
const DefaultUnlockTimeout = time.Second

// Output owns the audio element. It unlocks it on the first gesture and
// falls back to a manual play control when the platform refuses playback.
type Output struct {
	el   Element
	sink view.Sink
	log  zerolog.Logger

	unlockTimeout time.Duration
	unlockMu      sync.Mutex
	unlocked      bool
	unlocking     bool

	mu      sync.Mutex
	current string
	manual  string
}

func NewOutput(el Element, sink view.Sink, log zerolog.Logger) *Output {
	return &Output{
		el:            el,
		sink:          sink,
		log:           log.With().Str("component", "audio").Logger(),
		unlockTimeout: DefaultUnlockTimeout,
	}
}

// Unlock plays the silent sample at minimal volume, pauses and restores
// full volume. It succeeds at most once; after a failed attempt the next
// gesture tries again. The attempt is bounded by the unlock timeout and a
// call made while another attempt is running returns at once.
func (o *Output) Unlock(ctx context.Context) {
	o.unlockMu.Lock()
	if o.unlocked || o.unlocking {
		o.unlockMu.Unlock()
		return
	}
	o.unlocking = true
	o.unlockMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.unlockTimeout)
	defer cancel()

	o.el.SetVolume(unlockVolume)
	err := o.el.Play(ctx, SilentSample)
	o.el.Pause()
	o.el.SetVolume(1)

	o.unlockMu.Lock()
	o.unlocking = false
	o.unlocked = err == nil
	o.unlockMu.Unlock()

	if err != nil {
		o.log.Debug().Err(err).Msg("audio unlock refused")
		return
	}
	o.log.Debug().Msg("audio unlocked")
}

func (o *Output) Unlocked() bool {
	o.unlockMu.Lock()
	defer o.unlockMu.Unlock()
	return o.unlocked
}

// Play starts url, replacing whatever was playing or pending. A refusal is
// not fatal: a manual play control bound to url is shown instead.
func (o *Output) Play(ctx context.Context, url string) error {
	o.mu.Lock()
	o.current = url
	hadManual := o.manual != ""
	o.manual = ""
	o.mu.Unlock()

	if hadManual {
		o.sink.Render(view.Update{Kind: view.KindManualPlay, Data: view.ManualPlay{}})
	}

	err := o.el.Play(ctx, url)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPlaybackSuperseded) {
		return nil
	}

	o.mu.Lock()
	if o.current != url {
		o.mu.Unlock()
		return nil
	}
	o.manual = url
	o.mu.Unlock()

	o.log.Warn().Err(err).Str("url", url).Msg("playback refused; offering manual play")
	o.sink.Render(view.Update{Kind: view.KindManualPlay, Data: view.ManualPlay{URL: url, Visible: true}})
	return err
}

// PlayManual is the manual play control's gesture. It replays the refused
// URL without asking the assistant again.
func (o *Output) PlayManual(ctx context.Context) error {
	o.mu.Lock()
	url := o.manual
	o.mu.Unlock()
	if url == "" {
		return ErrNothingPending
	}

	if err := o.el.Play(ctx, url); err != nil {
		o.log.Warn().Err(err).Str("url", url).Msg("manual playback failed")
		return err
	}

	o.mu.Lock()
	if o.manual == url {
		o.manual = ""
	}
	o.mu.Unlock()
	o.sink.Render(view.Update{Kind: view.KindManualPlay, Data: view.ManualPlay{}})
	return nil
}

// Pending returns the URL waiting behind the manual play control.
func (o *Output) Pending() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.manual
}

func silentWAV(sampleRate, millis int) string {
	samples := sampleRate * millis / 1000
	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	binary.Write(&buf, le, uint32(36+samples))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, le, uint32(16))
	binary.Write(&buf, le, uint16(1)) // PCM
	binary.Write(&buf, le, uint16(1)) // mono
	binary.Write(&buf, le, uint32(sampleRate))
	binary.Write(&buf, le, uint32(sampleRate)) // byte rate, 8-bit mono
	binary.Write(&buf, le, uint16(1))          // block align
	binary.Write(&buf, le, uint16(8))          // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, le, uint32(samples))
	// 8-bit PCM is unsigned; 128 is the zero line
	buf.Write(bytes.Repeat([]byte{128}, samples))

	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
