package voice

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"speakerpanel/internal/device"
	"speakerpanel/internal/prefs"
	"speakerpanel/internal/view"
)

const (
	ConnectionErrorMessage = "Connection error. Is the speaker backend reachable?"
	GenericErrorMessage    = "The assistant could not answer."
)

type Assistant interface {
	ChatText(ctx context.Context, text string) (device.ChatReply, error)
	ChatBrowser(ctx context.Context, text string) (device.ChatReply, error)
	ChatDevice(ctx context.Context, text string) (device.ChatReply, error)
}

type PreferenceSource interface {
	Current() prefs.Preferences
}

type Player interface {
	Play(ctx context.Context, url string) error
}

type SelectionClearer interface {
	Clear()
}

// Pipeline sends one question at a time to the assistant and routes the
// answer. Typed and spoken input both enter through SmartSend.
type Pipeline struct {
	api       Assistant
	prefs     PreferenceSource
	player    Player
	selection SelectionClearer
	audioBase *url.URL
	sink      view.Sink
	log       zerolog.Logger

	busy atomic.Bool
}

// NewPipeline resolves relative reply audio URLs against audioBase.
func NewPipeline(api Assistant, pref PreferenceSource, player Player, selection SelectionClearer, audioBase string, sink view.Sink, log zerolog.Logger) *Pipeline {
	base, err := url.Parse(audioBase)
	if err != nil || audioBase == "" {
		base = nil
	}
	return &Pipeline{
		api:       api,
		prefs:     pref,
		player:    player,
		selection: selection,
		audioBase: base,
		sink:      sink,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

func (p *Pipeline) Busy() bool { return p.busy.Load() }

// SmartSend picks text-only or spoken output from the current preferences.
// A call made while another is in flight is dropped with ErrBusy. Send
// failures are rendered and reported as ErrSendFailed.
func (p *Pipeline) SmartSend(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if !p.busy.CompareAndSwap(false, true) {
		p.log.Debug().Msg("send in flight; dropping")
		return ErrBusy
	}
	p.sink.Render(view.Update{Kind: view.KindBusy, Data: true})
	defer func() {
		p.busy.Store(false)
		p.sink.Render(view.Update{Kind: view.KindBusy, Data: false})
	}()

	pr := p.prefs.Current()
	if !pr.AutoPlaySpoken {
		return p.sendText(ctx, text)
	}
	return p.sendVoice(ctx, text, pr.Target)
}

func (p *Pipeline) sendText(ctx context.Context, text string) error {
	reply, err := p.api.ChatText(ctx, text)
	if err := p.check(reply, err); err != nil {
		return err
	}
	p.renderExchange(text, reply)
	return nil
}

func (p *Pipeline) sendVoice(ctx context.Context, text string, target prefs.Target) error {
	var (
		reply device.ChatReply
		err   error
	)
	if target == prefs.TargetDevice {
		reply, err = p.api.ChatDevice(ctx, text)
	} else {
		reply, err = p.api.ChatBrowser(ctx, text)
	}
	if err := p.check(reply, err); err != nil {
		return err
	}
	p.renderExchange(text, reply)

	if target == prefs.TargetDevice {
		// the spoken reply now owns the device's output
		p.selection.Clear()
		return nil
	}
	if reply.AudioURL != "" {
		// a refused play degrades to the manual control; the exchange still succeeded
		_ = p.player.Play(ctx, p.resolve(reply.AudioURL))
	}
	return nil
}

func (p *Pipeline) check(reply device.ChatReply, err error) error {
	if err != nil {
		p.log.Warn().Err(err).Msg("assistant request failed")
		p.sink.Render(view.Update{Kind: view.KindError, Data: ConnectionErrorMessage})
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if !reply.Success {
		msg := reply.Error
		if msg == "" {
			msg = GenericErrorMessage
		}
		p.log.Info().Str("error", reply.Error).Msg("assistant reported failure")
		p.sink.Render(view.Update{Kind: view.KindError, Data: msg})
		return fmt.Errorf("%w: %s", ErrSendFailed, msg)
	}
	return nil
}

func (p *Pipeline) renderExchange(question string, reply device.ChatReply) {
	p.sink.Render(view.Update{Kind: view.KindExchange, Data: view.Exchange{
		Question:     question,
		Answer:       reply.Answer(),
		MemoryStored: reply.MemoryStored,
		MemoryCount:  reply.MemoryCount,
	}})
}

func (p *Pipeline) resolve(raw string) string {
	if p.audioBase == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return p.audioBase.ResolveReference(ref).String()
}
