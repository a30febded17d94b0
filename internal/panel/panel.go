// Package panel assembles the control panel from its parts and exposes the
// gestures the local surface forwards.
package panel

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"speakerpanel/internal/artwork"
	"speakerpanel/internal/bridge"
	"speakerpanel/internal/command"
	"speakerpanel/internal/config"
	"speakerpanel/internal/device"
	"speakerpanel/internal/health"
	"speakerpanel/internal/media"
	"speakerpanel/internal/prefs"
	"speakerpanel/internal/schedule"
	"speakerpanel/internal/status"
	"speakerpanel/internal/view"
	"speakerpanel/internal/voice"
)

type Panel struct {
	Device     *device.Client
	Gateway    *command.Gateway
	Status     *status.Poller
	Selection  *media.Selection
	Radio      *media.Browser
	Video      *media.Browser
	Prefs      *prefs.Service
	Recognizer *bridge.Recognizer
	Audio      *bridge.Audio
	Output     *voice.Output
	Pipeline   *voice.Pipeline
	Session    *voice.Session
	Health     *health.Monitor
	Controls   *Controls

	art *artwork.Sink
	log zerolog.Logger
}

// New wires every component against one device client and one sink.
func New(cfg config.Config, store prefs.Store, sched schedule.Scheduler, sink view.Sink, log zerolog.Logger) (*Panel, error) {
	api, err := device.NewClient(device.Config{
		BaseURL:   cfg.Device.BaseURL,
		Timeout:   cfg.Device.Timeout.ToDuration(),
		UserAgent: cfg.Device.UserAgent,
	}, log)
	if err != nil {
		return nil, err
	}

	p := &Panel{Device: api, log: log.With().Str("component", "panel").Logger()}

	if cfg.Artwork.Enabled {
		ex, err := artwork.NewExtractor(artwork.Config{
			CacheSize: cfg.Artwork.CacheSize,
			Timeout:   cfg.Artwork.Timeout.ToDuration(),
			UserAgent: cfg.Device.UserAgent,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("artwork: %w", err)
		}
		p.art = artwork.NewSink(sink, ex, log)
		sink = p.art
	}

	p.Status = status.NewPoller(api, sink, sched, cfg.Panel.StatusInterval.ToDuration(), log)
	p.Gateway = command.NewGateway(api, p.Status, sched, command.Delays{
		Generic:    cfg.Delays.Command.ToDuration(),
		MediaStart: cfg.Delays.MediaStart.ToDuration(),
		VideoStart: cfg.Delays.VideoStart.ToDuration(),
		Seek:       cfg.Delays.Seek.ToDuration(),
	}, log)
	delays := p.Gateway.Delays()

	p.Selection = media.NewSelection(sink)
	p.Radio = media.NewRadio(api, p.Gateway, p.Selection, sink, delays.MediaStart, log)
	p.Video = media.NewVideo(api, p.Gateway, p.Selection, sink, delays.VideoStart, log)

	p.Prefs = prefs.NewService(store, prefs.Preferences{
		Target:           prefs.Target(cfg.Preferences.Target),
		AutoPlaySpoken:   cfg.Preferences.AutoPlaySpoken,
		SilenceThreshold: cfg.Preferences.SilenceThreshold.ToDuration(),
	}, sink, log)

	p.Recognizer = bridge.NewRecognizer(sink)
	p.Audio = bridge.NewAudio(sink, cfg.Server.AudioAckTimeout.ToDuration(), log)
	p.Output = voice.NewOutput(p.Audio, sink, log)
	p.Pipeline = voice.NewPipeline(api, p.Prefs, p.Output, p.Selection, api.BaseURL(), sink, log)
	p.Session = voice.NewSession(p.Recognizer, p.Pipeline, p.Output, sched, sink, voice.SessionConfig{
		Tick:   cfg.Panel.SilenceTick.ToDuration(),
		Settle: cfg.Panel.SubmitSettle.ToDuration(),
		Threshold: func() time.Duration {
			return p.Prefs.Current().SilenceThreshold
		},
	}, log)

	p.Health = health.NewMonitor(api, sink, sched, cfg.Panel.HealthInterval.ToDuration(), log)
	p.Controls = NewControls(p.Gateway, p.Status, sched, delays.Generic, delays.Seek, cfg.Panel.VolumeDebounce.ToDuration(), sink, log)

	return p, nil
}

// Start loads preferences and catalogs, then begins polling status and
// health. Load failures are logged; the panel runs with what it has.
func (p *Panel) Start(ctx context.Context) {
	if _, err := p.Prefs.Load(ctx); err != nil {
		p.log.Warn().Err(err).Msg("preferences unavailable")
	}
	for _, b := range []*media.Browser{p.Radio, p.Video} {
		if _, err := b.Load(ctx); err != nil {
			p.log.Warn().Err(err).Str("kind", string(b.Kind())).Msg("catalog load failed")
		}
	}
	p.Status.Start(ctx)
	p.Health.Start(ctx)
	p.log.Info().Str("device", p.Device.BaseURL()).Msg("panel started")
}

func (p *Panel) Stop() {
	p.Status.Stop()
	p.Health.Stop()
	if p.art != nil {
		p.art.Wait()
	}
}

// Browser returns the media browser for kind.
func (p *Panel) Browser(kind string) (*media.Browser, bool) {
	switch media.Kind(kind) {
	case media.Radio:
		return p.Radio, true
	case media.Video:
		return p.Video, true
	default:
		return nil, false
	}
}

// Send is the typed-input gesture. The gesture also unlocks audio output
// so the spoken reply can play.
func (p *Panel) Send(ctx context.Context, text string) error {
	p.Output.Unlock(ctx)
	return p.Pipeline.SmartSend(ctx, text)
}
