// Package prefs keeps the few user choices that outlive a page visit:
// where spoken replies go, whether replies are spoken at all, and how
// much silence ends an utterance.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speakerpanel/internal/view"
)

type Target string

const (
	TargetBrowser Target = "browser"
	TargetDevice  Target = "device"
)

func (t Target) Valid() bool { return t == TargetBrowser || t == TargetDevice }

const (
	KeyOutputTarget     = "output_target"
	KeySilenceThreshold = "silence_threshold_seconds"
	KeyAutoPlaySpoken   = "auto_play_spoken"
)

const (
	minSilenceThreshold = 300 * time.Millisecond
	maxSilenceThreshold = 10 * time.Second
)

type Preferences struct {
	Target           Target        `json:"target"`
	AutoPlaySpoken   bool          `json:"auto_play_spoken"`
	SilenceThreshold time.Duration `json:"-"`
}

type wirePreferences struct {
	Target                  Target  `json:"target"`
	AutoPlaySpoken          bool    `json:"auto_play_spoken"`
	SilenceThresholdSeconds float64 `json:"silence_threshold_seconds"`
}

func (p Preferences) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePreferences{
		Target:                  p.Target,
		AutoPlaySpoken:          p.AutoPlaySpoken,
		SilenceThresholdSeconds: p.SilenceThreshold.Seconds(),
	})
}

func (p *Preferences) UnmarshalJSON(b []byte) error {
	var w wirePreferences
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p.Target = w.Target
	p.AutoPlaySpoken = w.AutoPlaySpoken
	p.SilenceThreshold = time.Duration(w.SilenceThresholdSeconds * float64(time.Second))
	return nil
}

func Default() Preferences {
	return Preferences{
		Target:           TargetBrowser,
		AutoPlaySpoken:   true,
		SilenceThreshold: 1500 * time.Millisecond,
	}
}

func (p Preferences) Validate() error {
	if !p.Target.Valid() {
		return fmt.Errorf("unknown output target %q", p.Target)
	}
	if p.SilenceThreshold < minSilenceThreshold || p.SilenceThreshold > maxSilenceThreshold {
		return fmt.Errorf("silence threshold %s outside %s..%s", p.SilenceThreshold, minSilenceThreshold, maxSilenceThreshold)
	}
	return nil
}

func (p Preferences) encode() map[string]string {
	return map[string]string{
		KeyOutputTarget:     string(p.Target),
		KeySilenceThreshold: strconv.FormatFloat(p.SilenceThreshold.Seconds(), 'f', -1, 64),
		KeyAutoPlaySpoken:   strconv.FormatBool(p.AutoPlaySpoken),
	}
}

// decode overlays stored values on def; absent or unreadable keys keep
// the default.
func decode(values map[string]string, def Preferences) Preferences {
	p := def
	if v, ok := values[KeyOutputTarget]; ok && Target(v).Valid() {
		p.Target = Target(v)
	}
	if v, ok := values[KeyAutoPlaySpoken]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.AutoPlaySpoken = b
		}
	}
	if v, ok := values[KeySilenceThreshold]; ok {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			d := time.Duration(secs * float64(time.Second))
			if d >= minSilenceThreshold && d <= maxSilenceThreshold {
				p.SilenceThreshold = d
			}
		}
	}
	return p
}

// Store persists raw key/value pairs.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
}

// Service holds the current preferences in memory and writes changes
// through to the store.
type Service struct {
	store Store
	def   Preferences
	sink  view.Sink
	log   zerolog.Logger

	mu  sync.RWMutex
	cur Preferences
}

func NewService(store Store, def Preferences, sink view.Sink, log zerolog.Logger) *Service {
	if def.Validate() != nil {
		def = Default()
	}
	return &Service{
		store: store,
		def:   def,
		cur:   def,
		sink:  sink,
		log:   log.With().Str("component", "prefs").Logger(),
	}
}

// Load reads stored preferences. On a store failure the defaults stay in
// effect and the error is returned for logging.
func (s *Service) Load(ctx context.Context) (Preferences, error) {
	values, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load preferences; using defaults")
		return s.Current(), err
	}

	p := decode(values, s.def)
	s.mu.Lock()
	s.cur = p
	s.mu.Unlock()

	s.sink.Render(view.Update{Kind: view.KindPreferences, Data: p})
	return p, nil
}

func (s *Service) Current() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

var ErrInvalid = errors.New("invalid preferences")

// Update validates and persists p, then makes it current.
func (s *Service) Update(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.store.Save(ctx, p.encode()); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}

	s.mu.Lock()
	s.cur = p
	s.mu.Unlock()

	s.log.Info().Str("target", string(p.Target)).Bool("auto_play", p.AutoPlaySpoken).
		Dur("silence", p.SilenceThreshold).Msg("preferences updated")
	s.sink.Render(view.Update{Kind: view.KindPreferences, Data: p})
	return nil
}
