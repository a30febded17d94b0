// Package media lists radio stations and video clips and tracks which one
// the panel last started.
package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"speakerpanel/internal/device"
	"speakerpanel/internal/view"
)

type Kind string

const (
	Radio Kind = "radio"
	Video Kind = "video"
)

// Selection holds at most one active entry across both kinds.
type Selection struct {
	sink view.Sink

	mu   sync.Mutex
	kind Kind
	name string
}

func NewSelection(sink view.Sink) *Selection {
	return &Selection{sink: sink}
}

// Select makes kind:name the only selected entry.
func (s *Selection) Select(kind Kind, name string) {
	s.mu.Lock()
	s.kind, s.name = kind, name
	s.mu.Unlock()
	s.sink.Render(view.Update{Kind: view.KindSelection, Data: view.Selection{Kind: string(kind), Name: name}})
}

// Clear drops any selection, e.g. when a spoken reply takes over the device.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.kind, s.name = "", ""
	s.mu.Unlock()
	s.sink.Render(view.Update{Kind: view.KindSelection, Data: view.Selection{}})
}

// Current returns the selected entry; kind is empty when nothing is selected.
func (s *Selection) Current() (Kind, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind, s.name
}

func (s *Selection) Is(kind Kind, name string) bool {
	k, n := s.Current()
	return k == kind && n == name
}

type Issuer interface {
	Issue(ctx context.Context, path string, delay time.Duration) device.Result
}

// Browser is one media list: it fetches a catalog and starts entries.
type Browser struct {
	kind       Kind
	fetch      func(ctx context.Context) ([]string, error)
	playPath   func(name string) string
	startDelay time.Duration

	cmd  Issuer
	sel  *Selection
	sink view.Sink
	log  zerolog.Logger

	mu      sync.Mutex
	entries []string
}

func NewRadio(api *device.Client, cmd Issuer, sel *Selection, sink view.Sink, startDelay time.Duration, log zerolog.Logger) *Browser {
	return NewBrowser(Radio, api.Stations, device.RadioPlayPath, cmd, sel, sink, startDelay, log)
}

func NewVideo(api *device.Client, cmd Issuer, sel *Selection, sink view.Sink, startDelay time.Duration, log zerolog.Logger) *Browser {
	return NewBrowser(Video, api.Videos, device.VideoPlayPath, cmd, sel, sink, startDelay, log)
}

func NewBrowser(
	kind Kind,
	fetch func(ctx context.Context) ([]string, error),
	playPath func(name string) string,
	cmd Issuer,
	sel *Selection,
	sink view.Sink,
	startDelay time.Duration,
	log zerolog.Logger,
) *Browser {
	return &Browser{
		kind:       kind,
		fetch:      fetch,
		playPath:   playPath,
		startDelay: startDelay,
		cmd:        cmd,
		sel:        sel,
		sink:       sink,
		log:        log.With().Str("component", "media").Str("kind", string(kind)).Logger(),
	}
}

func (b *Browser) Kind() Kind { return b.kind }

// Load fetches the catalog and renders it in backend order.
func (b *Browser) Load(ctx context.Context) ([]string, error) {
	names, err := b.fetch(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to load catalog")
		return nil, err
	}

	b.mu.Lock()
	b.entries = append([]string(nil), names...)
	b.mu.Unlock()

	b.render()
	return names, nil
}

func (b *Browser) Entries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.entries...)
}

// Play starts name on the device. A successful start selects it, which
// clears whatever was selected in either list.
func (b *Browser) Play(ctx context.Context, name string) device.Result {
	res := b.cmd.Issue(ctx, b.playPath(name), b.startDelay)
	if !res.Success {
		b.log.Warn().Str("name", name).Str("error", res.Error).Msg("failed to start")
		return res
	}
	b.sel.Select(b.kind, name)
	return res
}

func (b *Browser) render() {
	names := b.Entries()
	entries := make([]view.Entry, 0, len(names))
	for _, n := range names {
		entries = append(entries, view.Entry{
			ID:       EntryID(b.kind, n),
			Name:     n,
			Selected: b.sel.Is(b.kind, n),
		})
	}
	b.sink.Render(view.Update{Kind: view.KindCatalog, Data: view.Catalog{Kind: string(b.kind), Entries: entries}})
}

// EntryID is a stable identifier for a catalog entry, independent of its
// position in the list.
func EntryID(kind Kind, name string) string {
	return fmt.Sprintf("%s:%x", kind, xxhash.Sum64String(string(kind)+"-"+name))
}
