// Package health probes the assistant backend and keeps the status line
// current.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speakerpanel/internal/device"
	"speakerpanel/internal/schedule"
	"speakerpanel/internal/view"
)

type Prober interface {
	Health(ctx context.Context) (device.Health, error)
}

type Monitor struct {
	api      Prober
	sink     view.Sink
	sched    schedule.Scheduler
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	task    schedule.Task
	last    device.Health
	lastErr error
	checked time.Time
}

func NewMonitor(api Prober, sink view.Sink, sched schedule.Scheduler, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		api:      api,
		sink:     sink,
		sched:    sched,
		interval: interval,
		log:      log.With().Str("component", "health").Logger(),
	}
}

// Start probes once and then every interval until Stop.
func (m *Monitor) Start(ctx context.Context) {
	m.Probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task != nil {
		return
	}
	m.task = m.sched.Every(m.interval, func() { m.Probe(ctx) })
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task != nil {
		m.task.Stop()
		m.task = nil
	}
}

// Probe asks the backend for its capabilities and renders the result.
func (m *Monitor) Probe(ctx context.Context) {
	h, err := m.api.Health(ctx)

	m.mu.Lock()
	prevErr, prevUp := m.lastErr, m.last.APIAvailable
	m.last, m.lastErr = h, err
	m.checked = m.sched.Now()
	m.mu.Unlock()

	switch {
	case err != nil && prevErr == nil:
		m.log.Warn().Err(err).Msg("assistant health probe failed")
	case err == nil && h.APIAvailable != prevUp:
		m.log.Info().Bool("available", h.APIAvailable).Str("llm", h.LLM).Msg("assistant availability changed")
	}

	m.sink.Render(view.Update{Kind: view.KindStatusLine, Data: StatusLine(h, err)})
}

// Last returns the most recent probe result and when it was taken.
func (m *Monitor) Last() (device.Health, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.checked, m.lastErr
}

const (
	LineUnreachable = "Assistant unreachable"
	LineOffline     = "Assistant offline"
)

// StatusLine describes a probe result in one line.
func StatusLine(h device.Health, err error) string {
	if err != nil {
		return LineUnreachable
	}
	if !h.APIAvailable {
		return LineOffline
	}

	parts := []string{"Assistant ready"}
	if h.LLM != "" {
		parts = append(parts, "LLM: "+h.LLM)
	}
	if h.Voice != "" {
		parts = append(parts, "Voice: "+h.Voice)
	}
	if len(h.Models) > 0 {
		names := make([]string, 0, len(h.Models))
		for k := range h.Models {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s: %s", k, h.Models[k]))
		}
	}
	if h.MemoryAvailable {
		parts = append(parts, fmt.Sprintf("Memory: %d", h.MemoryCount))
	} else {
		parts = append(parts, "Memory: off")
	}
	return strings.Join(parts, " | ")
}
