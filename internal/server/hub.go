package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"

	"speakerpanel/internal/view"
)

// Stream is the SSE stream every panel update is published on.
const Stream = "panel"

// commands addressed to the page; replaying them to a late subscriber
// would start a recognizer or a sound nobody asked for
var transient = map[view.Kind]bool{
	view.KindRecognizer: true,
	view.KindAudio:      true,
	view.KindError:      true,
}

// Hub is the view.Sink the panel renders into. Updates are pushed to
// subscribers of /events?stream=panel; the latest update of each kind is
// kept so a page that connects late can catch up through /ui/state.
type Hub struct {
	sse *sse.Server
	log zerolog.Logger

	mu     sync.Mutex
	latest map[view.Kind]view.Update
	order  []view.Kind
}

func NewHub(log zerolog.Logger) *Hub {
	s := sse.New()
	s.AutoReplay = false
	s.CreateStream(Stream)
	return &Hub{
		sse:    s,
		log:    log.With().Str("component", "hub").Logger(),
		latest: make(map[view.Kind]view.Update),
	}
}

func (h *Hub) Render(u view.Update) {
	b, err := json.Marshal(u)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(u.Kind)).Msg("failed to encode update")
		return
	}

	if !transient[u.Kind] {
		h.mu.Lock()
		if _, seen := h.latest[u.Kind]; !seen {
			h.order = append(h.order, u.Kind)
		}
		h.latest[u.Kind] = u
		h.mu.Unlock()
	}

	h.sse.Publish(Stream, &sse.Event{Event: []byte(u.Kind), Data: b})
}

// State returns the latest update of each kind in first-seen order.
func (h *Hub) State() []view.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]view.Update, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.latest[k])
	}
	return out
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.sse.ServeHTTP(w, r)
}

func (h *Hub) Close() { h.sse.Close() }
