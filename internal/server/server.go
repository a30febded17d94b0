package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"speakerpanel/internal/bridge"
	"speakerpanel/internal/panel"
	"speakerpanel/internal/prefs"
	"speakerpanel/internal/voice"
)

const maxBody = 64 << 10

type Config struct {
	Bind              string
	Port              int
	ReadHeaderTimeout time.Duration
	AllowedOrigins    []string
}

// Server is the local surface the page talks to: one SSE stream out and
// one POST per gesture in.
type Server struct {
	cfg   Config
	hub   *Hub
	panel *panel.Panel
	log   zerolog.Logger
}

func New(cfg Config, hub *Hub, p *panel.Panel, log zerolog.Logger) *Server {
	if cfg.Bind == "" {
		cfg.Bind = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 5080
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	return &Server{
		cfg:   cfg,
		hub:   hub,
		panel: p,
		log:   log.With().Str("component", "server").Logger(),
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("http://%s:%d", s.cfg.Bind, s.cfg.Port)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /events", s.hub)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ui/state", s.handleState)

	mux.HandleFunc("POST /ui/visibility", s.handleVisibility)
	mux.HandleFunc("POST /ui/transport/{action}", s.handleTransport)
	mux.HandleFunc("POST /ui/volume", s.handleVolume)
	mux.HandleFunc("POST /ui/seek", s.handleSeek)

	mux.HandleFunc("GET /ui/{kind}", s.handleCatalog)
	mux.HandleFunc("POST /ui/{kind}/{name}", s.handleMediaPlay)

	mux.HandleFunc("POST /ui/mic", s.handleMic)
	mux.HandleFunc("POST /ui/speech", s.handleSpeech)
	mux.HandleFunc("POST /ui/capabilities", s.handleCapabilities)
	mux.HandleFunc("POST /ui/send", s.handleSend)
	mux.HandleFunc("POST /ui/audio/ack", s.handleAudioAck)
	mux.HandleFunc("POST /ui/audio/manual", s.handleManualPlay)

	mux.HandleFunc("GET /ui/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /ui/preferences", s.handlePutPreferences)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	return c.Handler(mux)
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	// shutdown
	go func() {
		<-ctx.Done()
		s.hub.Close()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"updates": s.hub.State()})
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visible bool `json:"visible"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.panel.Status.SetVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	res, err := s.panel.Controls.Transport(r.Context(), r.PathValue("action"))
	if errors.Is(err, panel.ErrUnknownAction) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level int `json:"level"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.panel.Controls.SetVolume(req.Level)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fraction float64 `json:"fraction"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.panel.Controls.Seek(r.Context(), req.Fraction)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	b, ok := s.panel.Browser(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": b.Kind(), "entries": b.Entries()})
}

func (s *Server) handleMediaPlay(w http.ResponseWriter, r *http.Request) {
	b, ok := s.panel.Browser(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, b.Play(r.Context(), r.PathValue("name")))
}

func (s *Server) handleMic(w http.ResponseWriter, r *http.Request) {
	err := s.panel.Session.Toggle(r.Context())
	switch {
	case errors.Is(err, voice.ErrUnavailable), errors.Is(err, voice.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"state": s.panel.Session.State().String()})
	}
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var ev voice.Event
	if !decode(w, r, &ev) {
		return
	}
	s.panel.Session.HandleEvent(ev)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speech bool `json:"speech"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.panel.Session.SetAvailable(req.Speech)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	err := s.panel.Send(r.Context(), req.Text)
	switch {
	case errors.Is(err, voice.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, voice.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		// already rendered to the page
		writeError(w, http.StatusBadGateway, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleAudioAck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		OK     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.panel.Audio.Ack(req.ID, req.OK, req.Reason); err != nil {
		if errors.Is(err, bridge.ErrUnknownRequest) {
			writeError(w, http.StatusGone, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManualPlay(w http.ResponseWriter, r *http.Request) {
	err := s.panel.Output.PlayManual(r.Context())
	switch {
	case errors.Is(err, voice.ErrNothingPending):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusConflict, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Prefs.Current())
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p prefs.Preferences
	if !decode(w, r, &p) {
		return
	}
	if err := s.panel.Prefs.Update(r.Context(), p); err != nil {
		if errors.Is(err, prefs.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.log.Error().Err(err).Msg("failed to save preferences")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
