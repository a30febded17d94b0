package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"speakerpanel/internal/config"
	"speakerpanel/internal/panel"
	"speakerpanel/internal/prefs"
	"speakerpanel/internal/schedule"
	"speakerpanel/internal/server"
)

func main() {
	var cfgPath string

	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to config YAML")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.Panel.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	// Context / shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store prefs.Store
	sqlite, err := prefs.OpenSQLite(cfg.Preferences.DBPath, log.Logger)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Preferences.DBPath).Msg("preferences database unavailable; changes will not survive a restart")
		store = prefs.NewMemoryStore()
	} else {
		defer sqlite.Close()
		store = sqlite
	}

	sched := schedule.NewCron(log.Logger)
	defer sched.Stop()

	hub := server.NewHub(log.Logger)

	p, err := panel.New(cfg, store, sched, hub, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build panel")
	}

	srv := server.New(server.Config{
		Bind:              cfg.Server.Bind,
		Port:              cfg.Server.Port,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.ToDuration(),
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}, hub, p, log.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		p.Start(gctx)
		<-gctx.Done()
		p.Stop()
		return nil
	})

	log.Info().
		Str("addr", srv.Addr()).
		Str("device", cfg.Device.BaseURL).
		Msg("running. Open the panel in your browser")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("http server stopped with error")
	}
	log.Info().Msg("shutting down")
}
