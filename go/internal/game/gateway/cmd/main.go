package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/claimline/go/internal/config"
	"github.com/mcdev12/claimline/go/internal/game/auditlog"
	"github.com/mcdev12/claimline/go/internal/game/gateway"
	"github.com/mcdev12/claimline/go/internal/game/lifecycle"
	"github.com/mcdev12/claimline/go/internal/game/registry"
	"github.com/mcdev12/claimline/go/internal/game/stream"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(os.Getenv("CLAIMLINE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	audit, err := auditlog.NewFileLog(cfg.Log.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Log.Dir).Msg("failed to open audit log")
	}
	defer audit.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	var out lifecycle.Broadcaster = cm
	var streamInfo func() any
	if cfg.NATS.URL != "" {
		jsCfg := stream.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.StreamName
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		jsCfg.Memory = cfg.NATS.Memory

		publisher, err := stream.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Str("nats_url", cfg.NATS.URL).Msg("failed to create JetStream publisher")
		}
		defer publisher.Close()

		mirror := stream.NewMirror(cm, publisher, clock, 0)
		go mirror.Run(ctx)
		out = mirror
		streamInfo = func() any {
			return struct {
				Connected bool `json:"connected"`
				stream.MirrorStats
			}{publisher.Connected(), mirror.Stats()}
		}
	}

	engine := lifecycle.New(lifecycle.Options{
		Registry: registry.New(registry.Options{
			Clock:             clock,
			DefaultSettings:   cfg.Game.RoomDefaults(),
			SingleActiveMatch: cfg.Game.SingleActiveMatch,
		}),
		Broadcaster: out,
		Auditor:     audit,
		Clock:       clock,
		Timing:      cfg.Timing,
	})
	engine.EnsurePracticeRoom()

	svc := gateway.NewService(cm, engine)
	if streamInfo != nil {
		svc.AddInfo("stream", streamInfo)
	}
	go svc.Start(ctx)

	server := setupServer(cfg, svc)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("audit_dir", cfg.Log.Dir).
			Bool("single_active_match", cfg.Game.SingleActiveMatch).
			Bool("nats_mirror", cfg.NATS.URL != "").
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	engine.Close()
	cancel()

	log.Info().Msg("claimline shutdown complete")
}

func setupServer(cfg config.Config, svc *gateway.Service) *http.Server {
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
