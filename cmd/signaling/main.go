package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/config"
	"github.com/mossy-p/proctor-signaling/internal/eventlog"
	"github.com/mossy-p/proctor-signaling/internal/handlers"
	"github.com/mossy-p/proctor-signaling/internal/middleware"
	"github.com/mossy-p/proctor-signaling/internal/redis"
	"github.com/mossy-p/proctor-signaling/internal/relay"
	"github.com/mossy-p/proctor-signaling/internal/signaling"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Connect to Redis
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	store, err := redis.Connect(pingCtx, cfg.Redis)
	pingCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer store.Close()
	log.Info().Str("addr", cfg.Redis.Host+":"+cfg.Redis.Port).Msg("Redis connection established")

	events := eventlog.New(store, eventlog.Options{
		QueueSize:    cfg.Events.QueueSize,
		WriteTimeout: cfg.Events.WriteTimeout,
	})

	manager := signaling.NewManager(events)
	deps := handlers.SignalingDeps{
		Manager:  manager,
		Router:   signaling.NewRouter(manager, relay.New(cfg.Relay.VideoServerURL, cfg.Relay.Timeout)),
		Resolver: middleware.NewResolver(cfg.JWTSecret),
		Origins:  handlers.NewOrigins(cfg.AllowedOrigins),
		Socket:   cfg.Socket,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.SetupRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("video_server", cfg.Relay.VideoServerURL).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Hijacked websockets are not tracked by Shutdown.
	manager.CloseAll()

	if err := events.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Uint64("dropped", events.Dropped()).Msg("event log not fully drained")
	}
	log.Info().Msg("server exited gracefully")
}
