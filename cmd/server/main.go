package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/studyhive/realtime/internal/adapters/http"
	"github.com/studyhive/realtime/internal/adapters/ingest"
	"github.com/studyhive/realtime/internal/adapters/store"
	"github.com/studyhive/realtime/internal/app"
	"github.com/studyhive/realtime/internal/auth"
	"github.com/studyhive/realtime/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("no signing secret configured")
	}

	hub := app.NewHub(app.NewRegistry(), app.NewRoomIndex(), app.NewPresenceTable())

	// Collaborators are optional: the hub's live fan-out works without
	// them, it just loses catch-up and injected events.
	if st, err := store.Connect(ctx, cfg.RedisAddr); err != nil {
		log.Error().Err(err).Msg("redis unavailable, catch-up and presence persist disabled")
	} else {
		defer st.Close()
		hub.Notifications = st
		hub.Presence = st
	}

	if mq, err := ingest.Connect(cfg.AmqpURL); err != nil {
		log.Error().Err(err).Msg("rabbitmq unavailable, injected events disabled")
	} else {
		defer mq.Close()
		consumer := ingest.New(mq, cfg.AmqpQueue, hub)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("ingest consumer stopped")
			}
		}()
	}

	authn := auth.New(cfg.Secret)
	r := router.SetupRouter(ctx, cfg, hub, authn)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("realtime hub started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
