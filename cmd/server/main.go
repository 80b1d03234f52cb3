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

	router "github.com/firasmosbehi/microservice-chatapp/internal/adapters/http"
	"github.com/firasmosbehi/microservice-chatapp/internal/app"
	"github.com/firasmosbehi/microservice-chatapp/internal/auth"
	"github.com/firasmosbehi/microservice-chatapp/internal/config"
	"github.com/firasmosbehi/microservice-chatapp/internal/store"
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

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open message store")
	}

	verifier := auth.NewJWTVerifier(cfg.AuthSecret, cfg.AuthIssuer)
	registry := app.NewRegistry()
	rooms := app.NewRooms(st, st, cfg.RoomDrainTimeout)
	rooms.StartGC(ctx, cfg.RoomGCInterval)
	pipeline := app.NewPipeline(st, cfg.AppendTimeout, cfg.MaxContentLen)
	policy := app.ThresholdPolicy{MaxDrops: cfg.MaxSlowDrops}

	coord := app.NewCoordinator(registry, rooms, pipeline, policy, verifier)

	r := router.SetupRouter(ctx, cfg, coord, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("chat coordinator started")
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
