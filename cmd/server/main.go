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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Telehealth/internal/adapters/http"
	"github.com/dkeye/Telehealth/internal/app"
	"github.com/dkeye/Telehealth/internal/auth"
	"github.com/dkeye/Telehealth/internal/config"
	"github.com/dkeye/Telehealth/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		// JSON lines outside of local development.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open call store")
	}
	defer store.Close()

	policy, err := app.PolicyByName(cfg.Calls.EndPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("bad end policy")
	}
	ledger := app.NewLedger(store, policy, cfg.Calls.MaxHistoryLimit)
	orch := app.NewOrchestrator(ledger)
	identity := auth.NewVerifier(cfg.Secret)

	r := router.SetupRouter(ctx, cfg, orch, identity)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Telehealth server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}
