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

	"github.com/Clark-Hu/movie-reviews/internal/aggregate"
	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/config"
	httpserver "github.com/Clark-Hu/movie-reviews/internal/http"
	"github.com/Clark-Hu/movie-reviews/internal/logging"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/reviews"
	"github.com/Clark-Hu/movie-reviews/internal/store"
	"github.com/Clark-Hu/movie-reviews/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, "movie-reviews-api")

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.OptionsFromConfig(cfg, logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := st.Migrate(dbCtx); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init token manager")
	}

	repo := repository.New(st)
	engine := aggregate.New(repo.Reviews, repo.Movies, logger)
	server := httpserver.New(cfg, st, httpserver.Services{
		Catalog: catalog.NewService(repo.Movies, logger),
		Reviews: reviews.NewLedger(repo.Reviews, repo.Movies, engine, logger),
		Users:   users.NewService(repo.Users, repo.Movies, tokens, cfg.BcryptCost, logger),
		Tokens:  tokens,
	}, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	logger.Info().Msg("server stopped")
}
