package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qninhdt/c3/server/internal/api"
	"github.com/qninhdt/c3/server/internal/auth"
	"github.com/qninhdt/c3/server/internal/config"
	"github.com/qninhdt/c3/server/internal/db"
	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/logging"
	mw "github.com/qninhdt/c3/server/internal/middleware"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and event stream",
		RunE:  runServe,
	}
}

// loadConfig reads the --config file with env overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sealer, err := auth.NewSealer(cfg.Keys.Secret)
	if err != nil {
		return err
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(logger.Named("events"), cfg.Server.AllowedOrigins)
	limiter := mw.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	handler := api.NewServer(api.Deps{
		DB:       database,
		Sessions: auth.NewSessions(cfg.Auth.JWTSecret, cfg.SessionTTL()),
		Sealer:   sealer,
		Events:   hub,
		Limiter:  limiter,
		Logger:   logger,
	}, api.Options{
		CookieName:     cfg.Auth.CookieName,
		SecureCookie:   cfg.Auth.SecureCookie,
		BcryptCost:     cfg.Auth.BcryptCost,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx, time.Minute, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
