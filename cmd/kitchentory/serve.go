package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/jburchel/kitchentory/internal/config"
	"github.com/jburchel/kitchentory/internal/database"
	"github.com/jburchel/kitchentory/internal/email"
	"github.com/jburchel/kitchentory/internal/logging"
	"github.com/jburchel/kitchentory/internal/middleware"
	"github.com/jburchel/kitchentory/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

// newLimiter returns a Redis-backed limiter when Redis is configured and
// reachable, and the in-process one otherwise.
func newLimiter(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) middleware.Limiter {
	if !cfg.Enabled() {
		return middleware.NewRateLimiter()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process rate limiter", "addr", cfg.Address, "error", err)
		client.Close()
		return middleware.NewRateLimiter()
	}
	logger.Info("rate limiting via redis", "addr", cfg.Address)
	return middleware.NewRedisLimiter(client, logger.With("component", "ratelimit"))
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	if !emailClient.Configured() {
		logger.Info("invitation email disabled")
	}

	limiter := newLimiter(ctx, cfg.Redis, logger)
	if rl, ok := limiter.(*middleware.RedisLimiter); ok {
		defer rl.Close()
	}

	srv := server.New(db, cfg, emailClient, limiter, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	if rl := srv.RateLimiter(); rl != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					rl.Cleanup()
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kitchentory starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cleanupCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
