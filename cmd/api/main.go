// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yourusername/blog-api/internal/api"
	"github.com/yourusername/blog-api/internal/auth"
	"github.com/yourusername/blog-api/internal/blog"
	"github.com/yourusername/blog-api/internal/config"
	"github.com/yourusername/blog-api/internal/database"
	"github.com/yourusername/blog-api/internal/logging"
	"github.com/yourusername/blog-api/internal/metrics"
	"github.com/yourusername/blog-api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// データベース接続とマイグレーション
	db, err := database.OpenFromConfig(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("failed to close database", slog.Any("error", err))
		}
	}()
	if err := database.Migrate(db); err != nil {
		return err
	}

	sessionStore, cleanup, err := setupSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	repos := store.New(db)
	authManager := auth.NewManager(auth.Options{
		Users:    repos.Users,
		Sessions: auth.NewSessionManager(sessionStore, cfg.SessionTTL()),
		Limits: auth.LoginLimits{
			MaxAttempts: cfg.LoginMaxAttempts,
			Window:      time.Duration(cfg.LoginWindowMinutes) * time.Minute,
			Lock:        time.Duration(cfg.LoginLockMinutes) * time.Minute,
		},
		Metrics: appMetrics,
		Logger:  logger,
		Secure:  cfg.GinMode == gin.ReleaseMode,
	})
	blogService := blog.NewService(repos.Posts, repos.Comments, appMetrics, logger)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Auth:     authManager,
		Blog:     blog.NewHandler(blogService, logger),
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr), slog.String("mode", cfg.GinMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
