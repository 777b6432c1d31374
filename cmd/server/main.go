package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/adapters/auth"
	"github.com/vncsmyrnk/taskboard/internal/adapters/handler/http"
	"github.com/vncsmyrnk/taskboard/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/taskboard/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/taskboard/internal/config"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
	"github.com/vncsmyrnk/taskboard/internal/core/services"
	"github.com/vncsmyrnk/taskboard/internal/logger"
)

const limiterSweepInterval = time.Minute

func main() {
	settings, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: settings.LogLevel, Debug: settings.Debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(settings, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(settings *config.Settings, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	limiter, closeLimiter, err := newLimiter(ctx, settings, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	tokens, err := auth.NewTokenService(settings)
	if err != nil {
		return err
	}
	csrf := auth.NewCSRFSigner(settings)
	if !csrf.Enabled() {
		log.Warn("csrf protection is disabled")
	}

	userRepo := postgres.NewUserRepository(db)
	authRepo := postgres.NewAuthRepository(db)
	taskRepo := postgres.NewTaskRepository(db)

	authSvc := services.NewAuthService(userRepo, authRepo, tokens, csrf, auth.NewBcryptHasher(settings.BcryptRounds), log)
	userSvc := services.NewUserService(userRepo)
	taskSvc := services.NewTaskService(taskRepo, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "taskboard"),
	)
	metrics := http.NewMetrics(registry)
	guard := http.NewSessionGuard(tokens, csrf, settings.AccessTokenCookieName, settings.CSRFTokenHeaderName, metrics, log)

	handler := http.NewHandler(http.RouterConfig{
		Auth:           http.NewAuthHandler(authSvc, settings, metrics, log),
		Users:          http.NewUserHandler(userSvc, log),
		Tasks:          http.NewTaskHandler(taskSvc, metrics, log),
		Guard:          guard,
		Limiter:        http.NewRateLimit(limiter, guard.RateKey, metrics, log),
		Metrics:        metrics,
		Gatherer:       registry,
		Logger:         log,
		AllowedOrigins: settings.AllowedOrigins(),
		CSRFHeader:     settings.CSRFTokenHeaderName,
		RequestTimeout: settings.RequestTimeout(),
	})

	server := &stdhttp.Server{
		Addr:              settings.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      settings.RequestTimeout() + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// newLimiter uses redis when REDIS_URL is set so several instances share one
// quota, and an in-process limiter otherwise.
func newLimiter(ctx context.Context, settings *config.Settings, log *zap.Logger) (ports.RateLimiter, func(), error) {
	if settings.RedisURL == "" {
		limiter := ratelimit.NewMemoryLimiter(settings.RateLimitRequests, settings.RateLimitWindowDuration())
		go limiter.Run(ctx, limiterSweepInterval)
		log.Info("using in-memory rate limiter")
		return limiter, func() {}, nil
	}

	opts, err := redis.ParseURL(settings.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping error: %w", err)
	}
	log.Info("using redis rate limiter")
	return ratelimit.NewRedisLimiter(client, settings.RateLimitRequests, settings.RateLimitWindowDuration()),
		func() { client.Close() }, nil
}
