package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/adapters/auth"
	"github.com/vncsmyrnk/taskboard/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/taskboard/internal/config"
	"github.com/vncsmyrnk/taskboard/internal/core/services"
	"github.com/vncsmyrnk/taskboard/internal/logger"
)

func main() {
	var envFile string
	var timeout time.Duration
	flag.StringVar(&envFile, "env-file", ".env", "optional env file to load before the environment")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "maximum duration of the job")
	flag.Parse()

	settings, err := config.Load(envFile)
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

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := postgres.Open(ctx, settings.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(settings)
	if err != nil {
		log.Fatal("failed to build token service", zap.Error(err))
	}

	authSvc := services.NewAuthService(
		postgres.NewUserRepository(db),
		postgres.NewAuthRepository(db),
		tokens,
		auth.NewCSRFSigner(settings),
		auth.NewBcryptHasher(settings.BcryptRounds),
		log,
	)

	log.Info("starting refresh token cleanup job")
	if _, err := authSvc.PurgeExpiredTokens(ctx, time.Now()); err != nil {
		log.Fatal("refresh token cleanup failed", zap.Error(err))
	}
	log.Info("refresh token cleanup completed successfully")
}
