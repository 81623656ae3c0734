// Command sweeper fails provider deposits that never received a webhook.
// Run it with -once from an external scheduler, or without flags to keep its own schedule.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/config"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise logger")
	}

	log.Info().Bool("once", *once).Dur("ttl", cfg.PendingDepositTTL).Msg("Starting deposit sweeper")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    4,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	sweeper := wallet.NewSweeper(
		database.NewTxManager(db, cfg.DBTxMaxRetries, database.WithRetryBackoff(cfg.DBTxRetryBackoff)),
		transaction.NewService(transaction.NewRepository(db)),
		cfg.PendingDepositTTL,
	)

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatal().Err(err).Int("failed", n).Msg("Sweep failed")
		}
		log.Info().Int("failed", n).Msg("Sweep finished")
		return
	}

	if err := sweeper.Start(cfg.SweeperSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start deposit sweeper")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down sweeper...")
	sweeper.Stop()
}
