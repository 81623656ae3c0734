package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/metrics"
)

const sweepBatchSize = 100

// Sweeper fails provider deposits that never received a webhook.
// Bank deposits are left pending for admin review.
type Sweeper struct {
	uow     database.TxRunner
	txns    *transaction.Service
	ttl     time.Duration
	timeout time.Duration
	cron    *cron.Cron
}

// NewSweeper creates a sweeper for deposits older than ttl.
func NewSweeper(uow database.TxRunner, txns *transaction.Service, ttl time.Duration) *Sweeper {
	return &Sweeper{
		uow:     uow,
		txns:    txns,
		ttl:     ttl,
		timeout: 2 * time.Minute,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start schedules Sweep with a cron spec such as "@every 15m".
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Deposit sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("register deposit sweeper: %w", err)
	}
	s.cron.Start()
	log.Info().Str("schedule", schedule).Dur("ttl", s.ttl).Msg("Deposit sweeper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Deposit sweeper stopped")
}

// Sweep fails stale provider deposits and returns how many it failed.
// Each deposit fails in its own unit of work so a webhook settling one concurrently
// only makes that one report already processed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.txns.ListStaleProviderDeposits(ctx, s.ttl, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, t := range stale {
		err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
			_, err := s.txns.MarkFailed(ctx, tx, t.ID, func(m *transaction.Metadata) {
				if m.Deposit == nil {
					m.Deposit = &transaction.DepositMeta{}
				}
				m.Deposit.FailureReason = "expired without provider confirmation"
			})
			return err
		})
		switch {
		case err == nil:
			failed++
			metrics.SweptDeposits.Inc()
		case errors.Is(err, transaction.ErrAlreadyProcessed):
		default:
			log.Warn().Err(err).Str("reference", t.Reference).Msg("Failed to expire pending deposit")
		}
	}

	if failed > 0 {
		log.Info().Int("count", failed).Msg("Expired stale deposits")
	}
	return failed, nil
}
