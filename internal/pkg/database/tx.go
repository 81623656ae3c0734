package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrTxConflict is returned when a unit of work keeps losing serialization races.
var ErrTxConflict = errors.New("transaction conflict, retry later")

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
)

// TxRunner runs fn inside one atomic unit of work.
// Every write fn performs through tx commits together or not at all.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// TxManager is the PostgreSQL unit of work. It runs at serializable isolation and replays
// the closure when Postgres aborts it with a serialization failure or deadlock, so fn must
// not have side effects outside tx.
type TxManager struct {
	db         *sqlx.DB
	maxRetries int
	backoff    time.Duration
}

// TxOption customises a TxManager.
type TxOption func(*TxManager)

// WithRetryBackoff sets the base delay between replays; attempt n waits n*backoff.
// Non-positive values keep the default.
func WithRetryBackoff(d time.Duration) TxOption {
	return func(m *TxManager) {
		if d > 0 {
			m.backoff = d
		}
	}
}

// NewTxManager creates a unit-of-work runner over db.
func NewTxManager(db *sqlx.DB, maxRetries int, opts ...TxOption) *TxManager {
	if maxRetries < 0 {
		maxRetries = 0
	}
	m := &TxManager{
		db:         db,
		maxRetries: maxRetries,
		backoff:    20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithinTx implements TxRunner.
func (m *TxManager) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= m.maxRetries {
			log.Warn().Err(err).Int("attempts", attempt+1).Msg("unit of work gave up after serialization conflicts")
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * m.backoff):
		}
	}
}

func (m *TxManager) runOnce(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	return hasCode(err, pqSerializationFailure) || hasCode(err, pqDeadlockDetected)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, pqUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, pqForeignKeyViolation)
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}
