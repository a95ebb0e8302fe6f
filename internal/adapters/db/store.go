// internal/adapters/db/store.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// SQLSTATE codes that mean "run the transaction again"
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// TxConfig tunes how units of work are run
type TxConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultTxConfig returns the production defaults
func DefaultTxConfig() TxConfig {
	return TxConfig{
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 20 * time.Millisecond,
	}
}

// Store runs ledger units of work as SERIALIZABLE Postgres transactions
type Store struct {
	db     *Database
	cfg    TxConfig
	logger *slog.Logger
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a new transactional store
func NewStore(db *Database, cfg TxConfig, logger *slog.Logger) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTxConfig().Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Store{
		db:     db,
		cfg:    cfg,
		logger: logger.With(slog.String("repository", "ledger_store")),
	}
}

// WithinTx runs fn in a serializable transaction. Serialization failures, deadlocks and
// unique-key races are retried; when retries run out, or the transaction times out,
// the caller gets domain.ErrConflict.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, attempt); err != nil {
				return err
			}
		}

		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		s.logger.DebugContext(ctx, "retrying contended transaction",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}

	return fmt.Errorf("%w: gave up after %d attempts: %v", domain.ErrConflict, s.cfg.MaxRetries+1, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.db.TransactionWithOptions(txCtx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(txCtx, &pgTx{tx: tx})
	})
	if err != nil && ctx.Err() == nil && errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction exceeded %s", domain.ErrConflict, s.cfg.Timeout)
	}
	return err
}

func (s *Store) sleep(ctx context.Context, attempt int) error {
	backoff := s.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
	if backoff > 0 {
		backoff += time.Duration(rand.Int64N(int64(backoff)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateUniqueViolation:
		return true
	}
	return false
}
