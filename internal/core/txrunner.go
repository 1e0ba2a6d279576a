package core

import (
	"context"
	"fmt"
	"time"

	"stock-ledger/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RunnerConfig bounds how a TxRunner waits for and retries row locks.
type RunnerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	LockTimeout time.Duration
}

// DefaultRunnerConfig is used by tests and tools that do not load configuration.
var DefaultRunnerConfig = RunnerConfig{MaxAttempts: 3, Backoff: 25 * time.Millisecond, LockTimeout: 2 * time.Second}

// TxRunner executes units of work: one database transaction that commits
// only if every step succeeds. Transient lock and serialization failures are
// retried a bounded number of times; business errors are returned at once.
type TxRunner struct {
	pool *pgxpool.Pool
	log  *zap.Logger
	cfg  RunnerConfig
}

func NewTxRunner(pool *pgxpool.Pool, log *zap.Logger, cfg RunnerConfig) *TxRunner {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TxRunner{pool: pool, log: log, cfg: cfg}
}

// Pool exposes the underlying pool for read-only queries outside a unit of work.
func (r *TxRunner) Pool() *pgxpool.Pool { return r.pool }

// InTx runs fn inside a read-write transaction named op.
func (r *TxRunner) InTx(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	start := time.Now()
	defer func() { metrics.ObserveTx(op, time.Since(start).Seconds()) }()

	err := retryTransient(ctx, r.cfg.MaxAttempts, r.cfg.Backoff,
		func(attempt int, err error) {
			metrics.RecordTxRetry(op)
			r.log.Warn("retrying unit of work after transient conflict",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
		func() error { return r.runOnce(ctx, fn) },
	)
	if KindOf(err) == KindConcurrencyConflict {
		metrics.RecordTxConflict(op)
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.cfg.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.cfg.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InReadTx runs fn inside a read-only REPEATABLE READ transaction so every
// query in a report observes the same snapshot.
func (r *TxRunner) InReadTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// retryTransient calls fn up to attempts times, sleeping backoff×attempt
// between tries, as long as fn fails with a transient database error.
// Any other error ends the loop. Exhausted retries yield a CONCURRENCY_CONFLICT.
func retryTransient(ctx context.Context, attempts int, backoff time.Duration, onRetry func(attempt int, err error), fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return classifyPgError(err)
		}
		if attempt == attempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return &Error{
		Kind:    KindConcurrencyConflict,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Err:     err,
	}
}
