package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/apperr"
)

const (
	DefaultTxTimeout    = 5 * time.Second
	DefaultTxMaxRetries = 3
)

type TxOptions struct {
	Timeout    time.Duration
	MaxRetries int
	// OnRetry is called before a retried attempt.
	OnRetry func(attempt int, err error)
}

// PostgresTransactor runs serializable transactions with a per-attempt
// deadline, retrying serialization failures and deadlocks.
type PostgresTransactor struct {
	db     *sql.DB
	opts   TxOptions
	logger *slog.Logger
}

func NewPostgresTransactor(db *sql.DB, opts TxOptions, logger *slog.Logger) *PostgresTransactor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTxTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &PostgresTransactor{db: db, opts: opts, logger: logger}
}

func (t *PostgresTransactor) InTx(ctx context.Context, fn TxFunc) error {
	for attempt := 0; ; attempt++ {
		err := t.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		if attempt >= t.opts.MaxRetries {
			return apperr.Dependency(fmt.Sprintf("transaction failed after %d attempts", attempt+1), err)
		}
		t.logger.Warn("retrying serializable transaction",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
		if t.opts.OnRetry != nil {
			t.opts.OnRetry(attempt+1, err)
		}
		if ctx.Err() != nil {
			return apperr.Dependency("transaction retry", ctx.Err())
		}
	}
}

func (t *PostgresTransactor) attempt(ctx context.Context, fn TxFunc) (txErr error) {
	txCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	tx, err := t.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError("failed to begin transaction", err, nil)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				t.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = mapError("failed to commit transaction", cErr, nil)
		}
	}()

	txErr = fn(txCtx, tx)
	if txErr != nil && txCtx.Err() != nil && !apperr.Classified(txErr) {
		txErr = apperr.Dependency(fmt.Sprintf("transaction timed out after %v", t.opts.Timeout), txErr)
	}
	return txErr
}
