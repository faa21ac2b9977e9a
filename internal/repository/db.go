package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lib/pq"

	"github.com/josh-kwaku/crowdfund-payments/internal/domain"
	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
)

type scanner interface {
	Scan(dest ...any) error
}

const maxTxAttempts = 3

type DB struct {
	pool *sql.DB
}

func NewDB(pool *sql.DB) *DB {
	return &DB{pool: pool}
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := d.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	return tx, nil
}

// WithTx runs fn in a transaction, committing when fn returns nil. Version
// conflicts, serialization failures and deadlocks are retried with a fresh
// transaction, so fn must re-read everything it depends on.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = d.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		logging.FromContext(ctx).Warn("transaction conflict, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("WithTx: %w", ctx.Err())
		case <-time.After(time.Duration(attempt)*10*time.Millisecond + rand.N(20*time.Millisecond)):
		}
	}
	return fmt.Errorf("WithTx: gave up after %d attempts: %w", maxTxAttempts, err)
}

func (d *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}

// jsonArg passes a raw JSON document to a jsonb column. lib/pq encodes []byte
// as bytea, which jsonb rejects.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
