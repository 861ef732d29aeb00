package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/avstrong/slotbooking/internal/logger"
)

const uniqueViolation = "23505"

var ErrTransactionNotFoundInCtx = errors.New("no transaction found in ctx")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Config struct {
	L    *logger.Logger
	Pool Pool
}

type DB struct {
	l    *logger.Logger
	pool Pool
}

func New(conf Config) *DB {
	return &DB{
		l:    conf.L,
		pool: conf.Pool,
	}
}

type contextKey string

const txKey contextKey = "postgresTx"

// q runs statements inside the transaction bound to ctx, or on the pool.
func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}

	return db.pool
}

func (db *DB) BeginTransaction(ctx context.Context, level string) (context.Context, error) {
	//nolint:exhaustruct
	opts := pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(strings.ToLower(level))}

	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return ctx, fmt.Errorf("begin: %w", err)
	}

	return context.WithValue(ctx, txKey, tx), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return db.uniqueError(err)
		}

		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (db *DB) uniqueError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		db.l.LogDebugf("Unique violation on %s: %s", pgErr.ConstraintName, pgErr.Detail)
	}

	return fmt.Errorf("unique violation: %w", err)
}

// Amounts are persisted as minor units.
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart() //nolint:gomnd
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2) //nolint:gomnd
}
