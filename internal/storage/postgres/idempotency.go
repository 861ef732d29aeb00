package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avstrong/slotbooking/internal/booking"
)

func (db *DB) GetTransactionByIdempotencyKey(ctx context.Context) (*booking.Transaction, error) {
	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, booking.ErrIdempotencyKey
	}

	var snapshot []byte

	query := `SELECT snapshot FROM transaction_idempotency_keys WHERE idempotency_key = $1`

	err := db.q(ctx).QueryRow(ctx, query, key).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get idempotency key %q: %w", key, err)
	}

	var t booking.Transaction
	if err := json.Unmarshal(snapshot, &t); err != nil {
		return nil, fmt.Errorf("decode snapshot of idempotency key %q: %w", key, err)
	}

	return &t, nil
}

func (db *DB) SaveIdempotencyKey(ctx context.Context, t *booking.Transaction) error {
	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return booking.ErrIdempotencyKey
	}

	snapshot, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode snapshot of transaction %d: %w", t.ID, err)
	}

	query := `
	INSERT INTO transaction_idempotency_keys (idempotency_key, transaction_id, snapshot)
	VALUES ($1, $2, $3)`

	_, err = db.q(ctx).Exec(ctx, query, key, t.ID, snapshot)
	if isUniqueViolation(err) {
		return fmt.Errorf("key %q: %w: %w", key, booking.ErrIdempotencyReused, db.uniqueError(err))
	}

	if err != nil {
		return fmt.Errorf("save idempotency key %q: %w", key, err)
	}

	return nil
}
