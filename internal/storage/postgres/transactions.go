package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avstrong/slotbooking/internal/booking"
)

const transactionColumns = `id, booking_id, total_price, booking_payment, fee_payment, discount, other_adjustments,
	leftover, status, cash_payment, mobile_banking_payment, bank_transfer_payment,
	creator_id, updater_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (*booking.Transaction, error) {
	var (
		t                                                       booking.Transaction
		total, bookingPay, fee, discount, adjustments, leftover int64
		cash, mobile, bank                                      int64
		status                                                  string
		creator, updater                                        *int64
	)

	err := row.Scan(
		&t.ID, &t.BookingID, &total, &bookingPay, &fee, &discount, &adjustments,
		&leftover, &status, &cash, &mobile, &bank,
		&creator, &updater, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.TotalPrice = fromMinor(total)
	t.BookingPayment = fromMinor(bookingPay)
	t.FeePayment = fromMinor(fee)
	t.Discount = fromMinor(discount)
	t.OtherAdjustments = fromMinor(adjustments)
	t.Leftover = fromMinor(leftover)
	t.Status = booking.Status(status)
	t.CashPayment = fromMinor(cash)
	t.MobileBankingPayment = fromMinor(mobile)
	t.BankTransferPayment = fromMinor(bank)

	if creator != nil {
		t.CreatorID = *creator
	}

	if updater != nil {
		t.UpdaterID = *updater
	}

	return &t, nil
}

func (db *DB) GetTransaction(ctx context.Context, id int64) (*booking.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(db.q(ctx).QueryRow(ctx, query, id))
}

func (db *DB) GetTransactionForUpdate(ctx context.Context, id int64) (*booking.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return scanTransaction(db.q(ctx).QueryRow(ctx, query, id))
}

func (db *DB) GetTransactionByBookingID(ctx context.Context, bookingID int64) (*booking.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE booking_id = $1`

	return scanTransaction(db.q(ctx).QueryRow(ctx, query, bookingID))
}

// GetID reserves the next transaction id from the table sequence.
func (db *DB) GetID(ctx context.Context) (int64, error) {
	var id int64

	if err := db.q(ctx).QueryRow(ctx, `SELECT nextval('transactions_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next transaction id: %w", err)
	}

	return id, nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}

	return &id
}

func (db *DB) SaveTransaction(ctx context.Context, t *booking.Transaction) error {
	query := `
	INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		total_price = EXCLUDED.total_price,
		booking_payment = EXCLUDED.booking_payment,
		fee_payment = EXCLUDED.fee_payment,
		discount = EXCLUDED.discount,
		other_adjustments = EXCLUDED.other_adjustments,
		leftover = EXCLUDED.leftover,
		status = EXCLUDED.status,
		cash_payment = EXCLUDED.cash_payment,
		mobile_banking_payment = EXCLUDED.mobile_banking_payment,
		bank_transfer_payment = EXCLUDED.bank_transfer_payment,
		updater_id = EXCLUDED.updater_id,
		updated_at = EXCLUDED.updated_at`

	_, err := db.q(ctx).Exec(ctx, query,
		t.ID, t.BookingID, toMinor(t.TotalPrice), toMinor(t.BookingPayment), toMinor(t.FeePayment),
		toMinor(t.Discount), toMinor(t.OtherAdjustments), toMinor(t.Leftover), string(t.Status),
		toMinor(t.CashPayment), toMinor(t.MobileBankingPayment), toMinor(t.BankTransferPayment),
		nullableID(t.CreatorID), nullableID(t.UpdaterID), t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("booking %d: %w: %w", t.BookingID, booking.ErrTransactionExists, db.uniqueError(err))
	}

	if err != nil {
		return fmt.Errorf("save transaction %d: %w", t.ID, err)
	}

	return nil
}
