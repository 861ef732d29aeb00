package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avstrong/slotbooking/internal/booking"
)

const bookingColumns = `id, name, phone, booking_date, time_slot, booked_by, last_modified_by, created_at, updated_at`

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var (
		b          booking.Booking
		slot       string
		modifiedBy *int64
	)

	err := row.Scan(&b.ID, &b.Name, &b.Phone, &b.Date, &slot, &b.BookedBy, &modifiedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scan booking: %w", err)
	}

	b.TimeSlot = booking.TimeSlot(slot)
	b.Date = booking.DateOnly(b.Date)

	if modifiedBy != nil {
		b.LastModifiedBy = *modifiedBy
	}

	return &b, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	return scanBooking(db.q(ctx).QueryRow(ctx, query, id))
}

func (db *DB) GetBookingForUpdate(ctx context.Context, id int64) (*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	return scanBooking(db.q(ctx).QueryRow(ctx, query, id))
}
