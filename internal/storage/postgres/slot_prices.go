package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/slotbooking/internal/booking"
)

func (db *DB) GetSlotPrices(ctx context.Context, slot booking.TimeSlot, day time.Weekday) ([]*booking.SlotPrice, error) {
	query := `
	SELECT id, time_slot, day_of_week, price, valid_from, valid_to, is_default, created_at
	FROM slot_prices
	WHERE time_slot = $1 AND day_of_week = $2
	ORDER BY id`

	rows, err := db.q(ctx).Query(ctx, query, string(slot), int(day))
	if err != nil {
		return nil, fmt.Errorf("query slot prices: %w", err)
	}
	defer rows.Close()

	var prices []*booking.SlotPrice

	for rows.Next() {
		var (
			p         booking.SlotPrice
			slotLabel string
			weekday   int
			price     int64
		)

		if err := rows.Scan(&p.ID, &slotLabel, &weekday, &price, &p.ValidFrom, &p.ValidTo, &p.IsDefault, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan slot price: %w", err)
		}

		p.TimeSlot = booking.TimeSlot(slotLabel)
		p.DayOfWeek = time.Weekday(weekday)
		p.Price = fromMinor(price)
		prices = append(prices, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot prices: %w", err)
	}

	return prices, nil
}
