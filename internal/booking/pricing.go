package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Covers reports whether date falls inside the price's validity window.
// A missing bound is unbounded on that side.
func (p *SlotPrice) Covers(date time.Time) bool {
	date = DateOnly(date)

	if p.ValidFrom != nil && date.Before(DateOnly(*p.ValidFrom)) {
		return false
	}

	if p.ValidTo != nil && date.After(DateOnly(*p.ValidTo)) {
		return false
	}

	return true
}

const secondsPerDay = 24 * 60 * 60

// windowDays is the inclusive length of the validity window in days.
// Any unbounded side makes the window infinitely wide.
func (p *SlotPrice) windowDays() int64 {
	if p.ValidFrom == nil || p.ValidTo == nil {
		return math.MaxInt64
	}

	return (DateOnly(*p.ValidTo).Unix()-DateOnly(*p.ValidFrom).Unix())/secondsPerDay + 1
}

// selectSlotPrice picks the price that applies on date. Override rows covering
// the date win over default rows; among overrides the narrowest window wins and
// the newest row (highest ID) breaks remaining ties. Among default rows the
// newest covering row wins.
func selectSlotPrice(prices []*SlotPrice, date time.Time) (*SlotPrice, bool) {
	var override, fallback *SlotPrice

	for _, p := range prices {
		if !p.Covers(date) {
			continue
		}

		if p.IsDefault {
			if fallback == nil || p.ID > fallback.ID {
				fallback = p
			}

			continue
		}

		if override == nil || narrower(p, override) {
			override = p
		}
	}

	if override != nil {
		return override, true
	}

	if fallback != nil {
		return fallback, true
	}

	return nil, false
}

func narrower(a, b *SlotPrice) bool {
	aDays, bDays := a.windowDays(), b.windowDays()
	if aDays != bDays {
		return aDays < bDays
	}

	return a.ID > b.ID
}

// ResolveSlotPrice returns the price of timeSlot on date.
func (m *Manager) ResolveSlotPrice(ctx context.Context, timeSlot string, date time.Time) (decimal.Decimal, error) {
	ctx, span := m.tracer.Start(ctx, "booking.ResolveSlotPrice")
	defer span.End()

	slot, ok := ParseTimeSlot(timeSlot)
	if !ok {
		inputErr := newInputError()
		inputErr.addError("time_slot", fmt.Sprintf("unknown time slot %q", timeSlot))

		return decimal.Zero, inputErr
	}

	if date.IsZero() {
		inputErr := newInputError()
		inputErr.addError("date", "provide date")

		return decimal.Zero, inputErr
	}

	price, err := m.resolveSlotPrice(ctx, slot, date)
	if err != nil {
		return decimal.Zero, err
	}

	return price.Price, nil
}

func (m *Manager) resolveSlotPrice(ctx context.Context, slot TimeSlot, date time.Time) (*SlotPrice, error) {
	weekday := DateOnly(date).Weekday()

	prices, err := m.storage.GetSlotPrices(ctx, slot, weekday)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, &StorageError{Op: "get slot prices", Err: err}
	}

	price, ok := selectSlotPrice(prices, date)
	if !ok {
		return nil, &NotFoundError{
			Entity: "slot price",
			Key:    fmt.Sprintf("time slot %q on %s %s", slot, weekday, DateOnly(date).Format(time.DateOnly)),
		}
	}

	m.l.LogDebugf("Resolved price %s for %q on %s (slot price %d)", price.Price.StringFixed(2), slot, weekday, price.ID)

	return price, nil
}
