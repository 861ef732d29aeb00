package migration

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/idgen/simple"
	"github.com/avstrong/slotbooking/internal/logger"
	"github.com/avstrong/slotbooking/internal/storage/memory"
)

func TestDefaultSlotPrices(t *testing.T) {
	prices, err := DefaultSlotPrices(context.Background(), simple.New(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, prices, len(booking.TimeSlots)*daysPerWeek)

	seen := make(map[int64]struct{}, len(prices))

	for _, p := range prices {
		seen[p.ID] = struct{}{}

		assert.True(t, p.IsDefault)
		assert.Nil(t, p.ValidFrom)

		if isWeekend(p.DayOfWeek) {
			assert.True(t, p.Price.Equal(weekendPrice), "%s %s", p.TimeSlot, p.DayOfWeek)
		} else {
			assert.True(t, p.Price.Equal(weekdayPrice), "%s %s", p.TimeSlot, p.DayOfWeek)
		}
	}

	assert.Len(t, seen, len(prices))
}

func TestUp(t *testing.T) {
	l := logger.Setup("error", io.Discard)
	db := memory.New(memory.Config{L: l})
	ids := simple.New()
	ctx := context.Background()
	today := time.Date(2024, 12, 2, 15, 4, 0, 0, time.UTC)

	require.NoError(t, Up(ctx, l, db, ids, Options{Today: today, DemoBookings: true}))

	prices, err := db.GetSlotPrices(ctx, booking.SlotNight, time.Friday)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices[0].Price.Equal(weekendPrice))

	// The first demo booking is on today's date; its id follows the price ids.
	firstBookingID := int64(len(booking.TimeSlots)*daysPerWeek + 1)

	b, err := db.GetBooking(ctx, firstBookingID)
	require.NoError(t, err)
	assert.True(t, b.Date.Equal(booking.DateOnly(today)))

	last, err := db.GetBooking(ctx, firstBookingID+demoDays-1)
	require.NoError(t, err)
	assert.True(t, last.Date.Equal(booking.DateOnly(today).AddDate(0, 0, demoDays-1)))
}

func TestUp_WithoutDemoBookings(t *testing.T) {
	l := logger.Setup("error", io.Discard)
	db := memory.New(memory.Config{L: l})

	require.NoError(t, Up(context.Background(), l, db, simple.New(), Options{Today: time.Now().UTC()}))

	_, err := db.GetBooking(context.Background(), int64(len(booking.TimeSlots)*daysPerWeek+1))
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)
}
