package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/logger"
)

type storage interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveSlotPrices(ctx context.Context, prices []*booking.SlotPrice) error
	SaveBookings(ctx context.Context, bookings []*booking.Booking) error
}

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

var (
	weekdayPrice = decimal.NewFromInt(1500) //nolint:gomnd
	weekendPrice = decimal.NewFromInt(2000) //nolint:gomnd
)

const (
	daysPerWeek = 7
	demoDays    = 7
)

type Options struct {
	// Today anchors the demo bookings; they cover the following week.
	Today        time.Time
	DemoBookings bool
}

func isWeekend(day time.Weekday) bool {
	return day == time.Friday || day == time.Saturday
}

// DefaultSlotPrices builds one default price per slot and weekday.
func DefaultSlotPrices(ctx context.Context, ids idGenerator, createdAt time.Time) ([]*booking.SlotPrice, error) {
	prices := make([]*booking.SlotPrice, 0, len(booking.TimeSlots)*daysPerWeek)

	for day := time.Sunday; day <= time.Saturday; day++ {
		price := weekdayPrice
		if isWeekend(day) {
			price = weekendPrice
		}

		for _, slot := range booking.TimeSlots {
			id, err := ids.GetID(ctx)
			if err != nil {
				return nil, fmt.Errorf("next slot price id: %w", err)
			}

			//nolint:exhaustruct
			prices = append(prices, &booking.SlotPrice{
				ID:        id,
				TimeSlot:  slot,
				DayOfWeek: day,
				Price:     price,
				IsDefault: true,
				CreatedAt: createdAt,
			})
		}
	}

	return prices, nil
}

func demoBookings(ctx context.Context, ids idGenerator, today time.Time) ([]*booking.Booking, error) {
	names := []string{"Rahim", "Karim", "Nadia", "Sadia", "Tanvir", "Farhan", "Mitu"}
	bookings := make([]*booking.Booking, 0, demoDays)

	for i := 0; i < demoDays; i++ {
		id, err := ids.GetID(ctx)
		if err != nil {
			return nil, fmt.Errorf("next booking id: %w", err)
		}

		//nolint:exhaustruct
		bookings = append(bookings, &booking.Booking{
			ID:        id,
			Name:      names[i%len(names)],
			Phone:     fmt.Sprintf("+88017000000%02d", i),
			Date:      booking.DateOnly(today).AddDate(0, 0, i),
			TimeSlot:  booking.TimeSlots[i%len(booking.TimeSlots)],
			CreatedAt: today,
			UpdatedAt: today,
		})
	}

	return bookings, nil
}

// Up seeds the default price table, and optionally a week of demo bookings,
// in a single storage transaction.
func Up(ctx context.Context, l *logger.Logger, storage storage, ids idGenerator, opts Options) (err error) {
	prices, err := DefaultSlotPrices(ctx, ids, opts.Today)
	if err != nil {
		return fmt.Errorf("build slot prices: %w", err)
	}

	var bookings []*booking.Booking

	if opts.DemoBookings {
		if bookings, err = demoBookings(ctx, ids, opts.Today); err != nil {
			return fmt.Errorf("build demo bookings: %w", err)
		}
	}

	ctx, err = storage.BeginTransaction(ctx, "")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after panic %v", p)
			}

			l.LogInfo("Migration transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after error %v", rbErr.Error())
			}

			l.LogInfo("Migration transaction has been roll backed after error")

			return
		}

		if err = storage.CommitTransaction(ctx); err != nil {
			l.LogErrorf("Could not commit migration transaction, err %v", err.Error())

			return
		}

		l.LogInfo("Migration transaction has been committed: %d slot prices, %d bookings", len(prices), len(bookings))
	}()

	if err = storage.SaveSlotPrices(ctx, prices); err != nil {
		return fmt.Errorf("save slot prices to storage: %w", err)
	}

	if len(bookings) > 0 {
		if err = storage.SaveBookings(ctx, bookings); err != nil {
			return fmt.Errorf("save bookings to storage: %w", err)
		}
	}

	return nil
}
