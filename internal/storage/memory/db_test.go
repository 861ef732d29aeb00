package memory

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/identity"
	"github.com/avstrong/slotbooking/internal/logger"
)

var testDate = time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC)

func newTestDB() *DB {
	return New(Config{L: logger.Setup("error", io.Discard)})
}

func saveBooking(t *testing.T, db *DB, b *booking.Booking) error {
	t.Helper()

	ctx, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, db.SaveBookings(ctx, []*booking.Booking{b}))

	return db.CommitTransaction(ctx)
}

func TestDB_RequiresTransaction(t *testing.T) {
	db := newTestDB()

	//nolint:exhaustruct
	err := db.SaveTransaction(context.Background(), &booking.Transaction{ID: 1})
	assert.ErrorIs(t, err, ErrTransactionIDNotFoundInCtx)
	assert.ErrorIs(t, db.CommitTransaction(context.Background()), ErrTransactionIDNotFoundInCtx)
}

func TestDB_WritesVisibleAfterCommit(t *testing.T) {
	db := newTestDB()

	ctx, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	//nolint:exhaustruct
	trx := &booking.Transaction{ID: 3, BookingID: 1, Leftover: decimal.NewFromInt(100), Status: booking.StatusPartial}
	require.NoError(t, db.SaveTransaction(ctx, trx))

	got, err := db.GetTransaction(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPartial, got.Status)

	_, err = db.GetTransaction(context.Background(), 3)
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	require.NoError(t, db.CommitTransaction(ctx))

	got, err = db.GetTransactionByBookingID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
}

func TestDB_RollbackDiscardsWrites(t *testing.T) {
	db := newTestDB()

	ctx, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	//nolint:exhaustruct
	require.NoError(t, db.SaveTransaction(ctx, &booking.Transaction{ID: 4, BookingID: 2}))
	require.NoError(t, db.RollbackTransaction(ctx))

	_, err = db.GetTransaction(context.Background(), 4)
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	assert.ErrorIs(t, db.CommitTransaction(ctx), ErrTransactionNotFound)
}

func TestDB_SlotUniqueness(t *testing.T) {
	db := newTestDB()

	//nolint:exhaustruct
	require.NoError(t, saveBooking(t, db, &booking.Booking{ID: 1, Date: testDate, TimeSlot: booking.SlotNight}))

	//nolint:exhaustruct
	err := saveBooking(t, db, &booking.Booking{ID: 2, Date: testDate.Add(5 * time.Hour), TimeSlot: booking.SlotNight})
	assert.ErrorIs(t, err, ErrSlotTaken)

	//nolint:exhaustruct
	assert.NoError(t, saveBooking(t, db, &booking.Booking{ID: 3, Date: testDate, TimeSlot: booking.SlotMorning}))

	ctx, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	//nolint:exhaustruct
	err = db.SaveBookings(ctx, []*booking.Booking{{Date: testDate, TimeSlot: booking.SlotEvening}})
	assert.ErrorIs(t, err, ErrMissingID)
	require.NoError(t, db.RollbackTransaction(ctx))
}

func TestDB_OneTransactionPerBooking(t *testing.T) {
	db := newTestDB()

	first, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)
	second, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	//nolint:exhaustruct
	require.NoError(t, db.SaveTransaction(first, &booking.Transaction{ID: 1, BookingID: 9}))
	//nolint:exhaustruct
	require.NoError(t, db.SaveTransaction(second, &booking.Transaction{ID: 2, BookingID: 9}))

	require.NoError(t, db.CommitTransaction(first))
	assert.ErrorIs(t, db.CommitTransaction(second), booking.ErrTransactionExists)
}

func TestDB_RowLockHeldUntilCommit(t *testing.T) {
	db := newTestDB()

	//nolint:exhaustruct
	require.NoError(t, saveBooking(t, db, &booking.Booking{ID: 1, Date: testDate, TimeSlot: booking.SlotNight}))

	owner, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	_, err = db.GetBookingForUpdate(owner, 1)
	require.NoError(t, err)

	// Locking twice inside the same transaction does not block.
	_, err = db.GetBookingForUpdate(owner, 1)
	require.NoError(t, err)

	waiterCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	waiter, err := db.BeginTransaction(waiterCtx, "")
	require.NoError(t, err)

	_, err = db.GetBookingForUpdate(waiter, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, db.RollbackTransaction(waiter))

	acquired := make(chan error, 1)

	go func() {
		ctx, err := db.BeginTransaction(context.Background(), "")
		if err != nil {
			acquired <- err

			return
		}

		_, err = db.GetBookingForUpdate(ctx, 1)
		acquired <- err

		_ = db.RollbackTransaction(ctx)
	}()

	require.NoError(t, db.CommitTransaction(owner))

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("row lock was not released on commit")
	}
}

func TestDB_GetSlotPrices(t *testing.T) {
	db := newTestDB()

	ctx, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	//nolint:exhaustruct
	require.NoError(t, db.SaveSlotPrices(ctx, []*booking.SlotPrice{
		{ID: 5, TimeSlot: booking.SlotEvening, DayOfWeek: time.Monday, Price: decimal.NewFromInt(1200)},
		{ID: 2, TimeSlot: booking.SlotEvening, DayOfWeek: time.Monday, Price: decimal.NewFromInt(1000), IsDefault: true},
		{ID: 3, TimeSlot: booking.SlotEvening, DayOfWeek: time.Tuesday, Price: decimal.NewFromInt(1000), IsDefault: true},
	}))
	require.NoError(t, db.CommitTransaction(ctx))

	prices, err := db.GetSlotPrices(context.Background(), booking.SlotEvening, time.Monday)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, int64(2), prices[0].ID)
	assert.Equal(t, int64(5), prices[1].ID)

	prices, err = db.GetSlotPrices(context.Background(), booking.SlotNight, time.Monday)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestDB_Users(t *testing.T) {
	db := newTestDB()
	ctx := context.Background()

	//nolint:exhaustruct
	u := &identity.User{Username: "nadia", Email: "nadia@example.com", PasswordHash: "hash"}
	require.NoError(t, db.SaveUser(ctx, u))
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	//nolint:exhaustruct
	assert.ErrorIs(t, db.SaveUser(ctx, &identity.User{Email: "nadia@example.com"}), identity.ErrEmailTaken)

	got, err := db.GetUserByEmail(ctx, "nadia@example.com")
	require.NoError(t, err)
	assert.Equal(t, "nadia", got.Username)

	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func rowLockCount(db *DB) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.rowLocks)
}

func TestDB_RowLocksDroppedWhenUnused(t *testing.T) {
	db := newTestDB()

	//nolint:exhaustruct
	require.NoError(t, saveBooking(t, db, &booking.Booking{ID: 1, Date: testDate, TimeSlot: booking.SlotNight}))

	for i := 0; i < 3; i++ {
		ctx, err := db.BeginTransaction(context.Background(), "")
		require.NoError(t, err)

		_, err = db.GetBookingForUpdate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, rowLockCount(db))

		require.NoError(t, db.CommitTransaction(ctx))
		assert.Zero(t, rowLockCount(db))
	}

	owner, err := db.BeginTransaction(context.Background(), "")
	require.NoError(t, err)

	_, err = db.GetBookingForUpdate(owner, 1)
	require.NoError(t, err)

	waiterCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	waiter, err := db.BeginTransaction(waiterCtx, "")
	require.NoError(t, err)

	_, err = db.GetBookingForUpdate(waiter, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, db.RollbackTransaction(waiter))
	assert.Equal(t, 1, rowLockCount(db))

	require.NoError(t, db.RollbackTransaction(owner))
	assert.Zero(t, rowLockCount(db))
}

func TestDB_IdempotencyKeys(t *testing.T) {
	db := newTestDB()
	keyed := booking.NewContextWithIdempotencyKey(context.Background(), "key-1")

	_, err := db.GetTransactionByIdempotencyKey(context.Background())
	assert.ErrorIs(t, err, booking.ErrIdempotencyKey)

	_, err = db.GetTransactionByIdempotencyKey(keyed)
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	ctx, err := db.BeginTransaction(keyed, "")
	require.NoError(t, err)

	//nolint:exhaustruct
	require.NoError(t, db.SaveIdempotencyKey(ctx, &booking.Transaction{ID: 3, CashPayment: decimal.NewFromInt(200)}))

	got, err := db.GetTransactionByIdempotencyKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)

	_, err = db.GetTransactionByIdempotencyKey(keyed)
	assert.ErrorIs(t, err, booking.ErrRecordNotFound)

	require.NoError(t, db.CommitTransaction(ctx))

	got, err = db.GetTransactionByIdempotencyKey(keyed)
	require.NoError(t, err)
	assert.Equal(t, "200", got.CashPayment.String())

	second, err := db.BeginTransaction(keyed, "")
	require.NoError(t, err)

	//nolint:exhaustruct
	require.NoError(t, db.SaveIdempotencyKey(second, &booking.Transaction{ID: 4}))
	assert.ErrorIs(t, db.CommitTransaction(second), booking.ErrIdempotencyReused)
}

func TestDB_GetUserByID(t *testing.T) {
	db := newTestDB()

	//nolint:exhaustruct
	u := &identity.User{Username: "karim", Email: "karim@example.com"}
	require.NoError(t, db.SaveUser(context.Background(), u))

	got, err := db.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "karim@example.com", got.Email)

	_, err = db.GetUserByID(context.Background(), u.ID+1)
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}
