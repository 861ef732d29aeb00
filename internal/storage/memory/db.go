package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/identity"
	"github.com/avstrong/slotbooking/internal/logger"
)

type Config struct {
	L *logger.Logger
}

// transaction buffers writes until commit and remembers the row locks it holds.
type transaction struct {
	id                       string
	bookingModifications     map[int64]booking.Booking
	slotPriceModifications   map[int64]booking.SlotPrice
	transactionModifications map[int64]booking.Transaction
	idempotencyModifications map[string]booking.Transaction
	locks                    map[string]*rowLock
}

// rowLock is a one-slot semaphore. refs counts the holder and the waiters so
// the entry can be dropped once nobody references it.
type rowLock struct {
	ch   chan struct{}
	refs int
}

type DB struct {
	mu                    sync.Mutex
	l                     *logger.Logger
	bookings              map[int64]booking.Booking
	bookingSlots          map[string]int64
	slotPrices            map[int64]booking.SlotPrice
	transactions          map[int64]booking.Transaction
	transactionsByBooking map[int64]int64
	idempotencyKeys       map[string]booking.Transaction
	users                 map[int64]identity.User
	userEmails            map[string]int64
	nextUserID            int64
	trxs                  map[string]*transaction
	rowLocks              map[string]*rowLock
	nextTrxID             int64
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:                     conf.L,
		bookings:              make(map[int64]booking.Booking),
		bookingSlots:          make(map[string]int64),
		slotPrices:            make(map[int64]booking.SlotPrice),
		transactions:          make(map[int64]booking.Transaction),
		transactionsByBooking: make(map[int64]int64),
		idempotencyKeys:       make(map[string]booking.Transaction),
		users:                 make(map[int64]identity.User),
		userEmails:            make(map[string]int64),
		trxs:                  make(map[string]*transaction),
		rowLocks:              make(map[string]*rowLock),
	}
}

func slotKey(date time.Time, slot booking.TimeSlot) string {
	return fmt.Sprintf("%s_%s", booking.DateOnly(date).Format(time.DateOnly), slot)
}

func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	db.trxs[trxID] = &transaction{
		id:                       trxID,
		bookingModifications:     make(map[int64]booking.Booking),
		slotPriceModifications:   make(map[int64]booking.SlotPrice),
		transactionModifications: make(map[int64]booking.Transaction),
		idempotencyModifications: make(map[string]booking.Transaction),
		locks:                    make(map[string]*rowLock),
	}

	return withTransactionID(ctx, trxID), nil
}

// trx returns the transaction bound to ctx. Callers hold db.mu.
func (db *DB) trx(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.trxs[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

// activeTrx is like trx but tolerates reads outside of a transaction.
func (db *DB) activeTrx(ctx context.Context) *transaction {
	trx, err := db.trx(ctx)
	if err != nil {
		return nil
	}

	return trx
}

// end drops the transaction and releases its row locks. Callers hold db.mu.
func (db *DB) end(trx *transaction) {
	for key, l := range trx.locks {
		<-l.ch
		db.releaseRowLock(key, l)
	}

	delete(db.trxs, trx.id)
}

// releaseRowLock drops one reference to l. Callers hold db.mu.
func (db *DB) releaseRowLock(key string, l *rowLock) {
	l.refs--
	if l.refs == 0 {
		delete(db.rowLocks, key)
	}
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.trx(ctx)
	if err != nil {
		return err
	}

	defer db.end(trx)

	if err := db.checkConstraints(trx); err != nil {
		db.l.LogWarnf("Memory transaction %s not committed: %v", trx.id, err.Error())

		return err
	}

	for id, b := range trx.bookingModifications {
		if old, ok := db.bookings[id]; ok {
			delete(db.bookingSlots, slotKey(old.Date, old.TimeSlot))
		}

		db.bookings[id] = b
		db.bookingSlots[slotKey(b.Date, b.TimeSlot)] = id
	}

	for id, price := range trx.slotPriceModifications {
		db.slotPrices[id] = price
	}

	for id, t := range trx.transactionModifications {
		db.transactions[id] = t
		db.transactionsByBooking[t.BookingID] = id
	}

	for key, t := range trx.idempotencyModifications {
		db.idempotencyKeys[key] = t
	}

	return nil
}

func (db *DB) checkConstraints(trx *transaction) error {
	for id, b := range trx.bookingModifications {
		if owner, ok := db.bookingSlots[slotKey(b.Date, b.TimeSlot)]; ok && owner != id {
			return fmt.Errorf("booking %d on %s: %w", id, slotKey(b.Date, b.TimeSlot), ErrSlotTaken)
		}
	}

	for id, t := range trx.transactionModifications {
		if owner, ok := db.transactionsByBooking[t.BookingID]; ok && owner != id {
			return fmt.Errorf("booking %d: %w", t.BookingID, booking.ErrTransactionExists)
		}
	}

	for key := range trx.idempotencyModifications {
		if prior, ok := db.idempotencyKeys[key]; ok {
			return fmt.Errorf("key %q of transaction %d: %w", key, prior.ID, booking.ErrIdempotencyReused)
		}
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.trx(ctx)
	if err != nil {
		return err
	}

	db.end(trx)

	return nil
}

// lockRow blocks until the row lock for key is free or ctx is done. The lock
// is held until the transaction bound to ctx ends.
func (db *DB) lockRow(ctx context.Context, key string) error {
	db.mu.Lock()

	trx, err := db.trx(ctx)
	if err != nil {
		db.mu.Unlock()

		return err
	}

	if _, held := trx.locks[key]; held {
		db.mu.Unlock()

		return nil
	}

	l, ok := db.rowLocks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		db.rowLocks[key] = l
	}

	l.refs++

	db.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		db.mu.Lock()
		db.releaseRowLock(key, l)
		db.mu.Unlock()

		return fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	db.mu.Lock()
	trx.locks[key] = l
	db.mu.Unlock()

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if trx := db.activeTrx(ctx); trx != nil {
		if b, ok := trx.bookingModifications[id]; ok {
			return &b, nil
		}
	}

	b, ok := db.bookings[id]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return &b, nil
}

func (db *DB) GetBookingForUpdate(ctx context.Context, id int64) (*booking.Booking, error) {
	if err := db.lockRow(ctx, fmt.Sprintf("booking_%d", id)); err != nil {
		return nil, err
	}

	return db.GetBooking(ctx, id)
}

func (db *DB) SaveBookings(ctx context.Context, bookings []*booking.Booking) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.trx(ctx)
	if err != nil {
		return err
	}

	for _, b := range bookings {
		if b.ID == 0 {
			return fmt.Errorf("booking on %s: %w", slotKey(b.Date, b.TimeSlot), ErrMissingID)
		}

		trx.bookingModifications[b.ID] = *b
	}

	return nil
}

func (db *DB) GetSlotPrices(ctx context.Context, slot booking.TimeSlot, day time.Weekday) ([]*booking.SlotPrice, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	merged := make(map[int64]booking.SlotPrice, len(db.slotPrices))
	for id, p := range db.slotPrices {
		merged[id] = p
	}

	if trx := db.activeTrx(ctx); trx != nil {
		for id, p := range trx.slotPriceModifications {
			merged[id] = p
		}
	}

	var result []*booking.SlotPrice

	for _, p := range merged {
		if p.TimeSlot != slot || p.DayOfWeek != day {
			continue
		}

		p := p
		result = append(result, &p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (db *DB) SaveSlotPrices(ctx context.Context, prices []*booking.SlotPrice) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.trx(ctx)
	if err != nil {
		return err
	}

	for _, p := range prices {
		if p.ID == 0 {
			return fmt.Errorf("slot price for %q on %s: %w", p.TimeSlot, p.DayOfWeek, ErrMissingID)
		}

		trx.slotPriceModifications[p.ID] = *p
	}

	return nil
}

func (db *DB) GetTransaction(ctx context.Context, id int64) (*booking.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if trx := db.activeTrx(ctx); trx != nil {
		if t, ok := trx.transactionModifications[id]; ok {
			return &t, nil
		}
	}

	t, ok := db.transactions[id]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return &t, nil
}

func (db *DB) GetTransactionForUpdate(ctx context.Context, id int64) (*booking.Transaction, error) {
	if err := db.lockRow(ctx, fmt.Sprintf("transaction_%d", id)); err != nil {
		return nil, err
	}

	return db.GetTransaction(ctx, id)
}

func (db *DB) GetTransactionByBookingID(ctx context.Context, bookingID int64) (*booking.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if trx := db.activeTrx(ctx); trx != nil {
		for _, t := range trx.transactionModifications {
			if t.BookingID == bookingID {
				return &t, nil
			}
		}
	}

	id, ok := db.transactionsByBooking[bookingID]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	t := db.transactions[id]

	return &t, nil
}

func (db *DB) SaveTransaction(ctx context.Context, t *booking.Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.trx(ctx)
	if err != nil {
		return err
	}

	if t.ID == 0 {
		return fmt.Errorf("transaction for booking %d: %w", t.BookingID, ErrMissingID)
	}

	trx.transactionModifications[t.ID] = *t

	return nil
}

func (db *DB) GetTransactionByIdempotencyKey(ctx context.Context) (*booking.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, booking.ErrIdempotencyKey
	}

	if trx := db.activeTrx(ctx); trx != nil {
		if t, ok := trx.idempotencyModifications[key]; ok {
			return &t, nil
		}
	}

	t, ok := db.idempotencyKeys[key]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return &t, nil
}

// SaveIdempotencyKey stores trx as the result of the request keyed by ctx.
func (db *DB) SaveIdempotencyKey(ctx context.Context, t *booking.Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.trx(ctx)
	if err != nil {
		return err
	}

	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return booking.ErrIdempotencyKey
	}

	trx.idempotencyModifications[key] = *t

	return nil
}

func (db *DB) SaveUser(_ context.Context, u *identity.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.userEmails[u.Email]; taken {
		return identity.ErrEmailTaken
	}

	db.nextUserID++
	u.ID = db.nextUserID

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	db.users[u.ID] = *u
	db.userEmails[u.Email] = u.ID

	return nil
}

func (db *DB) GetUserByEmail(_ context.Context, email string) (*identity.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.userEmails[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}

	u := db.users[id]

	return &u, nil
}

func (db *DB) GetUserByID(_ context.Context, id int64) (*identity.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}

	return &u, nil
}
