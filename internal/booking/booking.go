package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/slotbooking/internal/logger"
)

const tracerName = "github.com/avstrong/slotbooking/internal/booking"

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

type storageReader interface {
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	GetSlotPrices(ctx context.Context, slot TimeSlot, day time.Weekday) ([]*SlotPrice, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	GetTransactionByBookingID(ctx context.Context, bookingID int64) (*Transaction, error)
	// GetTransactionByIdempotencyKey returns the result stored for the
	// idempotency key carried by ctx.
	GetTransactionByIdempotencyKey(ctx context.Context) (*Transaction, error)
}

type storageWriter interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	// GetBookingForUpdate and GetTransactionForUpdate lock the row until the
	// surrounding storage transaction ends.
	GetBookingForUpdate(ctx context.Context, id int64) (*Booking, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (*Transaction, error)
	SaveTransaction(ctx context.Context, trx *Transaction) error
	SaveIdempotencyKey(ctx context.Context, trx *Transaction) error
}

type storage interface {
	storageReader
	storageWriter
}

type Manager struct {
	l           *logger.Logger
	storage     storage
	idGenerator idGenerator
	publisher   Publisher
	now         func() time.Time
	tracer      trace.Tracer
}

type Option func(m *Manager)

// WithPublisher makes the manager announce committed payment events.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func New(l *logger.Logger, storage storage, idGenerator idGenerator, opts ...Option) *Manager {
	m := &Manager{
		l:           l,
		storage:     storage,
		idGenerator: idGenerator,
		now: func() time.Time {
			return time.Now().UTC()
		},
		tracer: otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// OpenTransaction records the first payment event against a booking.
func (m *Manager) OpenTransaction(ctx context.Context, input *OpenInput, actorID int64) (*Transaction, error) {
	ctx, span := m.tracer.Start(ctx, "booking.OpenTransaction", trace.WithAttributes(
		attribute.Int64("booking.id", input.BookingID),
	))
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}

	trx, err := m.openTransaction(ctx, input, actorID)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	m.publish(ctx, EventTransactionOpened, trx, actorID)

	if trx.Status == StatusSuccessful {
		m.publish(ctx, EventTransactionSettled, trx, actorID)
	}

	return trx, nil
}

func (m *Manager) openTransaction(ctx context.Context, input *OpenInput, actorID int64) (_ *Transaction, err error) {
	ctx, err = m.storage.BeginTransaction(ctx, "READ COMMITTED")
	if err != nil {
		return nil, &StorageError{Op: "begin transaction", Err: err}
	}

	defer m.finish(ctx, "open", &err)

	b, err := m.storage.GetBookingForUpdate(ctx, input.BookingID)
	if err != nil {
		return nil, lookupError(err, "booking", input.BookingID, "get booking")
	}

	existing, err := m.storage.GetTransactionByBookingID(ctx, b.ID)
	if err == nil {
		return nil, fmt.Errorf("booking %d has transaction %d: %w", b.ID, existing.ID, ErrTransactionExists)
	}

	if !errors.Is(err, ErrRecordNotFound) {
		return nil, &StorageError{Op: "get transaction by booking", Err: err}
	}

	price, err := m.resolveSlotPrice(ctx, b.TimeSlot, b.Date)
	if err != nil {
		return nil, err
	}

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, &StorageError{Op: "next transaction id", Err: fmt.Errorf("%w: %w", ErrNextID, err)}
	}

	now := m.now()

	trx := &Transaction{
		ID:         id,
		BookingID:  b.ID,
		TotalPrice: price.Price,
		Status:     StatusPending,
		CreatorID:  actorID,
		UpdaterID:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	applyOpen(trx, input)

	if err = reconcile(trx); err != nil {
		return nil, err
	}

	if err = m.storage.SaveTransaction(ctx, trx); err != nil {
		return nil, saveError(err)
	}

	m.l.LogInfo(
		"Transaction %d opened for booking %d by user %d: total %s, leftover %s, status %s",
		trx.ID, trx.BookingID, actorID, trx.TotalPrice.StringFixed(2), trx.Leftover.StringFixed(2), trx.Status,
	)

	return trx, nil
}

// AmendTransaction records a later payment event against an existing transaction.
func (m *Manager) AmendTransaction(ctx context.Context, input *AmendInput, actorID int64) (*Transaction, error) {
	ctx, span := m.tracer.Start(ctx, "booking.AmendTransaction", trace.WithAttributes(
		attribute.Int64("transaction.id", input.TransactionID),
	))
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}

	trx, outcome, err := m.amendTransaction(ctx, input, actorID)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	if outcome == amendReplayed {
		return trx, nil
	}

	m.publish(ctx, EventTransactionAmended, trx, actorID)

	if outcome == amendSettled {
		m.publish(ctx, EventTransactionSettled, trx, actorID)
	}

	return trx, nil
}

type amendOutcome int

const (
	amendApplied amendOutcome = iota
	amendSettled
	amendReplayed
)

//nolint:funlen,cyclop // it's linear simple code
func (m *Manager) amendTransaction(ctx context.Context, input *AmendInput, actorID int64) (_ *Transaction, _ amendOutcome, err error) {
	ctx, err = m.storage.BeginTransaction(ctx, "READ COMMITTED")
	if err != nil {
		return nil, amendApplied, &StorageError{Op: "begin transaction", Err: err}
	}

	defer m.finish(ctx, "amend", &err)

	current, err := m.storage.GetTransactionForUpdate(ctx, input.TransactionID)
	if err != nil {
		return nil, amendApplied, lookupError(err, "transaction", input.TransactionID, "get transaction")
	}

	key, keyed := IdempotencyKeyFromContext(ctx)
	if keyed {
		prior, lookupErr := m.storage.GetTransactionByIdempotencyKey(ctx)

		switch {
		case lookupErr == nil && prior.ID != current.ID:
			return nil, amendApplied, fmt.Errorf("key %q belongs to transaction %d: %w", key, prior.ID, ErrIdempotencyReused)
		case lookupErr == nil:
			m.l.LogInfo("Amend of transaction %d replayed for idempotency key %q", prior.ID, key)

			return prior, amendReplayed, nil
		case !errors.Is(lookupErr, ErrRecordNotFound):
			return nil, amendApplied, &StorageError{Op: "get transaction by idempotency key", Err: lookupErr}
		}
	}

	b, err := m.storage.GetBooking(ctx, current.BookingID)
	if err != nil {
		return nil, amendApplied, lookupError(err, "booking", current.BookingID, "get booking")
	}

	price, err := m.resolveSlotPrice(ctx, b.TimeSlot, b.Date)
	if err != nil {
		return nil, amendApplied, err
	}

	trx := *current
	trx.TotalPrice = price.Price

	applyAmend(&trx, input, actorID, m.now())

	if err = reconcile(&trx); err != nil {
		return nil, amendApplied, err
	}

	if current.Status == StatusSuccessful && trx.Status != StatusSuccessful {
		m.l.LogWarnf(
			"Settled transaction %d reopened by user %d: leftover %s",
			trx.ID, actorID, trx.Leftover.StringFixed(2),
		)
	}

	if err = m.storage.SaveTransaction(ctx, &trx); err != nil {
		return nil, amendApplied, saveError(err)
	}

	if keyed {
		if err = m.storage.SaveIdempotencyKey(ctx, &trx); err != nil {
			return nil, amendApplied, saveError(err)
		}
	}

	m.l.LogInfo(
		"Transaction %d amended by user %d: total %s, leftover %s, status %s",
		trx.ID, actorID, trx.TotalPrice.StringFixed(2), trx.Leftover.StringFixed(2), trx.Status,
	)

	if current.Status != StatusSuccessful && trx.Status == StatusSuccessful {
		return &trx, amendSettled, nil
	}

	return &trx, amendApplied, nil
}

func (m *Manager) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	trx, err := m.storage.GetTransaction(ctx, id)
	if err != nil {
		err = lookupError(err, "transaction", id, "get transaction")
		m.logFailure("get", err)

		return nil, err
	}

	return trx, nil
}

// finish ends the storage transaction opened by an operation: it rolls back
// when the operation failed or panicked and commits otherwise.
func (m *Manager) finish(ctx context.Context, op string, errp *error) {
	if p := recover(); p != nil {
		if err := m.storage.RollbackTransaction(ctx); err != nil {
			m.l.LogErrorf("Could not rollback %s transaction after panic %v: %v", op, p, err.Error())
		}

		m.l.LogInfo("Transaction %s has been roll backed after panic", op)

		panic(p)
	}

	if *errp != nil {
		if err := m.storage.RollbackTransaction(ctx); err != nil {
			m.l.LogErrorf("Could not rollback %s transaction after error %v: %v", op, (*errp).Error(), err.Error())
		}

		m.logFailure(op, *errp)

		return
	}

	if err := m.storage.CommitTransaction(ctx); err != nil {
		*errp = saveError(err)
		m.logFailure(op, *errp)

		return
	}

	m.l.LogDebugf("Transaction %s has been committed", op)
}

func (m *Manager) logFailure(op string, err error) {
	if storageErr := IsStorageError(err); storageErr != nil {
		m.l.LogErrorf("Could not %s transaction: %v: %v", op, storageErr.Error(), storageErr.Err)

		return
	}

	m.l.LogInfo("Transaction %s rejected: %v", op, err.Error())
}

func lookupError(err error, entity string, id int64, op string) error {
	if errors.Is(err, ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, Key: fmt.Sprintf("id %d", id)}
	}

	return &StorageError{Op: op, Err: err}
}

func saveError(err error) error {
	if errors.Is(err, ErrTransactionExists) || errors.Is(err, ErrIdempotencyReused) {
		return err
	}

	return &StorageError{Op: "save transaction", Err: err}
}
