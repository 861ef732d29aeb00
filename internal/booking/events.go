package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTransactionOpened  = "transaction.opened"
	EventTransactionAmended = "transaction.amended"
	EventTransactionSettled = "transaction.settled"

	eventVersion = 1
)

// Publisher delivers payment events once the storage transaction has committed.
//
//go:generate mockgen -destination=mocks/mock_publisher.go -source=events.go Publisher
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type TransactionEvent struct {
	Event   string               `json:"event"`
	Version int                  `json:"version"`
	Data    TransactionEventData `json:"data"`
}

type TransactionEventData struct {
	TransactionID int64           `json:"transaction_id"`
	BookingID     int64           `json:"booking_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Leftover      decimal.Decimal `json:"leftover"`
	Status        Status          `json:"status"`
	ActorID       int64           `json:"actor_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// publish is best-effort: the payment is already committed, so a broker
// failure is logged and not returned.
func (m *Manager) publish(ctx context.Context, key string, trx *Transaction, actorID int64) {
	if m.publisher == nil {
		return
	}

	event := TransactionEvent{
		Event:   key,
		Version: eventVersion,
		Data: TransactionEventData{
			TransactionID: trx.ID,
			BookingID:     trx.BookingID,
			TotalPrice:    trx.TotalPrice,
			Leftover:      trx.Leftover,
			Status:        trx.Status,
			ActorID:       actorID,
			OccurredAt:    trx.UpdatedAt,
		},
	}

	if err := m.publisher.PublishJSON(ctx, key, event); err != nil {
		m.l.LogWarnf("Could not publish %s for transaction %d: %v", key, trx.ID, err.Error())
	}
}
