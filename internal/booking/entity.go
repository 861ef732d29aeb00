package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeSlot string

const (
	SlotMorning       TimeSlot = "9:30 AM - 11:00 AM"
	SlotLateMorning   TimeSlot = "11:00 AM - 12:30 PM"
	SlotMidday        TimeSlot = "12:30 PM - 2:00 PM"
	SlotAfternoon     TimeSlot = "3:00 PM - 4:30 PM"
	SlotLateAfternoon TimeSlot = "4:30 PM - 6:00 PM"
	SlotEvening       TimeSlot = "6:00 PM - 7:30 PM"
	SlotLateEvening   TimeSlot = "7:30 PM - 9:00 PM"
	SlotNight         TimeSlot = "9:00 PM - 10:30 PM"
)

// TimeSlots lists the daily slots in calendar order.
var TimeSlots = []TimeSlot{
	SlotMorning,
	SlotLateMorning,
	SlotMidday,
	SlotAfternoon,
	SlotLateAfternoon,
	SlotEvening,
	SlotLateEvening,
	SlotNight,
}

func ParseTimeSlot(s string) (TimeSlot, bool) {
	for _, slot := range TimeSlots {
		if string(slot) == s {
			return slot, true
		}
	}

	return "", false
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPartial    Status = "PARTIAL"
	StatusSuccessful Status = "SUCCESSFUL"
)

type Booking struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Date           time.Time `json:"booking_date"`
	TimeSlot       TimeSlot  `json:"time_slot"`
	BookedBy       int64     `json:"booked_by"`
	LastModifiedBy int64     `json:"last_modified_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SlotPrice struct {
	ID        int64           `json:"id"`
	TimeSlot  TimeSlot        `json:"time_slot"`
	DayOfWeek time.Weekday    `json:"day_of_week"`
	Price     decimal.Decimal `json:"price"`
	ValidFrom *time.Time      `json:"valid_from,omitempty"`
	ValidTo   *time.Time      `json:"valid_to,omitempty"`
	IsDefault bool            `json:"is_default"`
	CreatedAt time.Time       `json:"created_at"`
}

type MethodAmounts struct {
	Cash          decimal.Decimal `json:"cash"`
	MobileBanking decimal.Decimal `json:"mobile_banking"`
	BankTransfer  decimal.Decimal `json:"bank_transfer"`
}

func (m MethodAmounts) Total() decimal.Decimal {
	return m.Cash.Add(m.MobileBanking).Add(m.BankTransfer)
}

type Transaction struct {
	ID                   int64           `json:"id"`
	BookingID            int64           `json:"booking_id"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	BookingPayment       decimal.Decimal `json:"booking_payment"`
	FeePayment           decimal.Decimal `json:"fee_payment"`
	Discount             decimal.Decimal `json:"discount"`
	OtherAdjustments     decimal.Decimal `json:"other_adjustments"`
	Leftover             decimal.Decimal `json:"leftover"`
	Status               Status          `json:"status"`
	CashPayment          decimal.Decimal `json:"cash_payment"`
	MobileBankingPayment decimal.Decimal `json:"mobile_banking_payment"`
	BankTransferPayment  decimal.Decimal `json:"bank_transfer_payment"`
	CreatorID            int64           `json:"creator_id"`
	UpdaterID            int64           `json:"updater_id"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// OpenInput carries the first payment event recorded against a booking.
type OpenInput struct {
	BookingID      int64           `json:"booking_id"`
	BookingPayment decimal.Decimal `json:"booking_payment"`
	FeePayment     decimal.Decimal `json:"fee_payment"`
	Discount       decimal.Decimal `json:"discount"`
	Adjustments    decimal.Decimal `json:"adjustments"`
	Methods        MethodAmounts   `json:"methods"`
}

// AmendInput carries a later payment event. Fee and methods are deltas,
// discount and adjustments replace the stored values.
type AmendInput struct {
	TransactionID int64           `json:"-"`
	FeeDelta      decimal.Decimal `json:"fee_delta"`
	Discount      decimal.Decimal `json:"discount"`
	Adjustments   decimal.Decimal `json:"adjustments"`
	Methods       MethodAmounts   `json:"methods"`
}

// DateOnly drops the clock part of t and pins it to UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
