package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

const amountPlaces = 2

func checkAmount(inputErr *InputError, field string, amount decimal.Decimal, allowNegative bool) {
	if !allowNegative && amount.IsNegative() {
		inputErr.addError(field, "must not be negative")
	}

	if !amount.Equal(amount.Round(amountPlaces)) {
		inputErr.addError(field, "must have at most 2 decimal places")
	}
}

func (m MethodAmounts) check(inputErr *InputError, prefix string) {
	checkAmount(inputErr, prefix+".cash", m.Cash, false)
	checkAmount(inputErr, prefix+".mobile_banking", m.MobileBanking, false)
	checkAmount(inputErr, prefix+".bank_transfer", m.BankTransfer, false)
}

func (in *OpenInput) validate() error {
	inputErr := newInputError()

	if in.BookingID <= 0 {
		inputErr.addError("booking_id", "provide booking_id")
	}

	checkAmount(inputErr, "booking_payment", in.BookingPayment, false)
	checkAmount(inputErr, "fee_payment", in.FeePayment, false)
	checkAmount(inputErr, "discount", in.Discount, false)
	checkAmount(inputErr, "adjustments", in.Adjustments, true)
	in.Methods.check(inputErr, "methods")

	if inputErr.fieldsCount() > 0 {
		return inputErr
	}

	return nil
}

func (in *AmendInput) validate() error {
	inputErr := newInputError()

	if in.TransactionID <= 0 {
		inputErr.addError("transaction_id", "provide transaction_id")
	}

	checkAmount(inputErr, "fee_delta", in.FeeDelta, false)
	checkAmount(inputErr, "discount", in.Discount, false)
	checkAmount(inputErr, "adjustments", in.Adjustments, true)
	in.Methods.check(inputErr, "methods")

	if inputErr.fieldsCount() > 0 {
		return inputErr
	}

	return nil
}

// applyOpen records the literal amounts of the first payment event. Method
// amounts are the channel breakdown of the fee payment, so they count towards it.
func applyOpen(trx *Transaction, in *OpenInput) {
	trx.BookingPayment = in.BookingPayment
	trx.FeePayment = in.FeePayment.Add(in.Methods.Total())
	trx.Discount = in.Discount
	trx.OtherAdjustments = in.Adjustments
	trx.CashPayment = in.Methods.Cash
	trx.MobileBankingPayment = in.Methods.MobileBanking
	trx.BankTransferPayment = in.Methods.BankTransfer
}

// applyAmend accumulates fee and method deltas and replaces discount and
// adjustments.
func applyAmend(trx *Transaction, in *AmendInput, actorID int64, now time.Time) {
	trx.FeePayment = trx.FeePayment.Add(in.FeeDelta).Add(in.Methods.Total())
	trx.CashPayment = trx.CashPayment.Add(in.Methods.Cash)
	trx.MobileBankingPayment = trx.MobileBankingPayment.Add(in.Methods.MobileBanking)
	trx.BankTransferPayment = trx.BankTransferPayment.Add(in.Methods.BankTransfer)
	trx.Discount = in.Discount
	trx.OtherAdjustments = in.Adjustments
	trx.UpdaterID = actorID
	trx.UpdatedAt = now
}

// Paid is the amount credited against the total price.
func (t *Transaction) Paid() decimal.Decimal {
	return t.BookingPayment.Add(t.FeePayment).Sub(t.Discount).Add(t.OtherAdjustments)
}

func settlementStatus(leftover decimal.Decimal) Status {
	if leftover.IsZero() {
		return StatusSuccessful
	}

	return StatusPartial
}

// reconcile derives leftover and status. A negative leftover is rejected
// without touching trx.
func reconcile(trx *Transaction) error {
	paid := trx.Paid()
	leftover := trx.TotalPrice.Sub(paid)

	if leftover.IsNegative() {
		return &OverpaymentError{
			BookingID:  trx.BookingID,
			TotalPrice: trx.TotalPrice,
			Paid:       paid,
			Leftover:   leftover,
		}
	}

	trx.Leftover = leftover
	trx.Status = settlementStatus(leftover)

	return nil
}
