package booking

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNextID            = errors.New("get next id from generator")
	ErrRecordNotFound    = errors.New("record not found")
	ErrTransactionExists = errors.New("transaction already exists for booking")
	ErrIdempotencyKey    = errors.New("idempotency key not found in ctx")
	ErrIdempotencyReused = errors.New("idempotency key already used for another transaction")
)

// NotFoundError reports a missing booking, transaction or slot price together
// with the lookup key that produced nothing.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func IsNotFoundError(err error) *NotFoundError {
	if err == nil {
		return nil
	}

	var notFoundError *NotFoundError

	if errors.As(err, &notFoundError) {
		return notFoundError
	}

	return nil
}

type OverpaymentError struct {
	BookingID  int64
	TotalPrice decimal.Decimal
	Paid       decimal.Decimal
	Leftover   decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf(
		"overpayment on booking %d: total price %s, paid %s, leftover would be %s",
		e.BookingID,
		e.TotalPrice.StringFixed(2),
		e.Paid.StringFixed(2),
		e.Leftover.StringFixed(2),
	)
}

func IsOverpaymentError(err error) *OverpaymentError {
	if err == nil {
		return nil
	}

	var overpaymentError *OverpaymentError

	if errors.As(err, &overpaymentError) {
		return overpaymentError
	}

	return nil
}

// StorageError hides the underlying persistence failure behind a generic
// message. The cause stays reachable through Unwrap for logs.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsStorageError(err error) *StorageError {
	if err == nil {
		return nil
	}

	var storageError *StorageError

	if errors.As(err, &storageError) {
		return storageError
	}

	return nil
}

type InputError struct {
	fields map[string][]string
}

func newInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) fieldsCount() int {
	return len(ie.fields)
}

func (ie *InputError) addError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

func (ie *InputError) Error() string {
	return fmt.Sprintf("%+v", ie.fields)
}

func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}
