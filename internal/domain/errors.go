// Package domain defines the error taxonomy shared by the service and API
// layers. Handlers branch on the machine-readable Code, never on message text.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes exposed to clients.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodePaymentNotFound    = "PAYMENT_NOT_FOUND"
	CodeBookingNotFound    = "BOOKING_NOT_FOUND"
	CodeAlreadyCancelled   = "ALREADY_CANCELLED"
	CodeBookingCompleted   = "BOOKING_COMPLETED"
	CodeNotEmiBooking      = "NOT_EMI_BOOKING"
	CodeInvalidInstallment = "INVALID_INSTALLMENT"
	CodeAlreadyPaid        = "ALREADY_PAID"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a domain-rule violation carrying its HTTP mapping.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// As extracts a domain error from an error chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "unauthorized"
	}
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

func OrderNotFound(id string) *Error {
	return &Error{Code: CodeOrderNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf("order %s not found", id)}
}

func PaymentNotFound(id string) *Error {
	return &Error{Code: CodePaymentNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf("payment %s not found", id)}
}

func BookingNotFound(id string) *Error {
	return &Error{Code: CodeBookingNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf("booking %s not found", id)}
}

func AlreadyCancelled(id string) *Error {
	return &Error{Code: CodeAlreadyCancelled, Status: http.StatusBadRequest, Message: fmt.Sprintf("booking %s is already cancelled", id)}
}

func BookingCompleted(id string) *Error {
	return &Error{Code: CodeBookingCompleted, Status: http.StatusBadRequest, Message: fmt.Sprintf("booking %s is completed and cannot be cancelled", id)}
}

func NotEmiBooking(id string) *Error {
	return &Error{Code: CodeNotEmiBooking, Status: http.StatusBadRequest, Message: fmt.Sprintf("booking %s was not purchased on installments", id)}
}

func InvalidInstallment(n int) *Error {
	return &Error{Code: CodeInvalidInstallment, Status: http.StatusBadRequest, Message: fmt.Sprintf("installment %d does not exist in the schedule", n)}
}

func AlreadyPaid(n int) *Error {
	return &Error{Code: CodeAlreadyPaid, Status: http.StatusBadRequest, Message: fmt.Sprintf("installment %d is already paid", n)}
}

// Internal wraps an unexpected failure. The cause is logged at the boundary
// and never exposed to the caller.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}
