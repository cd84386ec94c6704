package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusWaiting   = "waiting"
	BookingStatusApproval  = "approval"
	BookingStatusCompleted = "completed"
	BookingStatusCancel    = "cancel"
	BookingStatusFailed    = "failed"
)

// Installment statuses. "paid" is terminal.
const (
	InstallmentStatusPending = "pending"
	InstallmentStatusPaid    = "paid"
)

// Payment session statuses, forward-only.
const (
	SessionStatusCreated    = "created"
	SessionStatusProcessing = "processing"
	SessionStatusCompleted  = "completed"
	SessionStatusFailed     = "failed"
)

// EMI progress labels derived from paid count
const (
	EmiLabelNotStarted    = "not_started"
	EmiLabelPartiallyPaid = "partially_paid"
	EmiLabelFullyPaid     = "fully_paid"
)

// PaymentIDPrefix distinguishes payment session identifiers from booking IDs.
const PaymentIDPrefix = "pay_"

// Booking represents one purchased travel package. Amounts are in the
// currency's minor unit.
type Booking struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"userId"`
	PackageID          string      `json:"packageId,omitempty"`
	FinalPrice         int64       `json:"finalPrice"`
	Currency           string      `json:"currency"`
	IsPrepaid          bool        `json:"isPrepaid"`
	Status             string      `json:"status"`
	Emi                *EmiDetails `json:"emiDetails,omitempty"`
	CancellationReason string      `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time  `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// EmiDetails is the installment plan embedded in an EMI booking.
type EmiDetails struct {
	IsEmiBooking  bool          `json:"isEmiBooking"`
	TotalTenure   int           `json:"totalTenure"`
	MonthlyAmount int64         `json:"monthlyAmount"`
	TotalAmount   int64         `json:"totalAmount"`
	Schedule      []Installment `json:"schedule"`
}

// Installment is one scheduled payment within an EMI plan.
type Installment struct {
	InstallmentNumber int        `json:"installmentNumber"`
	Amount            int64      `json:"amount"`
	DueDate           time.Time  `json:"dueDate"`
	Status            string     `json:"status"`
	PaidAt            *time.Time `json:"paidAt,omitempty"`
	PaymentID         string     `json:"paymentId,omitempty"`
	TransactionID     string     `json:"transactionId,omitempty"`
}

// PaidCount is always derived from the schedule, never stored independently.
func (e *EmiDetails) PaidCount() int {
	if e == nil {
		return 0
	}
	n := 0
	for i := range e.Schedule {
		if e.Schedule[i].Status == InstallmentStatusPaid {
			n++
		}
	}
	return n
}

// PaidAmount sums the amounts of paid installments.
func (e *EmiDetails) PaidAmount() int64 {
	if e == nil {
		return 0
	}
	var sum int64
	for i := range e.Schedule {
		if e.Schedule[i].Status == InstallmentStatusPaid {
			sum += e.Schedule[i].Amount
		}
	}
	return sum
}

// RemainingAmount is the unpaid portion of the plan.
func (e *EmiDetails) RemainingAmount() int64 {
	if e == nil {
		return 0
	}
	return e.TotalAmount - e.PaidAmount()
}

// NextPending returns the lowest-numbered pending installment, or nil when the
// plan is fully paid. The schedule is ordered by installment number.
func (e *EmiDetails) NextPending() *Installment {
	if e == nil {
		return nil
	}
	for i := range e.Schedule {
		if e.Schedule[i].Status == InstallmentStatusPending {
			return &e.Schedule[i]
		}
	}
	return nil
}

// FindInstallment returns the installment with the given 1-based number.
func (e *EmiDetails) FindInstallment(number int) *Installment {
	if e == nil {
		return nil
	}
	for i := range e.Schedule {
		if e.Schedule[i].InstallmentNumber == number {
			return &e.Schedule[i]
		}
	}
	return nil
}

// Label maps paid count to the progress label exposed by the status endpoint.
func (e *EmiDetails) Label() string {
	paid := e.PaidCount()
	switch {
	case paid == 0:
		return EmiLabelNotStarted
	case paid < e.TotalTenure:
		return EmiLabelPartiallyPaid
	default:
		return EmiLabelFullyPaid
	}
}

// PaymentSession is the ephemeral stand-in for a gateway-side payment attempt.
// Its EMI fields are a display snapshot taken at creation time; the booking
// remains the source of truth for installment state.
type PaymentSession struct {
	PaymentID     string `json:"paymentId"`
	OrderID       string `json:"orderId"`
	UserID        string `json:"userId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`

	IsEmi             bool  `json:"isEmi"`
	InstallmentNumber int   `json:"installmentNumber,omitempty"`
	EmiMonths         int   `json:"emiMonths,omitempty"`
	EmiAmount         int64 `json:"emiAmount,omitempty"`
	TotalAmount       int64 `json:"totalAmount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPaymentID generates a fresh session identifier with the payment prefix.
func NewPaymentID() string {
	return fmt.Sprintf("%s%s", PaymentIDPrefix, uuid.New().String())
}

// NewBookingID generates a booking identifier.
func NewBookingID() string {
	return fmt.Sprintf("bk_%s", uuid.New().String())
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
