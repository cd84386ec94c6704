package models

import "time"

// Event types
const (
	EventTypeInstallmentPaid       = "INSTALLMENT_PAID"
	EventTypeBookingCancelled      = "BOOKING_CANCELLED"
	EventTypeBookingCompleted      = "BOOKING_COMPLETED"
	EventTypePaymentSessionExpired = "PAYMENT_SESSION_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// InstallmentPaidEvent published when a verified payment marks an installment paid
type InstallmentPaidEvent struct {
	BaseEvent
	BookingID         string `json:"booking_id"`
	UserID            string `json:"user_id"`
	InstallmentNumber int    `json:"installment_number"`
	Amount            int64  `json:"amount"`
	PaymentID         string `json:"payment_id"`
	TransactionID     string `json:"transaction_id"`
	PaidCount         int    `json:"paid_count"`
	TotalTenure       int    `json:"total_tenure"`
}

// BookingCancelledEvent published when a booking is cancelled
type BookingCancelledEvent struct {
	BaseEvent
	BookingID    string `json:"booking_id"`
	UserID       string `json:"user_id"`
	Reason       string `json:"reason"`
	RefundAmount int64  `json:"refund_amount"`
}

// BookingCompletedEvent published when the last installment of a plan is paid
type BookingCompletedEvent struct {
	BaseEvent
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
}

// PaymentSessionExpiredEvent published when the reaper fails an abandoned session
type PaymentSessionExpiredEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	IdleFor   string `json:"idle_for"`
}
