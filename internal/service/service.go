package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"emi-service/internal/models"

	"github.com/google/uuid"
)

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// BookingStore is the persistence capability the services consume. The
// Postgres store implements it; tests inject an in-memory fake.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Booking, int, error)
	UpdateBookingStatus(ctx context.Context, id, status string) error
	CancelBooking(ctx context.Context, id, reason string) (bool, error)
	MarkInstallmentPaid(ctx context.Context, bookingID string, number int, paymentID, transactionID string, paidAt time.Time) (bool, error)
}

// Publisher emits domain events. Implemented by broker.EventPublisher.
type Publisher interface {
	PublishInstallmentPaid(ctx context.Context, event *models.InstallmentPaidEvent) error
	PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error
}

// Locker is the cross-process per-booking lock, implemented by the redis
// client. A nil Locker is valid for single-instance deployments; the
// in-process keyed mutex and the store's conditional updates still hold.
type Locker interface {
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	ReleaseBookingLock(ctx context.Context, bookingID string) error
}

// IdempotencyStore deduplicates booking creation across retries. Also
// implemented by the redis client; nil disables the check.
type IdempotencyStore interface {
	SetIdempotencyKey(ctx context.Context, key, bookingID string, ttl time.Duration) error
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
}

// Identifier is a tagged booking-or-payment reference. Which variant applies
// is decided once at the API boundary, never by sniffing strings in business
// logic.
type Identifier struct {
	bookingID string
	paymentID string
}

// BookingIdentifier tags id as a booking reference.
func BookingIdentifier(id string) Identifier {
	return Identifier{bookingID: id}
}

// PaymentIdentifier tags id as a payment session reference.
func PaymentIdentifier(id string) Identifier {
	return Identifier{paymentID: id}
}

// ParseIdentifier classifies a raw path identifier by its prefix. This is the
// single place the prefix convention is interpreted.
func ParseIdentifier(raw string) Identifier {
	if strings.HasPrefix(raw, models.PaymentIDPrefix) {
		return PaymentIdentifier(raw)
	}
	return BookingIdentifier(raw)
}

// keyedMutex serializes in-process work per booking. Entries are tiny and
// bounded by the set of bookings touched during the process lifetime.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
