package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"emi-service/internal/models"
)

// fakeBookingStore is an in-memory BookingStore with the same conditional
// update semantics as the Postgres store.
type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]*models.Booking)}
}

func cloneBooking(b *models.Booking) *models.Booking {
	copied := *b
	if b.Emi != nil {
		emiCopy := *b.Emi
		emiCopy.Schedule = append([]models.Installment(nil), b.Emi.Schedule...)
		copied.Emi = &emiCopy
	}
	return &copied
}

func (f *fakeBookingStore) CreateBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	f.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (f *fakeBookingStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneBooking(b), nil
}

func (f *fakeBookingStore) ListBookingsByUser(_ context.Context, userID string, limit, offset int) ([]*models.Booking, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			all = append(all, cloneBooking(b))
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeBookingStore) UpdateBookingStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.Status = status
	}
	return nil
}

func (f *fakeBookingStore) CancelBooking(_ context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status == models.BookingStatusCancel || b.Status == models.BookingStatusCompleted {
		return false, nil
	}
	now := time.Now().UTC()
	b.Status = models.BookingStatusCancel
	b.CancellationReason = reason
	b.CancelledAt = &now
	return true, nil
}

func (f *fakeBookingStore) MarkInstallmentPaid(_ context.Context, bookingID string, number int, paymentID, transactionID string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.Emi == nil {
		return false, nil
	}
	inst := b.Emi.FindInstallment(number)
	if inst == nil || inst.Status != models.InstallmentStatusPending {
		return false, nil
	}
	inst.Status = models.InstallmentStatusPaid
	inst.PaidAt = &paidAt
	inst.PaymentID = paymentID
	inst.TransactionID = transactionID
	return true, nil
}

// fakeIdempotencyStore keeps idempotency keys in a map.
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: make(map[string]string)}
}

func (f *fakeIdempotencyStore) SetIdempotencyKey(_ context.Context, key, bookingID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = bookingID
	return nil
}

func (f *fakeIdempotencyStore) GetIdempotencyKey(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.keys[key]
	return id, ok, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu        sync.Mutex
	paid      []*models.InstallmentPaidEvent
	cancelled []*models.BookingCancelledEvent
}

func (f *fakePublisher) PublishInstallmentPaid(_ context.Context, e *models.InstallmentPaidEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, e)
	return nil
}

func (f *fakePublisher) PublishBookingCancelled(_ context.Context, e *models.BookingCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, e)
	return nil
}
