package service

import (
	"context"
	"testing"

	"emi-service/internal/domain"
	"emi-service/internal/emi"
	"emi-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBookingService(t *testing.T) (*BookingService, *fakeBookingStore, *fakePublisher) {
	t.Helper()
	store := newFakeBookingStore()
	publisher := &fakePublisher{}
	svc := NewBookingService(store, publisher, newFakeIdempotencyStore(), "INR", emi.DefaultRefundRateBps)
	return svc, store, publisher
}

func TestCreateBookingWithEmiPlan(t *testing.T) {
	svc, _, _ := newTestBookingService(t)

	b, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{
		PackageID:  "pkg_goa",
		FinalPrice: 10000,
		IsPrepaid:  true,
		Emi:        &EmiPlanRequest{TotalTenure: 3},
	}, "u1")
	require.NoError(t, err)

	require.NotNil(t, b.Emi)
	assert.True(t, b.Emi.IsEmiBooking)
	assert.Len(t, b.Emi.Schedule, 3)
	assert.Equal(t, int64(3333), b.Emi.MonthlyAmount)

	var sum int64
	for _, inst := range b.Emi.Schedule {
		sum += inst.Amount
	}
	assert.Equal(t, int64(10000), sum)
	assert.Equal(t, "INR", b.Currency)
	assert.Equal(t, models.BookingStatusPending, b.Status)
}

func TestCreateBookingWithoutEmi(t *testing.T) {
	svc, _, _ := newTestBookingService(t)

	b, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{
		FinalPrice: 5000,
	}, "u1")
	require.NoError(t, err)
	assert.Nil(t, b.Emi)
}

func TestCreateBookingIdempotencyKeyReturnsExisting(t *testing.T) {
	svc, _, _ := newTestBookingService(t)
	ctx := context.Background()

	req := &CreateBookingRequest{FinalPrice: 5000, IdempotencyKey: "k1"}
	first, err := svc.CreateBooking(ctx, req, "u1")
	require.NoError(t, err)

	second, err := svc.CreateBooking(ctx, req, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// The same key from another user creates a fresh booking.
	third, err := svc.CreateBooking(ctx, req, "u2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, _, _ := newTestBookingService(t)

	_, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{FinalPrice: 0}, "u1")
	assertCode(t, err, domain.CodeValidation)

	_, err = svc.CreateBooking(context.Background(), &CreateBookingRequest{
		FinalPrice: 1000,
		Emi:        &EmiPlanRequest{TotalTenure: 0},
	}, "u1")
	assertCode(t, err, domain.CodeValidation)
}

func TestCancelPrepaidBookingRefunds80Percent(t *testing.T) {
	svc, store, publisher := newTestBookingService(t)
	require.NoError(t, store.CreateBooking(context.Background(), &models.Booking{
		ID: "bk_1", UserID: "u1", FinalPrice: 10000, Currency: "INR",
		IsPrepaid: true, Status: models.BookingStatusPending,
	}))

	resp, err := svc.CancelBooking(context.Background(), "bk_1", "schedule conflict", "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(8000), resp.RefundAmount)
	assert.Equal(t, models.BookingStatusCancel, resp.Booking.Status)
	assert.Equal(t, "schedule conflict", resp.CancellationReason)
	require.Len(t, publisher.cancelled, 1)
	assert.Equal(t, int64(8000), publisher.cancelled[0].RefundAmount)
}

func TestCancelNonPrepaidBookingRefundsNothing(t *testing.T) {
	svc, store, _ := newTestBookingService(t)
	require.NoError(t, store.CreateBooking(context.Background(), &models.Booking{
		ID: "bk_1", UserID: "u1", FinalPrice: 10000, Currency: "INR",
		IsPrepaid: false, Status: models.BookingStatusPending,
	}))

	resp, err := svc.CancelBooking(context.Background(), "bk_1", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.RefundAmount)
}

func TestCancelTerminalStates(t *testing.T) {
	svc, store, _ := newTestBookingService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateBooking(ctx, &models.Booking{
		ID: "bk_cancelled", UserID: "u1", FinalPrice: 1000, Currency: "INR",
		Status: models.BookingStatusCancel,
	}))
	_, err := svc.CancelBooking(ctx, "bk_cancelled", "", "u1")
	assertCode(t, err, domain.CodeAlreadyCancelled)

	require.NoError(t, store.CreateBooking(ctx, &models.Booking{
		ID: "bk_done", UserID: "u1", FinalPrice: 1000, Currency: "INR",
		Status: models.BookingStatusCompleted,
	}))
	_, err = svc.CancelBooking(ctx, "bk_done", "", "u1")
	assertCode(t, err, domain.CodeBookingCompleted)
}

func TestCancelHidesForeignBookings(t *testing.T) {
	svc, store, _ := newTestBookingService(t)
	require.NoError(t, store.CreateBooking(context.Background(), &models.Booking{
		ID: "bk_1", UserID: "u1", FinalPrice: 1000, Currency: "INR",
		Status: models.BookingStatusPending,
	}))

	_, err := svc.CancelBooking(context.Background(), "bk_1", "", "u2")
	assertCode(t, err, domain.CodeBookingNotFound)
}

func TestListBookingsPaging(t *testing.T) {
	svc, store, _ := newTestBookingService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateBooking(ctx, &models.Booking{
			ID: models.NewBookingID(), UserID: "u1", FinalPrice: 1000, Currency: "INR",
			Status: models.BookingStatusPending,
		}))
	}

	page, total, err := svc.ListBookings(ctx, "u1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	page, total, err = svc.ListBookings(ctx, "u1", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 1)
}
