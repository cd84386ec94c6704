package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"emi-service/internal/domain"
	"emi-service/internal/emi"
	"emi-service/internal/models"
	"emi-service/internal/util"

	"go.uber.org/zap"
)

// BookingService handles booking lifecycle outside the payment flow:
// creation, lookup, listing and cancellation with refund computation.
type BookingService struct {
	store         BookingStore
	publisher     Publisher
	idempotency   IdempotencyStore
	logger        *zap.Logger
	currency      string
	refundRateBps int64
}

// NewBookingService creates a new booking service.
func NewBookingService(store BookingStore, publisher Publisher, idempotency IdempotencyStore, currency string, refundRateBps int64) *BookingService {
	if currency == "" {
		currency = "INR"
	}
	return &BookingService{
		store:         store,
		publisher:     publisher,
		idempotency:   idempotency,
		logger:        util.GetLogger(),
		currency:      currency,
		refundRateBps: refundRateBps,
	}
}

// CreateBookingRequest represents a checkout request.
type CreateBookingRequest struct {
	PackageID      string          `json:"packageId"`
	FinalPrice     int64           `json:"finalPrice" binding:"required"`
	Currency       string          `json:"currency"`
	IsPrepaid      bool            `json:"isPrepaid"`
	Emi            *EmiPlanRequest `json:"emi,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// EmiPlanRequest asks for the price to be split over a tenure.
type EmiPlanRequest struct {
	TotalTenure int `json:"totalTenure" binding:"required,min=1"`
}

// CancelBookingResponse is returned by cancellation.
type CancelBookingResponse struct {
	Booking            *models.Booking `json:"booking"`
	RefundAmount       int64           `json:"refundAmount"`
	CancellationReason string          `json:"cancellationReason"`
}

// CreateBooking creates a booking, deriving the installment schedule when an
// EMI plan is requested.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest, userID string) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if req.FinalPrice <= 0 {
		return nil, domain.Validation("finalPrice must be positive")
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	// A retried request with the same key returns the booking it already made.
	idemKey := ""
	if s.idempotency != nil && req.IdempotencyKey != "" {
		idemKey = userID + ":" + req.IdempotencyKey
		if existingID, found, err := s.idempotency.GetIdempotencyKey(ctx, idemKey); err == nil && found {
			return s.GetBooking(ctx, existingID, userID)
		}
	}

	booking := &models.Booking{
		ID:         models.NewBookingID(),
		UserID:     userID,
		PackageID:  req.PackageID,
		FinalPrice: req.FinalPrice,
		Currency:   currency,
		IsPrepaid:  req.IsPrepaid,
		Status:     models.BookingStatusPending,
	}

	if req.Emi != nil {
		schedule, err := emi.BuildSchedule(req.FinalPrice, req.Emi.TotalTenure, time.Now().UTC())
		if err != nil {
			return nil, domain.Validation(err.Error())
		}
		booking.Emi = &models.EmiDetails{
			IsEmiBooking:  true,
			TotalTenure:   req.Emi.TotalTenure,
			MonthlyAmount: emi.MonthlyAmount(req.FinalPrice, req.Emi.TotalTenure),
			TotalAmount:   req.FinalPrice,
			Schedule:      schedule,
		}
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, domain.Internal(err)
	}

	if idemKey != "" {
		if err := s.idempotency.SetIdempotencyKey(ctx, idemKey, booking.ID, 24*time.Hour); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID),
		zap.Bool("emi", booking.Emi != nil))

	return booking, nil
}

// GetBooking loads one booking for its owner.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BookingNotFound(bookingID)
		}
		return nil, domain.Internal(err)
	}
	if booking.UserID != userID {
		return nil, domain.BookingNotFound(bookingID)
	}
	return booking, nil
}

// ListBookings returns one page of the caller's bookings plus the total.
func (s *BookingService) ListBookings(ctx context.Context, userID string, limit, page int) ([]*models.Booking, int, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	if page < 1 {
		page = 1
	}
	bookings, total, err := s.store.ListBookingsByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, domain.Internal(err)
	}
	return bookings, total, nil
}

// CancelBooking cancels a booking and computes the refund. Remaining pending
// installments are left in place; the booking's cancel status short-circuits
// any later payment attempt against them.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, reason, userID string) (*CancelBookingResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CancelBooking")
	defer span.End()

	booking, err := s.GetBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case models.BookingStatusCancel:
		return nil, domain.AlreadyCancelled(bookingID)
	case models.BookingStatusCompleted:
		return nil, domain.BookingCompleted(bookingID)
	}

	cancelled, err := s.store.CancelBooking(ctx, bookingID, reason)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if !cancelled {
		// Lost a race: someone else moved the booking to a terminal status
		// between our read and the conditional update.
		booking, err = s.GetBooking(ctx, bookingID, userID)
		if err != nil {
			return nil, err
		}
		if booking.Status == models.BookingStatusCompleted {
			return nil, domain.BookingCompleted(bookingID)
		}
		return nil, domain.AlreadyCancelled(bookingID)
	}

	refund := emi.RefundAmount(booking.FinalPrice, booking.IsPrepaid, s.refundRateBps)
	now := time.Now().UTC()
	booking.Status = models.BookingStatusCancel
	booking.CancellationReason = reason
	booking.CancelledAt = &now

	util.BookingsCancelledTotal.Inc()
	util.RefundAmountTotal.Add(float64(refund))
	s.logger.Info("Booking cancelled",
		zap.String("booking_id", bookingID),
		zap.Int64("refund_amount", refund))

	if s.publisher != nil {
		event := &models.BookingCancelledEvent{
			BaseEvent:    newBaseEvent(models.EventTypeBookingCancelled),
			BookingID:    bookingID,
			UserID:       userID,
			Reason:       reason,
			RefundAmount: refund,
		}
		if err := s.publisher.PublishBookingCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish BookingCancelled event", zap.Error(err))
		}
	}

	return &CancelBookingResponse{
		Booking:            booking,
		RefundAmount:       refund,
		CancellationReason: reason,
	}, nil
}
