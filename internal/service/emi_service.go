package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"emi-service/internal/domain"
	"emi-service/internal/models"
	"emi-service/internal/session"
	"emi-service/internal/util"

	"go.uber.org/zap"
)

// EmiService coordinates installment initiation, payment-session creation,
// verification and booking-state updates. It is the only component with
// cross-entity rules; the booking store stays authoritative for installment
// state throughout.
type EmiService struct {
	store          BookingStore
	sessions       session.Store
	locker         Locker
	publisher      Publisher
	logger         *zap.Logger
	bookingLocks   keyedMutex
	paymentBaseURL string
	lockTTL        time.Duration
}

// NewEmiService creates a new EMI orchestration service.
func NewEmiService(store BookingStore, sessions session.Store, locker Locker, publisher Publisher, paymentBaseURL string, lockTTL time.Duration) *EmiService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &EmiService{
		store:          store,
		sessions:       sessions,
		locker:         locker,
		publisher:      publisher,
		logger:         util.GetLogger(),
		paymentBaseURL: paymentBaseURL,
		lockTTL:        lockTTL,
	}
}

// InitiatePaymentResponse is returned when an installment payment is started.
type InitiatePaymentResponse struct {
	PaymentID         string `json:"paymentId"`
	PaymentURL        string `json:"paymentUrl"`
	OrderID           string `json:"orderId"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	InstallmentNumber int    `json:"installmentNumber"`
	Status            string `json:"status"`
}

// VerifyPaymentResponse is returned by payment verification.
type VerifyPaymentResponse struct {
	Verified          bool   `json:"verified"`
	Status            string `json:"status"`
	OrderID           string `json:"orderId"`
	IsEmi             bool   `json:"isEmi"`
	InstallmentNumber int    `json:"installmentNumber"`
}

// EmiProgress summarizes how far along a plan is.
type EmiProgress struct {
	PaidCount       int   `json:"paidCount"`
	TotalTenure     int   `json:"totalTenure"`
	RemainingAmount int64 `json:"remainingAmount"`
	TotalAmount     int64 `json:"totalAmount"`
}

// EmiStatusResponse is the full status view of an EMI plan.
type EmiStatusResponse struct {
	BookingID       string               `json:"bookingId"`
	Status          string               `json:"status"`
	Progress        EmiProgress          `json:"progress"`
	NextInstallment *models.Installment  `json:"nextInstallment"`
	Schedule        []models.Installment `json:"schedule"`
}

// InitiateInstallmentPayment validates the booking and installment, then
// registers a payment session carrying a display snapshot of the EMI
// metadata. The booking itself is untouched; the installment stays pending
// until verification.
func (s *EmiService) InitiateInstallmentPayment(ctx context.Context, bookingID string, installmentNumber int, userID string) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "EmiService.InitiateInstallmentPayment")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentInitiateLatency.Observe(time.Since(start).Seconds())
	}()

	booking, err := s.getOwnedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancel {
		return nil, domain.AlreadyCancelled(bookingID)
	}
	if booking.Emi == nil || !booking.Emi.IsEmiBooking {
		return nil, domain.NotEmiBooking(bookingID)
	}

	inst := booking.Emi.FindInstallment(installmentNumber)
	if inst == nil {
		return nil, domain.InvalidInstallment(installmentNumber)
	}
	if inst.Status == models.InstallmentStatusPaid {
		return nil, domain.AlreadyPaid(installmentNumber)
	}

	sess := &models.PaymentSession{
		OrderID:           booking.ID,
		UserID:            booking.UserID,
		Amount:            inst.Amount,
		Currency:          booking.Currency,
		IsEmi:             true,
		InstallmentNumber: inst.InstallmentNumber,
		EmiMonths:         booking.Emi.TotalTenure,
		EmiAmount:         booking.Emi.MonthlyAmount,
		TotalAmount:       booking.Emi.TotalAmount,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, domain.Internal(err)
	}

	util.PaymentSessionsCreatedTotal.Inc()
	s.logger.Info("Payment session created",
		zap.String("payment_id", sess.PaymentID),
		zap.String("booking_id", booking.ID),
		zap.Int("installment", inst.InstallmentNumber))

	return &InitiatePaymentResponse{
		PaymentID:         sess.PaymentID,
		PaymentURL:        fmt.Sprintf("%s/checkout/%s", s.paymentBaseURL, sess.PaymentID),
		OrderID:           booking.ID,
		Amount:            inst.Amount,
		Currency:          booking.Currency,
		InstallmentNumber: inst.InstallmentNumber,
		Status:            sess.Status,
	}, nil
}

// VerifyInstallmentPayment completes the session (simulated gateway success),
// marks the installment paid exactly once and republishes the derived paid
// count. Re-verifying a completed session with the same transaction reference
// reports verified without touching paid_at again.
func (s *EmiService) VerifyInstallmentPayment(ctx context.Context, paymentID, transactionID, userID string) (*VerifyPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "EmiService.VerifyInstallmentPayment")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentVerifyLatency.Observe(time.Since(start).Seconds())
	}()

	sess, err := s.sessions.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			util.VerificationsFailedTotal.WithLabelValues("payment_not_found").Inc()
			return nil, domain.PaymentNotFound(paymentID)
		}
		return nil, domain.Internal(err)
	}
	if sess.UserID != userID {
		util.VerificationsFailedTotal.WithLabelValues("unauthorized").Inc()
		return nil, domain.Unauthorized("payment session belongs to another user")
	}

	unlock, err := s.lockBooking(ctx, sess.OrderID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	defer unlock()

	// Already completed: idempotent re-verification. Verified only when the
	// supplied reference matches the one recorded on the session.
	if sess.Status == models.SessionStatusCompleted {
		if sess.TransactionID != transactionID {
			util.VerificationsFailedTotal.WithLabelValues("transaction_mismatch").Inc()
		}
		return &VerifyPaymentResponse{
			Verified:          sess.TransactionID == transactionID,
			Status:            sess.Status,
			OrderID:           sess.OrderID,
			IsEmi:             sess.IsEmi,
			InstallmentNumber: sess.InstallmentNumber,
		}, nil
	}

	// The booking is the source of truth; the session's EMI snapshot is never
	// trusted for paid-ness.
	booking, err := s.getBooking(ctx, sess.OrderID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancel {
		util.VerificationsFailedTotal.WithLabelValues("booking_cancelled").Inc()
		return nil, domain.AlreadyCancelled(booking.ID)
	}
	if booking.Emi == nil || booking.Emi.FindInstallment(sess.InstallmentNumber) == nil {
		return nil, domain.InvalidInstallment(sess.InstallmentNumber)
	}

	sess, err = s.sessions.Transition(ctx, paymentID, models.SessionStatusCompleted, func(ps *models.PaymentSession) {
		ps.TransactionID = transactionID
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			util.VerificationsFailedTotal.WithLabelValues("session_not_payable").Inc()
			return nil, domain.Validation("payment session is no longer payable")
		}
		return nil, domain.Internal(err)
	}

	updated, err := s.store.MarkInstallmentPaid(ctx, booking.ID, sess.InstallmentNumber, sess.PaymentID, transactionID, time.Now().UTC())
	if err != nil {
		return nil, domain.Internal(err)
	}

	if updated {
		util.InstallmentsPaidTotal.Inc()

		// Reload so the paid count is derived from stored installment state.
		booking, err = s.getBooking(ctx, sess.OrderID)
		if err != nil {
			return nil, err
		}

		s.logger.Info("Installment paid",
			zap.String("booking_id", booking.ID),
			zap.Int("installment", sess.InstallmentNumber),
			zap.Int("paid_count", booking.Emi.PaidCount()),
			zap.Int("total_tenure", booking.Emi.TotalTenure))

		if s.publisher != nil {
			s.publishInstallmentPaid(ctx, booking, sess, transactionID)
		}
	}

	return &VerifyPaymentResponse{
		Verified:          true,
		Status:            sess.Status,
		OrderID:           sess.OrderID,
		IsEmi:             sess.IsEmi,
		InstallmentNumber: sess.InstallmentNumber,
	}, nil
}

// GetEmiStatus resolves the identifier to its booking and reports plan
// progress. Payment identifiers are resolved through the session's order
// reference after an ownership check.
func (s *EmiService) GetEmiStatus(ctx context.Context, id Identifier, userID string) (*EmiStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "EmiService.GetEmiStatus")
	defer span.End()

	bookingID := id.bookingID
	if id.paymentID != "" {
		sess, err := s.sessions.Get(ctx, id.paymentID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, domain.PaymentNotFound(id.paymentID)
			}
			return nil, domain.Internal(err)
		}
		// Same response as an unknown payment so nothing leaks about
		// sessions owned by other users.
		if sess.UserID != userID {
			return nil, domain.PaymentNotFound(id.paymentID)
		}
		bookingID = sess.OrderID
	}

	booking, err := s.getOwnedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if booking.Emi == nil || !booking.Emi.IsEmiBooking {
		return nil, domain.NotEmiBooking(bookingID)
	}

	return &EmiStatusResponse{
		BookingID: booking.ID,
		Status:    booking.Emi.Label(),
		Progress: EmiProgress{
			PaidCount:       booking.Emi.PaidCount(),
			TotalTenure:     booking.Emi.TotalTenure,
			RemainingAmount: booking.Emi.RemainingAmount(),
			TotalAmount:     booking.Emi.TotalAmount,
		},
		NextInstallment: booking.Emi.NextPending(),
		Schedule:        booking.Emi.Schedule,
	}, nil
}

// GetReceiptData loads the session and booking backing a paid-installment
// receipt. Only the owner of a completed session may fetch one.
func (s *EmiService) GetReceiptData(ctx context.Context, paymentID, userID string) (*models.PaymentSession, *models.Booking, error) {
	sess, err := s.sessions.Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, nil, domain.PaymentNotFound(paymentID)
		}
		return nil, nil, domain.Internal(err)
	}
	if sess.UserID != userID {
		return nil, nil, domain.PaymentNotFound(paymentID)
	}
	if sess.Status != models.SessionStatusCompleted {
		return nil, nil, domain.Validation("receipt is only available for completed payments")
	}

	booking, err := s.getBooking(ctx, sess.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return sess, booking, nil
}

func (s *EmiService) publishInstallmentPaid(ctx context.Context, booking *models.Booking, sess *models.PaymentSession, transactionID string) {
	event := &models.InstallmentPaidEvent{
		BaseEvent:         newBaseEvent(models.EventTypeInstallmentPaid),
		BookingID:         booking.ID,
		UserID:            booking.UserID,
		InstallmentNumber: sess.InstallmentNumber,
		Amount:            sess.Amount,
		PaymentID:         sess.PaymentID,
		TransactionID:     transactionID,
		PaidCount:         booking.Emi.PaidCount(),
		TotalTenure:       booking.Emi.TotalTenure,
	}
	if err := s.publisher.PublishInstallmentPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish InstallmentPaid event", zap.Error(err))
	}
}

// lockBooking serializes mutations per booking. The in-process mutex is the
// baseline; the redis lock extends serialization across processes. The
// store's conditional update remains the final guard either way.
func (s *EmiService) lockBooking(ctx context.Context, bookingID string) (func(), error) {
	unlock := s.bookingLocks.lock(bookingID)

	if s.locker == nil {
		return unlock, nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		acquired, err := s.locker.AcquireBookingLock(ctx, bookingID, s.lockTTL)
		if err != nil {
			s.logger.Warn("Distributed lock unavailable, relying on conditional updates",
				zap.String("booking_id", bookingID),
				zap.Error(err))
			return unlock, nil
		}
		if acquired {
			return func() {
				if err := s.locker.ReleaseBookingLock(context.Background(), bookingID); err != nil {
					s.logger.Error("Failed to release booking lock",
						zap.String("booking_id", bookingID),
						zap.Error(err))
				}
				unlock()
			}, nil
		}
		select {
		case <-ctx.Done():
			unlock()
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	return unlock, nil
}

// getOwnedBooking loads a booking and hides its existence from non-owners.
func (s *EmiService) getOwnedBooking(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.OrderNotFound(bookingID)
	}
	return booking, nil
}

func (s *EmiService) getBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.OrderNotFound(bookingID)
		}
		return nil, domain.Internal(err)
	}
	return booking, nil
}
