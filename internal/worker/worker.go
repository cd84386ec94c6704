package worker

import (
	"context"
	"time"

	"emi-service/internal/broker"
	"emi-service/internal/models"
	"emi-service/internal/session"
	"emi-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompletionStore is the persistence surface the completion worker needs.
type CompletionStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	UpdateBookingStatus(ctx context.Context, id, status string) error
	CountPaidInstallments(ctx context.Context, bookingID string) (int, error)
}

// CompletionPublisher emits the follow-up event once a plan finishes.
type CompletionPublisher interface {
	PublishBookingCompleted(ctx context.Context, event *models.BookingCompletedEvent) error
}

// CompletionWorker consumes InstallmentPaid events and promotes a booking to
// completed once its final installment is paid. Event IDs are recorded so a
// redelivered message cannot complete a booking twice.
type CompletionWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        CompletionStore
	publisher    CompletionPublisher
	logger       *zap.Logger
}

// NewCompletionWorker creates a new completion worker
func NewCompletionWorker(consumer *broker.Consumer, store CompletionStore, publisher CompletionPublisher) *CompletionWorker {
	w := &CompletionWorker{
		consumer:  consumer,
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnInstallmentPaid(w.handleInstallmentPaid)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *CompletionWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting completion worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CompletionWorker) Stop() error {
	w.logger.Info("Stopping completion worker")
	return w.consumer.Close()
}

func (w *CompletionWorker) handleInstallmentPaid(ctx context.Context, event *models.InstallmentPaidEvent) error {
	if event.PaidCount < event.TotalTenure {
		return nil
	}

	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	// The event's paid count is a hint; the installment rows decide.
	paid, err := w.store.CountPaidInstallments(ctx, event.BookingID)
	if err != nil {
		return err
	}
	if paid < event.TotalTenure {
		w.logger.Warn("Completion event ahead of stored schedule, skipping",
			zap.String("booking_id", event.BookingID),
			zap.Int("stored_paid", paid),
			zap.Int("event_paid", event.PaidCount))
		return nil
	}

	if err := w.store.UpdateBookingStatus(ctx, event.BookingID, models.BookingStatusCompleted); err != nil {
		return err
	}
	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return err
	}

	util.BookingsCompletedTotal.Inc()
	w.logger.Info("Booking completed",
		zap.String("booking_id", event.BookingID),
		zap.Int("total_tenure", event.TotalTenure))

	if w.publisher != nil {
		completed := &models.BookingCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeBookingCompleted,
				Timestamp: time.Now().UTC(),
			},
			BookingID: event.BookingID,
			UserID:    event.UserID,
		}
		if err := w.publisher.PublishBookingCompleted(ctx, completed); err != nil {
			w.logger.Error("Failed to publish BookingCompleted event", zap.Error(err))
		}
	}

	return nil
}

// ExpiryPublisher emits an event per reaped session.
type ExpiryPublisher interface {
	PublishSessionExpired(ctx context.Context, event *models.PaymentSessionExpiredEvent) error
}

// SessionReaper periodically fails payment sessions that were started but
// never verified. Without it abandoned checkouts would sit in the registry
// forever.
type SessionReaper struct {
	sessions  session.Store
	publisher ExpiryPublisher
	logger    *zap.Logger
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewSessionReaper creates a reaper failing sessions idle longer than ttl.
func NewSessionReaper(sessions session.Store, publisher ExpiryPublisher, ttl, interval time.Duration) *SessionReaper {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionReaper{
		sessions:  sessions,
		publisher: publisher,
		logger:    util.GetLogger(),
		ttl:       ttl,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (r *SessionReaper) Start(ctx context.Context) error {
	r.logger.Info("Starting session reaper",
		zap.Duration("ttl", r.ttl),
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping session reaper")
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep fails every stale session once and reports how many were reaped.
func (r *SessionReaper) Sweep(ctx context.Context) int {
	cutoff := r.now().UTC().Add(-r.ttl)
	expired, err := r.sessions.Expire(ctx, cutoff)
	if err != nil {
		r.logger.Error("Session sweep failed", zap.Error(err))
		return 0
	}

	for _, sess := range expired {
		util.PaymentSessionsExpiredTotal.Inc()
		r.logger.Info("Payment session expired",
			zap.String("payment_id", sess.PaymentID),
			zap.String("booking_id", sess.OrderID))

		if r.publisher == nil {
			continue
		}
		event := &models.PaymentSessionExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePaymentSessionExpired,
				Timestamp: r.now().UTC(),
			},
			PaymentID: sess.PaymentID,
			OrderID:   sess.OrderID,
			IdleFor:   r.now().UTC().Sub(sess.CreatedAt).Truncate(time.Second).String(),
		}
		if err := r.publisher.PublishSessionExpired(ctx, event); err != nil {
			r.logger.Error("Failed to publish PaymentSessionExpired event", zap.Error(err))
		}
	}

	return len(expired)
}
