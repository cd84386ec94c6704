package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"emi-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishInstallmentPaid publishes InstallmentPaid event
func (ep *EventPublisher) PublishInstallmentPaid(ctx context.Context, event *models.InstallmentPaidEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishBookingCancelled publishes BookingCancelled event
func (ep *EventPublisher) PublishBookingCancelled(ctx context.Context, event *models.BookingCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishBookingCompleted publishes BookingCompleted event
func (ep *EventPublisher) PublishBookingCompleted(ctx context.Context, event *models.BookingCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.BookingID), event)
}

// PublishSessionExpired publishes PaymentSessionExpired event
func (ep *EventPublisher) PublishSessionExpired(ctx context.Context, event *models.PaymentSessionExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, bookingKey(event.OrderID), event)
}

func bookingKey(bookingID string) string {
	return fmt.Sprintf("booking-%s", bookingID)
}

// EventHandler routes incoming payment events to registered callbacks.
type EventHandler struct {
	onInstallmentPaid func(context.Context, *models.InstallmentPaidEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnInstallmentPaid registers a handler for InstallmentPaid events
func (eh *EventHandler) OnInstallmentPaid(handler func(context.Context, *models.InstallmentPaidEvent) error) {
	eh.onInstallmentPaid = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeInstallmentPaid:
		if eh.onInstallmentPaid != nil {
			var event models.InstallmentPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InstallmentPaid event: %w", err)
			}
			return eh.onInstallmentPaid(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
