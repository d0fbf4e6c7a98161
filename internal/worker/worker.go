package worker

import (
	"context"
	"log"

	"booking-payments/internal/broker"
	"booking-payments/internal/models"
	"booking-payments/internal/util"

	"go.uber.org/zap"
)

// EventLedger records which events have already been acted on, so
// redelivered confirmations never notify twice
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes payment events and dispatches traveler
// notifications exactly once per event
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ledger       EventLedger
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, ledger EventLedger) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		ledger:   ledger,
		logger:   util.Named("notifications"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		util.NotificationsDeduped.Inc()
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	w.logger.Info("Payment confirmed, notifying traveler",
		zap.String("booking_id", event.BookingID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("payment_method", event.PaymentMethod))
	util.NotificationsSentTotal.Inc()

	return w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		util.NotificationsDeduped.Inc()
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	w.logger.Warn("Payment failed, notifying traveler",
		zap.String("booking_id", event.BookingID),
		zap.String("transaction_id", event.TransactionID),
		zap.String("reason", event.Reason))
	util.NotificationsSentTotal.Inc()

	return w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
