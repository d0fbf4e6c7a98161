package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"booking-payments/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	processed map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{processed: make(map[string]string)}
}

func (l *fakeLedger) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := l.processed[eventID]
	return ok, nil
}

func (l *fakeLedger) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	l.processed[eventID] = eventType
	return nil
}

func confirmedMessage(t *testing.T, eventID string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypePaymentConfirmed,
			Timestamp: time.Now(),
		},
		BookingID:     "B1",
		TransactionID: "TX1",
		PaymentMethod: models.PaymentMethodQR,
	})
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestWorkerMarksConfirmedEventProcessed(t *testing.T) {
	ledger := newFakeLedger()
	w := NewNotificationWorker(nil, ledger)

	err := w.eventHandler.HandleMessage(context.Background(), confirmedMessage(t, "evt-1"))
	require.NoError(t, err)

	assert.Equal(t, models.EventTypePaymentConfirmed, ledger.processed["evt-1"])
}

func TestWorkerDedupesRedeliveredEvent(t *testing.T) {
	ledger := newFakeLedger()
	w := NewNotificationWorker(nil, ledger)

	msg := confirmedMessage(t, "evt-1")
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	// redelivery of the same event is absorbed without error
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))

	assert.Len(t, ledger.processed, 1)
}

func TestWorkerHandlesFailedEvent(t *testing.T) {
	ledger := newFakeLedger()
	w := NewNotificationWorker(nil, ledger)

	payload, err := json.Marshal(models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		BookingID:     "B1",
		TransactionID: "TX1",
		Reason:        "expired",
	})
	require.NoError(t, err)

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	assert.Equal(t, models.EventTypePaymentFailed, ledger.processed["evt-2"])
}

func TestWorkerIgnoresUnknownEventType(t *testing.T) {
	ledger := newFakeLedger()
	w := NewNotificationWorker(nil, ledger)

	payload := []byte(`{"event_id":"evt-3","event_type":"SOMETHING_ELSE"}`)
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload}))

	assert.Empty(t, ledger.processed)
}
