package models

import "time"

// Event types
const (
	EventTypePaymentInitiated = "PAYMENT_INITIATED"
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentInitiatedEvent published when a payment attempt reserves the
// pending slot on a booking
type PaymentInitiatedEvent struct {
	BaseEvent
	BookingID     string  `json:"booking_id"`
	TransactionID string  `json:"transaction_id"`
	Channel       string  `json:"channel"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// PaymentConfirmedEvent published the first time a booking reaches the
// confirmed/succeeded terminal state; idempotent replays do not
// republish it
type PaymentConfirmedEvent struct {
	BaseEvent
	BookingID     string `json:"booking_id"`
	TransactionID string `json:"transaction_id"`
	PaymentMethod string `json:"payment_method"`
}

// PaymentFailedEvent published when a payment attempt fails terminally
type PaymentFailedEvent struct {
	BaseEvent
	BookingID     string `json:"booking_id"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}
