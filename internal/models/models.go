package models

import (
	"database/sql"
	"time"
)

// Booking represents the durable record of a purchase intent and its
// payment progress.
type Booking struct {
	ID            string         `db:"id" json:"id"`
	Amount        float64        `db:"amount" json:"amount"`
	Currency      string         `db:"currency" json:"currency"`
	Status        string         `db:"status" json:"status"`
	PaymentStatus string         `db:"payment_status" json:"payment_status"`
	PaymentMethod sql.NullString `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID sql.NullString `db:"transaction_id" json:"transaction_id,omitempty"`
	ConfirmedAt   sql.NullTime   `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// PaymentAttempt is one row of the append-only attempt log. The booking
// row itself stays the source of truth for settlement; the log records
// every attempt for audit and support lookups.
type PaymentAttempt struct {
	ID            int64     `db:"id" json:"id"`
	BookingID     string    `db:"booking_id" json:"booking_id"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	Channel       string    `db:"channel" json:"channel"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
}

// MinPriceDeal is a single best-price listing. Deals are immutable once
// fetched; a refresh replaces the whole list, never individual fields.
type MinPriceDeal struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	Airline       string  `json:"airline"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	DepartureDate string  `json:"departureDate"`
	ReturnDate    string  `json:"returnDate,omitempty"`
	CabinClass    string  `json:"cabinClass"`
	BookingLink   string  `json:"bookingLink"`
}

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusFailed    = "failed"
	BookingStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusNone      = "none"
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment channels
const (
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"
	PaymentMethodQR   = "qr"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
