package store

import (
	"context"
	"database/sql"
	"fmt"

	"booking-payments/internal/apperr"
	"booking-payments/internal/models"
)

// CreateBooking inserts a new booking record. The search-to-book flow
// normally does this upstream; it exists here for seeding and tests.
func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (id, amount, currency, status, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		booking.ID, booking.Amount, booking.Currency, booking.Status, booking.PaymentStatus).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(fmt.Sprintf("booking not found: %s", id))
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// SetPaymentPending reserves the pending payment slot on a booking as a
// single conditional write. A new attempt supersedes a prior pending
// one, but a booking that already succeeded is never rewound.
func (s *Store) SetPaymentPending(ctx context.Context, bookingID, method, transactionID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET payment_method = $1, payment_status = $2, transaction_id = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status <> $5`,
		method, models.PaymentStatusPending, transactionID, bookingID, models.PaymentStatusSucceeded)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetBookingByID(ctx, bookingID); err != nil {
			return err
		}
		return apperr.Conflict(fmt.Sprintf("booking already paid: %s", bookingID))
	}
	return nil
}

// ConfirmBooking overwrites the terminal payment fields in one atomic
// conditional write. It reports whether a row actually transitioned so
// the orchestrator can suppress duplicate side effects on replays.
func (s *Store) ConfirmBooking(ctx context.Context, bookingID, transactionID, method string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, payment_status = $2, transaction_id = $3, payment_method = $4,
		    confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $5 AND payment_status <> $2`,
		models.BookingStatusConfirmed, models.PaymentStatusSucceeded, transactionID, method, bookingID)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// FailPayment marks a booking's payment attempt as terminally failed.
// Like ConfirmBooking it is a conditional write that never rewinds a
// settled booking and reports whether a row transitioned.
func (s *Store) FailPayment(ctx context.Context, bookingID, transactionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, payment_status = $2, transaction_id = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status NOT IN ($2, $5)`,
		models.BookingStatusFailed, models.PaymentStatusFailed, transactionID, bookingID, models.PaymentStatusSucceeded)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// RecordPaymentAttempt appends a row to the attempt log
func (s *Store) RecordPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (booking_id, transaction_id, channel, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		attempt.BookingID, attempt.TransactionID, attempt.Channel, attempt.ExpiresAt).
		Scan(&attempt.ID, &attempt.CreatedAt)
}

// GetPaymentAttempts retrieves the attempt log for a booking, newest first
func (s *Store) GetPaymentAttempts(ctx context.Context, bookingID string) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := s.db.SelectContext(ctx, &attempts,
		"SELECT * FROM payment_attempts WHERE booking_id = $1 ORDER BY created_at DESC", bookingID)
	return attempts, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
