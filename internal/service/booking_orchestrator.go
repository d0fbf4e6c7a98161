package service

import (
	"context"
	"fmt"
	"time"

	"booking-payments/internal/apperr"
	"booking-payments/internal/models"
	"booking-payments/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmResult is returned to the caller of Confirm
type ConfirmResult struct {
	Success       bool   `json:"success"`
	BookingID     string `json:"bookingId"`
	TransactionID string `json:"transactionId"`
}

// BookingOrchestrator drives bookings through their terminal payment
// transition. Confirmation calls arrive independently of the adapter
// calls that issued the transaction id, possibly more than once.
type BookingOrchestrator struct {
	store  BookingStore
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewBookingOrchestrator creates a new booking orchestrator
func NewBookingOrchestrator(store BookingStore, events EventPublisher) *BookingOrchestrator {
	return &BookingOrchestrator{
		store:  store,
		events: events,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Confirm transitions a booking to confirmed/succeeded. The write is a
// pure overwrite of terminal fields, so repeated delivery of the same
// (bookingId, transactionId) pair is a no-op returning the same success
// response and publishing no second event. A confirm carrying a
// different transaction id after the booking already succeeded is
// rejected as a replay.
func (bo *BookingOrchestrator) Confirm(ctx context.Context, bookingID, transactionID, paymentMethod string) (*ConfirmResult, error) {
	ctx, span := util.StartSpan(ctx, "BookingOrchestrator.Confirm")
	defer span.End()

	if bookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}
	if transactionID == "" {
		return nil, apperr.Validation("transactionId is required")
	}
	switch paymentMethod {
	case models.PaymentMethodQR, models.PaymentMethodUPI, models.PaymentMethodCard:
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown payment method: %q", paymentMethod))
	}

	transitioned, err := bo.store.ConfirmBooking(ctx, bookingID, transactionID, paymentMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}

	if !transitioned {
		// Either the booking is missing or it already succeeded; a
		// matching transaction id means an idempotent replay.
		booking, err := bo.store.GetBookingByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		if booking.PaymentStatus == models.PaymentStatusSucceeded {
			if booking.TransactionID.Valid && booking.TransactionID.String == transactionID {
				util.PaymentConfirmReplays.Inc()
				bo.logger.Info("Confirm replayed, already succeeded",
					zap.String("booking_id", bookingID),
					zap.String("transaction_id", transactionID))
				return &ConfirmResult{Success: true, BookingID: bookingID, TransactionID: transactionID}, nil
			}

			util.PaymentConfirmConflicts.Inc()
			bo.logger.Warn("Confirm rejected, transaction id mismatch on settled booking",
				zap.String("booking_id", bookingID),
				zap.String("transaction_id", transactionID))
			return nil, apperr.Conflict(fmt.Sprintf("booking %s already settled with a different transaction id", bookingID))
		}

		// Not succeeded yet the conditional write matched nothing:
		// the record changed between the two reads. One bounded retry.
		transitioned, err = bo.store.ConfirmBooking(ctx, bookingID, transactionID, paymentMethod)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm booking: %w", err)
		}
		if !transitioned {
			return nil, apperr.Conflict(fmt.Sprintf("booking %s is being settled concurrently", bookingID))
		}
	}

	util.PaymentsConfirmedTotal.Inc()
	bo.logger.Info("Booking confirmed",
		zap.String("booking_id", bookingID),
		zap.String("transaction_id", transactionID),
		zap.String("payment_method", paymentMethod))

	event := &models.PaymentConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentConfirmed,
			Timestamp: bo.now(),
		},
		BookingID:     bookingID,
		TransactionID: transactionID,
		PaymentMethod: paymentMethod,
	}
	if err := bo.events.PublishPaymentConfirmed(ctx, event); err != nil {
		bo.logger.Error("Failed to publish PaymentConfirmed event", zap.Error(err))
	}

	return &ConfirmResult{Success: true, BookingID: bookingID, TransactionID: transactionID}, nil
}

// Fail records a terminal payment failure reported by a gateway
// callback. A booking that already succeeded cannot be failed; a replay
// of the same failure is a no-op returning success without a second
// event.
func (bo *BookingOrchestrator) Fail(ctx context.Context, bookingID, transactionID, reason string) error {
	ctx, span := util.StartSpan(ctx, "BookingOrchestrator.Fail")
	defer span.End()

	if bookingID == "" {
		return apperr.Validation("bookingId is required")
	}
	if transactionID == "" {
		return apperr.Validation("transactionId is required")
	}

	transitioned, err := bo.store.FailPayment(ctx, bookingID, transactionID)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}

	if !transitioned {
		booking, err := bo.store.GetBookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.PaymentStatus == models.PaymentStatusSucceeded {
			return apperr.Conflict(fmt.Sprintf("booking %s already settled, cannot fail", bookingID))
		}
		// already failed; treat redelivery as a no-op
		return nil
	}

	util.PaymentsFailedTotal.Inc()
	bo.logger.Warn("Payment failed",
		zap.String("booking_id", bookingID),
		zap.String("transaction_id", transactionID),
		zap.String("reason", reason))

	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: bo.now(),
		},
		BookingID:     bookingID,
		TransactionID: transactionID,
		Reason:        reason,
	}
	if err := bo.events.PublishPaymentFailed(ctx, event); err != nil {
		bo.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}

	return nil
}
