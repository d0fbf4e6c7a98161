package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"booking-payments/config"
	"booking-payments/internal/apperr"
	"booking-payments/internal/models"
	"booking-payments/internal/txid"
	"booking-payments/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingStore is the durable record store for bookings. The store is
// an external collaborator; all writes it exposes are atomic
// conditional updates keyed by booking id.
type BookingStore interface {
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	SetPaymentPending(ctx context.Context, bookingID, method, transactionID string) error
	ConfirmBooking(ctx context.Context, bookingID, transactionID, method string) (bool, error)
	FailPayment(ctx context.Context, bookingID, transactionID string) (bool, error)
	RecordPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	GetPaymentAttempts(ctx context.Context, bookingID string) ([]models.PaymentAttempt, error)
}

// EventPublisher publishes payment lifecycle events
type EventPublisher interface {
	PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentRequest is the tagged union crossing the payment boundary,
// discriminated by Channel. Unknown channels are rejected up front.
type PaymentRequest struct {
	Channel   string  `json:"channel"`
	BookingID string  `json:"bookingId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	UPIID     string  `json:"upiId"`
}

// QRPaymentResult is the artifact produced by the QR channel
type QRPaymentResult struct {
	QRCodeURL     string `json:"qrCodeUrl"`
	TransactionID string `json:"transactionId"`
	UPIString     string `json:"upiString"`
	ExpiresIn     int    `json:"expiresIn"`
}

// UPIPaymentResult is the artifact produced by the UPI channel
type UPIPaymentResult struct {
	TransactionID string `json:"transactionId"`
}

// CardPaymentResult is the artifact produced by the card channel
type CardPaymentResult struct {
	PublishableKey string `json:"publishableKey"`
}

// PaymentArtifact is the union of channel artifacts returned by Initiate
type PaymentArtifact struct {
	Channel string             `json:"channel"`
	QR      *QRPaymentResult   `json:"qr,omitempty"`
	UPI     *UPIPaymentResult  `json:"upi,omitempty"`
	Card    *CardPaymentResult `json:"card,omitempty"`
}

// PaymentService drives a booking from created into payment-initiated
// across the three payment channels
type PaymentService struct {
	store  BookingStore
	events EventPublisher
	txids  *txid.Generator
	cfg    config.PaymentConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(store BookingStore, events EventPublisher, txids *txid.Generator, cfg config.PaymentConfig) *PaymentService {
	return &PaymentService{
		store:  store,
		events: events,
		txids:  txids,
		cfg:    cfg,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Initiate dispatches a payment request to its channel. The match is
// exhaustive; anything but qr/upi/card is a validation error.
func (ps *PaymentService) Initiate(ctx context.Context, req PaymentRequest) (*PaymentArtifact, error) {
	switch req.Channel {
	case models.PaymentMethodQR:
		res, err := ps.GenerateQR(ctx, req.BookingID, req.Amount, req.Currency)
		if err != nil {
			return nil, err
		}
		return &PaymentArtifact{Channel: req.Channel, QR: res}, nil

	case models.PaymentMethodUPI:
		res, err := ps.InitiateUPI(ctx, req.BookingID, req.UPIID, req.Amount, req.Currency)
		if err != nil {
			return nil, err
		}
		return &PaymentArtifact{Channel: req.Channel, UPI: res}, nil

	case models.PaymentMethodCard:
		res, err := ps.CardCheckoutKey(ctx)
		if err != nil {
			return nil, err
		}
		return &PaymentArtifact{Channel: req.Channel, Card: res}, nil

	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown payment channel: %q", req.Channel))
	}
}

// GenerateQR builds a UPI payment URI for the booking, wraps it into a
// QR image URL and reserves the pending payment slot on the booking.
func (ps *PaymentService) GenerateQR(ctx context.Context, bookingID string, amount float64, currency string) (*QRPaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GenerateQR")
	defer span.End()

	util.PaymentAttemptsTotal.WithLabelValues(models.PaymentMethodQR).Inc()

	if bookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}
	if amount <= 0 {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodQR, "invalid_amount").Inc()
		return nil, apperr.Validation("amount must be positive")
	}
	if currency == "" {
		currency = "INR"
	}

	booking, err := ps.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodQR, "not_found").Inc()
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodQR, "not_pending").Inc()
		return nil, apperr.Conflict(fmt.Sprintf("booking %s is not payable: status=%s", bookingID, booking.Status))
	}

	transactionID := ps.txids.Generate("QR")
	upiString := ps.buildUPIString(bookingID, transactionID, amount, currency)
	qrCodeURL := fmt.Sprintf("%s?size=300x300&data=%s", ps.cfg.QRRenderBaseURL, url.QueryEscape(upiString))

	if err := ps.reservePendingSlot(ctx, booking, models.PaymentMethodQR, transactionID, amount, currency); err != nil {
		return nil, err
	}

	ps.logger.Info("QR payment initiated",
		zap.String("booking_id", bookingID),
		zap.String("transaction_id", transactionID))

	return &QRPaymentResult{
		QRCodeURL:     qrCodeURL,
		TransactionID: transactionID,
		UPIString:     upiString,
		ExpiresIn:     ps.cfg.QRExpirySeconds,
	}, nil
}

// InitiateUPI reserves the pending payment slot for a collect request
// against the payer's UPI handle
func (ps *PaymentService) InitiateUPI(ctx context.Context, bookingID, upiID string, amount float64, currency string) (*UPIPaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiateUPI")
	defer span.End()

	util.PaymentAttemptsTotal.WithLabelValues(models.PaymentMethodUPI).Inc()

	if bookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}
	if upiID == "" {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodUPI, "missing_upi_id").Inc()
		return nil, apperr.Validation("upiId is required")
	}
	if amount <= 0 {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodUPI, "invalid_amount").Inc()
		return nil, apperr.Validation("amount must be positive")
	}
	if currency == "" {
		currency = "INR"
	}

	booking, err := ps.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodUPI, "not_found").Inc()
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		util.PaymentAttemptsFailed.WithLabelValues(models.PaymentMethodUPI, "not_pending").Inc()
		return nil, apperr.Conflict(fmt.Sprintf("booking %s is not payable: status=%s", bookingID, booking.Status))
	}

	transactionID := ps.txids.Generate("UPI")

	if err := ps.reservePendingSlot(ctx, booking, models.PaymentMethodUPI, transactionID, amount, currency); err != nil {
		return nil, err
	}

	ps.logger.Info("UPI payment initiated",
		zap.String("booking_id", bookingID),
		zap.String("transaction_id", transactionID),
		zap.String("upi_id", upiID))

	return &UPIPaymentResult{TransactionID: transactionID}, nil
}

// CardCheckoutKey returns the hosted-checkout publishable key. The card
// channel never touches a booking record; state only changes on the
// later confirm call once checkout completes.
func (ps *PaymentService) CardCheckoutKey(_ context.Context) (*CardPaymentResult, error) {
	if ps.cfg.StripePublishableKey == "" {
		return nil, apperr.Configuration("stripe publishable key is not configured")
	}
	return &CardPaymentResult{PublishableKey: ps.cfg.StripePublishableKey}, nil
}

// Attempts returns the attempt log for a booking, newest first
func (ps *PaymentService) Attempts(ctx context.Context, bookingID string) ([]models.PaymentAttempt, error) {
	if bookingID == "" {
		return nil, apperr.Validation("bookingId is required")
	}
	if _, err := ps.store.GetBookingByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return ps.store.GetPaymentAttempts(ctx, bookingID)
}

// reservePendingSlot applies the shared QR/UPI side effects: the
// conditional booking update, the attempt log append and the initiated
// event. Starting a new attempt supersedes a prior pending one.
func (ps *PaymentService) reservePendingSlot(ctx context.Context, booking *models.Booking, method, transactionID string, amount float64, currency string) error {
	if err := ps.store.SetPaymentPending(ctx, booking.ID, method, transactionID); err != nil {
		util.PaymentAttemptsFailed.WithLabelValues(method, "store_error").Inc()
		return err
	}

	attempt := &models.PaymentAttempt{
		BookingID:     booking.ID,
		TransactionID: transactionID,
		Channel:       method,
		ExpiresAt:     ps.now().Add(time.Duration(ps.cfg.QRExpirySeconds) * time.Second),
	}
	if err := ps.store.RecordPaymentAttempt(ctx, attempt); err != nil {
		ps.logger.Error("Failed to record payment attempt",
			zap.String("booking_id", booking.ID),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
	}

	event := &models.PaymentInitiatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentInitiated,
			Timestamp: ps.now(),
		},
		BookingID:     booking.ID,
		TransactionID: transactionID,
		Channel:       method,
		Amount:        amount,
		Currency:      currency,
	}
	if err := ps.events.PublishPaymentInitiated(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentInitiated event", zap.Error(err))
	}

	return nil
}

// buildUPIString assembles the upi://pay deep link. The booking
// reference in tn is truncated so terminals with narrow note fields
// still show it in full.
func (ps *PaymentService) buildUPIString(bookingID, transactionID string, amount float64, currency string) string {
	ref := bookingID
	if len(ref) > 8 {
		ref = ref[:8]
	}

	q := url.Values{}
	q.Set("pa", ps.cfg.UPIPayeeVPA)
	q.Set("pn", ps.cfg.UPIPayeeName)
	q.Set("am", strconv.FormatFloat(amount, 'f', 2, 64))
	q.Set("cu", currency)
	q.Set("tn", fmt.Sprintf("Booking %s", ref))
	q.Set("tr", transactionID)

	return "upi://pay?" + q.Encode()
}
