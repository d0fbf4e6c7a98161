package service

import (
	"context"
	"testing"

	"booking-payments/internal/apperr"
	"booking-payments/internal/models"
	"booking-payments/internal/txid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	pub := &fakePublisher{}
	bo := NewBookingOrchestrator(store, pub)

	res, err := bo.Confirm(context.Background(), "B1", "QR1700000000000abc123", "qr")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "B1", res.BookingID)
	assert.Equal(t, "QR1700000000000abc123", res.TransactionID)

	booking := store.bookings["B1"]
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, booking.PaymentStatus)
	assert.Equal(t, "QR1700000000000abc123", booking.TransactionID.String)
	assert.True(t, booking.ConfirmedAt.Valid)

	require.Len(t, pub.confirmed, 1)
	assert.Equal(t, "B1", pub.confirmed[0].BookingID)
}

func TestConfirmIdempotentReplay(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	pub := &fakePublisher{}
	bo := NewBookingOrchestrator(store, pub)

	first, err := bo.Confirm(context.Background(), "B1", "TX1", "upi")
	require.NoError(t, err)

	second, err := bo.Confirm(context.Background(), "B1", "TX1", "upi")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// replay must not publish a second confirmation event
	assert.Len(t, pub.confirmed, 1)
	assert.Equal(t, models.PaymentStatusSucceeded, store.bookings["B1"].PaymentStatus)
}

func TestConfirmConflictOnDifferentTransactionID(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	bo := NewBookingOrchestrator(store, &fakePublisher{})

	_, err := bo.Confirm(context.Background(), "B1", "TX1", "qr")
	require.NoError(t, err)

	_, err = bo.Confirm(context.Background(), "B1", "TX2", "qr")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// the settled record is untouched
	assert.Equal(t, "TX1", store.bookings["B1"].TransactionID.String)
}

func TestConfirmValidation(t *testing.T) {
	bo := NewBookingOrchestrator(newFakeStore(), &fakePublisher{})

	_, err := bo.Confirm(context.Background(), "", "TX1", "qr")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = bo.Confirm(context.Background(), "B1", "", "qr")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = bo.Confirm(context.Background(), "B1", "TX1", "cheque")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestConfirmBookingNotFound(t *testing.T) {
	bo := NewBookingOrchestrator(newFakeStore(), &fakePublisher{})

	_, err := bo.Confirm(context.Background(), "missing", "TX1", "qr")

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestFail(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	pub := &fakePublisher{}
	bo := NewBookingOrchestrator(store, pub)

	err := bo.Fail(context.Background(), "B1", "TX1", "expired")
	require.NoError(t, err)

	booking := store.bookings["B1"]
	assert.Equal(t, models.BookingStatusFailed, booking.Status)
	assert.Equal(t, models.PaymentStatusFailed, booking.PaymentStatus)

	require.Len(t, pub.failed, 1)
	assert.Equal(t, "expired", pub.failed[0].Reason)
}

func TestFailReplayIsNoOp(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	pub := &fakePublisher{}
	bo := NewBookingOrchestrator(store, pub)

	require.NoError(t, bo.Fail(context.Background(), "B1", "TX1", "expired"))
	require.NoError(t, bo.Fail(context.Background(), "B1", "TX1", "expired"))

	assert.Len(t, pub.failed, 1)
}

func TestFailAfterSettlementConflicts(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	bo := NewBookingOrchestrator(store, &fakePublisher{})

	_, err := bo.Confirm(context.Background(), "B1", "TX1", "qr")
	require.NoError(t, err)

	err = bo.Fail(context.Background(), "B1", "TX1", "expired")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, models.PaymentStatusSucceeded, store.bookings["B1"].PaymentStatus)
}

// Full lifecycle: QR generation reserves the pending slot, confirm
// settles the booking with the issued transaction id.
func TestQRPaymentLifecycle(t *testing.T) {
	store := newFakeStore(pendingBooking("B1", 100))
	pub := &fakePublisher{}
	ps := NewPaymentService(store, pub, txid.NewGenerator(), testPaymentConfig())
	bo := NewBookingOrchestrator(store, pub)

	qr, err := ps.GenerateQR(context.Background(), "B1", 100, "INR")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, store.bookings["B1"].PaymentStatus)

	res, err := bo.Confirm(context.Background(), "B1", qr.TransactionID, "qr")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, qr.TransactionID, res.TransactionID)

	booking := store.bookings["B1"]
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, booking.PaymentStatus)
	assert.Equal(t, qr.TransactionID, booking.TransactionID.String)
}
