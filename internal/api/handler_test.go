package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"booking-payments/internal/apperr"
	"booking-payments/internal/deals"
	"booking-payments/internal/models"
	"booking-payments/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentInitiator struct {
	mock.Mock
}

func (m *MockPaymentInitiator) Initiate(ctx context.Context, req service.PaymentRequest) (*service.PaymentArtifact, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PaymentArtifact), args.Error(1)
}

func (m *MockPaymentInitiator) Attempts(ctx context.Context, bookingID string) ([]models.PaymentAttempt, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentAttempt), args.Error(1)
}

type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, bookingID, transactionID, paymentMethod string) (*service.ConfirmResult, error) {
	args := m.Called(ctx, bookingID, transactionID, paymentMethod)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConfirmResult), args.Error(1)
}

func (m *MockConfirmer) Fail(ctx context.Context, bookingID, transactionID, reason string) error {
	args := m.Called(ctx, bookingID, transactionID, reason)
	return args.Error(0)
}

type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) Convert(ctx context.Context, from, to string, amount float64) (*service.ConversionResult, error) {
	args := m.Called(ctx, from, to, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConversionResult), args.Error(1)
}

type MockDealReader struct {
	mock.Mock
}

func (m *MockDealReader) Get(ctx context.Context, limit int, forceRefresh bool) (deals.Result, error) {
	args := m.Called(ctx, limit, forceRefresh)
	return args.Get(0).(deals.Result), args.Error(1)
}

func setupRouter(payments *MockPaymentInitiator, confirmer *MockConfirmer, converter *MockConverter, dealReader *MockDealReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(payments, confirmer, converter, dealReader, 10, 50)
	handler.SetupRoutes(router)
	return router
}

func TestGenerateQREndpoint(t *testing.T) {
	payments := &MockPaymentInitiator{}
	router := setupRouter(payments, &MockConfirmer{}, &MockConverter{}, &MockDealReader{})

	artifact := &service.PaymentArtifact{
		Channel: models.PaymentMethodQR,
		QR: &service.QRPaymentResult{
			QRCodeURL:     "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=upi",
			TransactionID: "QR1700000000000abc123",
			UPIString:     "upi://pay?pa=travelbook%40upi",
			ExpiresIn:     300,
		},
	}
	payments.On("Initiate", mock.Anything, mock.MatchedBy(func(req service.PaymentRequest) bool {
		return req.Channel == models.PaymentMethodQR && req.BookingID == "B1"
	})).Return(artifact, nil)

	body, _ := json.Marshal(map[string]interface{}{"bookingId": "B1", "amount": 100, "currency": "INR"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/qr", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QR1700000000000abc123", resp["transactionId"])
	assert.Equal(t, float64(300), resp["expiresIn"])
	assert.NotEmpty(t, resp["qrCodeUrl"])
	assert.NotEmpty(t, resp["upiString"])
}

func TestGenerateQREndpointMissingFields(t *testing.T) {
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, &MockDealReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/qr", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestGenerateQREndpointBookingNotFound(t *testing.T) {
	payments := &MockPaymentInitiator{}
	router := setupRouter(payments, &MockConfirmer{}, &MockConverter{}, &MockDealReader{})

	payments.On("Initiate", mock.Anything, mock.Anything).
		Return(nil, apperr.NotFound("booking not found: B9"))

	body, _ := json.Marshal(map[string]interface{}{"bookingId": "B9", "amount": 100})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/qr", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStripeKeyEndpointNotConfigured(t *testing.T) {
	payments := &MockPaymentInitiator{}
	router := setupRouter(payments, &MockConfirmer{}, &MockConverter{}, &MockDealReader{})

	payments.On("Initiate", mock.Anything, mock.Anything).
		Return(nil, apperr.Configuration("stripe publishable key is not configured"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/stripe-key", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	confirmer := &MockConfirmer{}
	router := setupRouter(&MockPaymentInitiator{}, confirmer, &MockConverter{}, &MockDealReader{})

	confirmer.On("Confirm", mock.Anything, "B1", "TX1", "qr").
		Return(&service.ConfirmResult{Success: true, BookingID: "B1", TransactionID: "TX1"}, nil)

	body, _ := json.Marshal(map[string]string{"bookingId": "B1", "transactionId": "TX1", "paymentMethod": "qr"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp service.ConfirmResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "B1", resp.BookingID)
	assert.Equal(t, "TX1", resp.TransactionID)
}

func TestConfirmEndpointConflict(t *testing.T) {
	confirmer := &MockConfirmer{}
	router := setupRouter(&MockPaymentInitiator{}, confirmer, &MockConverter{}, &MockDealReader{})

	confirmer.On("Confirm", mock.Anything, "B1", "TX2", "qr").
		Return(nil, apperr.Conflict("booking B1 already settled with a different transaction id"))

	body, _ := json.Marshal(map[string]string{"bookingId": "B1", "transactionId": "TX2", "paymentMethod": "qr"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFailEndpoint(t *testing.T) {
	confirmer := &MockConfirmer{}
	router := setupRouter(&MockPaymentInitiator{}, confirmer, &MockConverter{}, &MockDealReader{})

	confirmer.On("Fail", mock.Anything, "B1", "TX1", "expired").Return(nil)

	body, _ := json.Marshal(map[string]string{"bookingId": "B1", "transactionId": "TX1", "reason": "expired"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/fail", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	confirmer.AssertCalled(t, "Fail", mock.Anything, "B1", "TX1", "expired")
}

func TestConvertEndpointInvalidAmount(t *testing.T) {
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, &MockDealReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/convert?from=USD&to=INR&amount=abc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMinPriceDealsEndpoint(t *testing.T) {
	dealReader := &MockDealReader{}
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, dealReader)

	fetchedAt := time.Now()
	dealReader.On("Get", mock.Anything, 5, false).Return(deals.Result{
		Deals: []models.MinPriceDeal{
			{Origin: "DEL", Destination: "BOM", Airline: "6E", Price: 3499},
		},
		FetchedAt: fetchedAt,
		FromCache: true,
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/min-price?limit=5", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["total"])
	assert.Equal(t, true, resp["fromCache"])
	assert.NotContains(t, resp, "error")
}

func TestMinPriceDealsEndpointForceRefresh(t *testing.T) {
	dealReader := &MockDealReader{}
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, dealReader)

	dealReader.On("Get", mock.Anything, 5, true).Return(deals.Result{
		Deals:     []models.MinPriceDeal{},
		FetchedAt: time.Now(),
		FromCache: false,
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/min-price?limit=5&refresh=true", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	dealReader.AssertCalled(t, "Get", mock.Anything, 5, true)
}

func TestMinPriceDealsEndpointDegradesTo200(t *testing.T) {
	dealReader := &MockDealReader{}
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, dealReader)

	dealReader.On("Get", mock.Anything, 5, false).
		Return(deals.Result{}, apperr.UpstreamFetch("deal source unavailable", nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/min-price?limit=5", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])
	assert.Equal(t, float64(0), resp["total"])
	assert.Empty(t, resp["deals"])
}

func TestMinPriceDealsEndpointCapsLimit(t *testing.T) {
	dealReader := &MockDealReader{}
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, dealReader)

	dealReader.On("Get", mock.Anything, 50, false).Return(deals.Result{
		Deals:     []models.MinPriceDeal{},
		FetchedAt: time.Now(),
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/min-price?limit=500", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	dealReader.AssertCalled(t, "Get", mock.Anything, 50, false)
}

func TestCORSPreflight(t *testing.T) {
	router := setupRouter(&MockPaymentInitiator{}, &MockConfirmer{}, &MockConverter{}, &MockDealReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments/confirm", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Body.String())
}
