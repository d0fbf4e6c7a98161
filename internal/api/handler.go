package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"booking-payments/internal/apperr"
	"booking-payments/internal/deals"
	"booking-payments/internal/models"
	"booking-payments/internal/service"
	"booking-payments/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PaymentInitiator starts payment attempts and exposes the attempt log
type PaymentInitiator interface {
	Initiate(ctx context.Context, req service.PaymentRequest) (*service.PaymentArtifact, error)
	Attempts(ctx context.Context, bookingID string) ([]models.PaymentAttempt, error)
}

// Confirmer settles or fails a booking after the gateway reports the
// payment outcome
type Confirmer interface {
	Confirm(ctx context.Context, bookingID, transactionID, paymentMethod string) (*service.ConfirmResult, error)
	Fail(ctx context.Context, bookingID, transactionID, reason string) error
}

// Converter converts amounts between currencies
type Converter interface {
	Convert(ctx context.Context, from, to string, amount float64) (*service.ConversionResult, error)
}

// DealReader serves cached best-price deal listings
type DealReader interface {
	Get(ctx context.Context, limit int, forceRefresh bool) (deals.Result, error)
}

// Handler contains HTTP handlers
type Handler struct {
	payments     PaymentInitiator
	orchestrator Confirmer
	rates        Converter
	deals        DealReader
	defaultLimit int
	maxLimit     int
}

// NewHandler creates a new HTTP handler
func NewHandler(payments PaymentInitiator, orchestrator Confirmer, rates Converter, dealReader DealReader, defaultLimit, maxLimit int) *Handler {
	return &Handler{
		payments:     payments,
		orchestrator: orchestrator,
		rates:        rates,
		deals:        dealReader,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/qr", h.generateQR)
		v1.POST("/payments/upi", h.initiateUPI)
		v1.GET("/payments/stripe-key", h.stripeKey)
		v1.GET("/payments/attempts/:bookingId", h.paymentAttempts)
		v1.POST("/payments/confirm", h.confirmPayment)
		v1.POST("/payments/fail", h.failPayment)
		v1.GET("/payments/convert", h.convertCurrency)
		v1.GET("/deals/min-price", h.minPriceDeals)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type qrGenerateRequest struct {
	BookingID string  `json:"bookingId" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
	Currency  string  `json:"currency"`
}

// generateQR handles QR payment generation
func (h *Handler) generateQR(c *gin.Context) {
	var req qrGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	artifact, err := h.payments.Initiate(c.Request.Context(), service.PaymentRequest{
		Channel:   models.PaymentMethodQR,
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		writeError(c, err, "Failed to generate QR payment")
		return
	}

	c.JSON(http.StatusOK, artifact.QR)
}

type upiInitiateRequest struct {
	BookingID string  `json:"bookingId" binding:"required"`
	UPIID     string  `json:"upiId" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
	Currency  string  `json:"currency"`
}

// initiateUPI handles UPI payment initiation
func (h *Handler) initiateUPI(c *gin.Context) {
	var req upiInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	artifact, err := h.payments.Initiate(c.Request.Context(), service.PaymentRequest{
		Channel:   models.PaymentMethodUPI,
		BookingID: req.BookingID,
		UPIID:     req.UPIID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		writeError(c, err, "Failed to initiate UPI payment")
		return
	}

	c.JSON(http.StatusOK, artifact.UPI)
}

// stripeKey returns the hosted-checkout publishable key
func (h *Handler) stripeKey(c *gin.Context) {
	artifact, err := h.payments.Initiate(c.Request.Context(), service.PaymentRequest{
		Channel: models.PaymentMethodCard,
	})
	if err != nil {
		writeError(c, err, "Checkout key unavailable")
		return
	}

	c.JSON(http.StatusOK, artifact.Card)
}

type confirmRequest struct {
	BookingID     string `json:"bookingId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

// confirmPayment handles payment confirmation
func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.orchestrator.Confirm(c.Request.Context(), req.BookingID, req.TransactionID, req.PaymentMethod)
	if err != nil {
		writeError(c, err, "Failed to confirm payment")
		return
	}

	c.JSON(http.StatusOK, result)
}

// paymentAttempts serves the attempt log for support lookups
func (h *Handler) paymentAttempts(c *gin.Context) {
	attempts, err := h.payments.Attempts(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		writeError(c, err, "Failed to load payment attempts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    len(attempts),
	})
}

type failRequest struct {
	BookingID     string `json:"bookingId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
	Reason        string `json:"reason"`
}

// failPayment handles gateway failure callbacks
func (h *Handler) failPayment(c *gin.Context) {
	var req failRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.orchestrator.Fail(c.Request.Context(), req.BookingID, req.TransactionID, req.Reason); err != nil {
		writeError(c, err, "Failed to record payment failure")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"bookingId": req.BookingID,
	})
}

// convertCurrency handles currency conversion
func (h *Handler) convertCurrency(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	amountStr := c.Query("amount")

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid amount",
			"details": amountStr,
		})
		return
	}

	result, err := h.rates.Convert(c.Request.Context(), from, to, amount)
	if err != nil {
		writeError(c, err, "Failed to convert amount")
		return
	}

	c.JSON(http.StatusOK, result)
}

// minPriceDeals serves the deal listing. Upstream failures degrade to a
// 200 with the error field set so the UI can render an explicit error
// state instead of a silent empty list.
func (h *Handler) minPriceDeals(c *gin.Context) {
	limit := h.defaultLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid limit",
				"details": v,
			})
			return
		}
		limit = parsed
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	refresh := c.Query("refresh") == "true" || c.Query("refresh") == "1"

	result, err := h.deals.Get(c.Request.Context(), limit, refresh)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"deals":     []models.MinPriceDeal{},
			"total":     0,
			"fromCache": false,
			"error":     err.Error(),
		})
		return
	}

	resp := gin.H{
		"deals":     result.Deals,
		"total":     len(result.Deals),
		"fromCache": result.FromCache,
		"fetchedAt": result.FetchedAt,
	}
	if result.Warning != "" {
		resp["error"] = result.Warning
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps tagged error kinds onto HTTP statuses and the common
// error body shape
func writeError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindConfiguration:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// corsMiddleware answers preflight and attaches permissive CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
