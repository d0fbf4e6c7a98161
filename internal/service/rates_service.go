package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"booking-payments/config"
	"booking-payments/internal/apperr"
	"booking-payments/internal/util"

	"go.uber.org/zap"
)

// RateCache caches exchange rates between fetches
type RateCache interface {
	GetRate(ctx context.Context, from, to string) (float64, bool, error)
	SetRate(ctx context.Context, from, to string, rate float64, ttl time.Duration) error
}

// ConversionResult is the outcome of a currency conversion
type ConversionResult struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	OriginalAmount  float64   `json:"originalAmount"`
	ConvertedAmount float64   `json:"convertedAmount"`
	Rate            float64   `json:"rate"`
	Timestamp       time.Time `json:"timestamp"`
}

// RatesService converts amounts between currencies using rates from an
// external rate API, cached with a TTL
type RatesService struct {
	client   *http.Client
	baseURL  string
	cache    RateCache
	cacheTTL time.Duration
	retry    util.RetryPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewRatesService creates a new rates service
func NewRatesService(cfg config.RatesConfig, cache RateCache) *RatesService {
	return &RatesService{
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		baseURL:  cfg.APIBaseURL,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		retry:    util.ReadRetryPolicy(),
		logger:   util.Named("rates"),
		now:      time.Now,
	}
}

// Convert converts amount from one currency to another. A zero or
// negative amount is always rejected.
func (rs *RatesService) Convert(ctx context.Context, from, to string, amount float64) (*ConversionResult, error) {
	ctx, span := util.StartSpan(ctx, "RatesService.Convert")
	defer span.End()

	if from == "" || to == "" {
		util.CurrencyConversionsFailed.WithLabelValues("missing_currency").Inc()
		return nil, apperr.Validation("from and to currencies are required")
	}
	if amount <= 0 {
		util.CurrencyConversionsFailed.WithLabelValues("invalid_amount").Inc()
		return nil, apperr.Validation("amount must be positive")
	}

	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	rate, err := rs.rate(ctx, from, to)
	if err != nil {
		util.CurrencyConversionsFailed.WithLabelValues("rate_unavailable").Inc()
		return nil, err
	}

	util.CurrencyConversionsTotal.Inc()

	return &ConversionResult{
		From:            from,
		To:              to,
		OriginalAmount:  amount,
		ConvertedAmount: math.Round(amount*rate*100) / 100,
		Rate:            rate,
		Timestamp:       rs.now(),
	}, nil
}

func (rs *RatesService) rate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}

	if rs.cache != nil {
		cached, found, err := rs.cache.GetRate(ctx, from, to)
		if err != nil {
			rs.logger.Warn("Rate cache read failed", zap.Error(err))
		}
		if err == nil && found {
			return cached, nil
		}
	}

	var rate float64
	err := util.Retry(ctx, rs.retry, func(ctx context.Context) error {
		var ferr error
		rate, ferr = rs.fetchRate(ctx, from, to)
		return ferr
	})
	if err != nil {
		return 0, apperr.UpstreamFetch(fmt.Sprintf("exchange rate %s->%s unavailable", from, to), err)
	}

	if rs.cache != nil {
		if err := rs.cache.SetRate(ctx, from, to, rate, rs.cacheTTL); err != nil {
			rs.logger.Warn("Rate cache write failed", zap.Error(err))
		}
	}

	return rate, nil
}

func (rs *RatesService) fetchRate(ctx context.Context, from, to string) (float64, error) {
	u := fmt.Sprintf("%s/latest?base=%s&symbols=%s", rs.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	res, err := rs.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return 0, fmt.Errorf("rate API returned status %d", res.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode rate response: %w", err)
	}

	rate, ok := payload.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no usable rate for %s in response", to)
	}
	return rate, nil
}
