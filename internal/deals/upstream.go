package deals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"booking-payments/internal/apperr"
	"booking-payments/internal/models"
	"booking-payments/internal/util"

	"go.uber.org/zap"
)

// Fetcher retrieves best-price deals from the upstream deal source.
// The returned warning is non-empty when the upstream reported a
// partial failure but still produced usable data.
type Fetcher interface {
	FetchMinPriceDeals(ctx context.Context, limit int) (deals []models.MinPriceDeal, warning string, err error)
}

type upstreamResponse struct {
	Deals []models.MinPriceDeal `json:"deals"`
	Error string                `json:"error,omitempty"`
}

// HTTPFetcher fetches deals over HTTP with bounded retries
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
	retry   util.RetryPolicy
	logger  *zap.Logger
}

// NewHTTPFetcher creates an upstream deal fetcher
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retry:   util.ReadRetryPolicy(),
		logger:  util.Named("deals.upstream"),
	}
}

// FetchMinPriceDeals performs the upstream fetch. An upstream error
// flag with an empty list is a hard failure; with a non-empty list the
// data is returned best-effort.
func (f *HTTPFetcher) FetchMinPriceDeals(ctx context.Context, limit int) ([]models.MinPriceDeal, string, error) {
	start := time.Now()
	defer func() {
		util.DealFetchLatency.Observe(time.Since(start).Seconds())
	}()

	var resp upstreamResponse
	err := util.Retry(ctx, f.retry, func(ctx context.Context) error {
		return f.fetchOnce(ctx, limit, &resp)
	})
	if err != nil {
		util.DealRefreshFailures.Inc()
		return nil, "", apperr.UpstreamFetch("deal source unavailable", err)
	}

	if resp.Error != "" && len(resp.Deals) == 0 {
		util.DealRefreshFailures.Inc()
		return nil, "", apperr.UpstreamFetch(fmt.Sprintf("deal source failed: %s", resp.Error), nil)
	}

	if resp.Error != "" {
		f.logger.Warn("Deal source degraded, serving partial data",
			zap.String("upstream_error", resp.Error),
			zap.Int("deals", len(resp.Deals)))
		return resp.Deals, resp.Error, nil
	}

	return resp.Deals, "", nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, limit int, out *upstreamResponse) error {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	res, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("deal source returned status %d", res.StatusCode)
	}

	*out = upstreamResponse{}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode deal response: %w", err)
	}
	return nil
}
