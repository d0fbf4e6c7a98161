package deals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"booking-payments/internal/models"
	"booking-payments/internal/util"

	"go.uber.org/zap"
)

// Result is what callers receive from a cache read
type Result struct {
	Deals     []models.MinPriceDeal `json:"deals"`
	FetchedAt time.Time             `json:"fetchedAt"`
	FromCache bool                  `json:"fromCache"`
	Warning   string                `json:"error,omitempty"`
}

// SharedTier is the cross-process cache tier (Redis). May be nil, in
// which case only the in-memory tier is used.
type SharedTier interface {
	GetDealEntry(ctx context.Context, limit int, dest interface{}) (bool, error)
	SetDealEntry(ctx context.Context, limit int, value interface{}, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

type entry struct {
	Deals     []models.MinPriceDeal `json:"deals"`
	Warning   string                `json:"warning,omitempty"`
	FetchedAt time.Time             `json:"fetchedAt"`
}

type inflightCall struct {
	done chan struct{}
	res  Result
	err  error
}

// Cache serves deal listings with stale-while-revalidate semantics:
// fresh entries are returned immediately, stale or missing entries
// trigger an upstream fetch, and concurrent refreshes for the same key
// collapse to a single in-flight fetch.
type Cache struct {
	fetcher   Fetcher
	shared    SharedTier
	ttl       time.Duration
	sharedTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	entries  map[int]*entry
	inflight map[int]*inflightCall
}

// NewCache creates a deal cache. ttl governs the in-memory tier and
// must not exceed sharedTTL.
func NewCache(fetcher Fetcher, shared SharedTier, ttl, sharedTTL time.Duration) *Cache {
	return &Cache{
		fetcher:   fetcher,
		shared:    shared,
		ttl:       ttl,
		sharedTTL: sharedTTL,
		logger:    util.Named("deals.cache"),
		now:       time.Now,
		entries:   make(map[int]*entry),
		inflight:  make(map[int]*inflightCall),
	}
}

// Get returns the deal list for a limit key. forceRefresh bypasses
// freshness and always fetches upstream.
func (c *Cache) Get(ctx context.Context, limit int, forceRefresh bool) (Result, error) {
	c.mu.Lock()

	if !forceRefresh {
		if e, ok := c.entries[limit]; ok && c.fresh(e) {
			res := c.resultFrom(e, true)
			c.mu.Unlock()
			util.DealCacheHits.WithLabelValues("memory").Inc()
			return res, nil
		}
	}

	// Join an in-flight refresh instead of issuing a second fetch.
	if call, ok := c.inflight[limit]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.res, call.err
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	c.inflight[limit] = call
	c.mu.Unlock()

	res, err := c.refresh(ctx, limit, forceRefresh)

	c.mu.Lock()
	call.res, call.err = res, err
	delete(c.inflight, limit)
	c.mu.Unlock()
	close(call.done)

	return res, err
}

// refresh consults the shared tier and then the upstream source. On
// upstream failure a stale entry, if any, keeps being served.
func (c *Cache) refresh(ctx context.Context, limit int, forceRefresh bool) (Result, error) {
	if !forceRefresh && c.shared != nil {
		var shared entry
		found, err := c.shared.GetDealEntry(ctx, limit, &shared)
		if err != nil {
			c.logger.Warn("Shared cache tier read failed", zap.Error(err))
		}
		if err == nil && found && c.fresh(&shared) {
			c.store(limit, &shared)
			util.DealCacheHits.WithLabelValues("redis").Inc()
			return c.resultFrom(&shared, true), nil
		}
	}

	util.DealCacheMisses.Inc()

	lockKey := fmt.Sprintf("deals:refresh:%d", limit)
	locked := false
	if c.shared != nil {
		ok, err := c.shared.AcquireLock(ctx, lockKey, 30*time.Second)
		if err != nil {
			c.logger.Warn("Refresh lock acquisition failed", zap.Error(err))
		}
		locked = err == nil && ok
		if err == nil && !ok && !forceRefresh {
			// Another process is refreshing; its result may already be
			// in the shared tier.
			var shared entry
			if found, rerr := c.shared.GetDealEntry(ctx, limit, &shared); rerr == nil && found {
				c.store(limit, &shared)
				util.DealCacheHits.WithLabelValues("redis").Inc()
				return c.resultFrom(&shared, true), nil
			}
		}
	}
	if locked {
		defer func() {
			if err := c.shared.ReleaseLock(ctx, lockKey); err != nil {
				c.logger.Warn("Failed to release refresh lock", zap.Error(err))
			}
		}()
	}

	fetched, warning, err := c.fetcher.FetchMinPriceDeals(ctx, limit)
	if err != nil {
		c.mu.Lock()
		stale, ok := c.entries[limit]
		var res Result
		if ok {
			res = c.resultFrom(stale, true)
		}
		c.mu.Unlock()

		if ok {
			util.DealStaleServes.Inc()
			c.logger.Warn("Upstream fetch failed, serving stale entry",
				zap.Int("limit", limit),
				zap.Time("fetched_at", res.FetchedAt),
				zap.Error(err))
			return res, nil
		}
		return Result{}, err
	}

	e := &entry{Deals: fetched, Warning: warning, FetchedAt: c.now()}
	c.store(limit, e)

	if c.shared != nil {
		if serr := c.shared.SetDealEntry(ctx, limit, e, c.sharedTTL); serr != nil {
			c.logger.Warn("Failed to write shared cache tier", zap.Error(serr))
		}
	}

	return c.resultFrom(e, false), nil
}

func (c *Cache) store(limit int, e *entry) {
	c.mu.Lock()
	c.entries[limit] = e
	c.mu.Unlock()
}

func (c *Cache) fresh(e *entry) bool {
	return c.now().Sub(e.FetchedAt) < c.ttl
}

func (c *Cache) resultFrom(e *entry, fromCache bool) Result {
	deals := make([]models.MinPriceDeal, len(e.Deals))
	copy(deals, e.Deals)
	return Result{
		Deals:     deals,
		FetchedAt: e.FetchedAt,
		FromCache: fromCache,
		Warning:   e.Warning,
	}
}
