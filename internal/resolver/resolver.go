// Package resolver answers point-in-time price queries through a tiered
// lookup: hot cache, exact persisted day, interpolation between bracketing
// days, and finally a live provider fetch. Each tier that produces a value
// back-fills the cache so repeat queries stay cheap.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeru/price-oracle/internal/interpolate"
	"github.com/zeru/price-oracle/internal/models"
	"github.com/zeru/price-oracle/internal/timeutil"
)

// ErrNotFound means no tier could produce a price: nothing cached, nothing
// persisted, no bracketing pair, and the provider chain came back empty.
var ErrNotFound = errors.New("price not found")

// DefaultCacheTTL bounds how long a resolved price is served from cache.
const DefaultCacheTTL = 5 * time.Minute

type Store interface {
	Upsert(ctx context.Context, p models.PricePoint) error
	GetAt(ctx context.Context, token, network string, date int64) (*models.PricePoint, error)
	NearestBefore(ctx context.Context, token, network string, ts int64) (*models.PricePoint, error)
	NearestAfter(ctx context.Context, token, network string, ts int64) (*models.PricePoint, error)
}

type Cache interface {
	Get(ctx context.Context, token, network string, ts int64) (float64, bool, error)
	Set(ctx context.Context, token, network string, ts int64, price float64, ttl time.Duration) error
}

type Fetcher interface {
	DailyPrice(ctx context.Context, token, network string, day int64) (float64, bool, error)
}

type Resolver struct {
	store   Store
	cache   Cache
	fetcher Fetcher
	ttl     time.Duration
}

func New(store Store, cache Cache, fetcher Fetcher, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{store: store, cache: cache, fetcher: fetcher, ttl: ttl}
}

// Resolve answers one query. It is stateless and safe for unlimited
// concurrent use; the worst concurrent outcome is a redundant fetch whose
// persist is an idempotent upsert.
func (r *Resolver) Resolve(ctx context.Context, q models.PriceQuery) (*models.PriceResult, error) {
	// 1. Hot cache on the exact query key. Cache errors degrade to a miss;
	// the cache is never load-bearing.
	if price, ok, err := r.cache.Get(ctx, q.Token, q.Network, q.Timestamp); err != nil {
		fmt.Printf("[RESOLVER] Cache read failed, continuing: %v\n", err)
	} else if ok {
		return &models.PriceResult{Price: price, Source: models.SourceCache}, nil
	}

	// 2. Exact persisted day bucket.
	bucket := timeutil.StartOfDayUTC(q.Timestamp)
	point, err := r.store.GetAt(ctx, q.Token, q.Network, bucket)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	if point != nil {
		r.fillCache(ctx, q, point.Price)
		return &models.PriceResult{Price: point.Price, Source: models.SourceExact}, nil
	}

	// 3. Interpolate between the nearest persisted points around the query.
	before, err := r.store.NearestBefore(ctx, q.Token, q.Network, q.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("nearest-before lookup: %w", err)
	}
	after, err := r.store.NearestAfter(ctx, q.Token, q.Network, q.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("nearest-after lookup: %w", err)
	}
	if before != nil && after != nil {
		price := interpolate.Linear(q.Timestamp, before.Date, before.Price, after.Date, after.Price)
		score := interpolate.Confidence(q.Timestamp, before.Date, after.Date, interpolate.DefaultMaxGapDays)
		fmt.Printf("[RESOLVER] Interpolated %s@%d from %d-day bracket (confidence %.2f)\n",
			q.Token, q.Timestamp, (after.Date-before.Date)/86400, score)
		r.fillCache(ctx, q, price)
		return &models.PriceResult{Price: price, Source: models.SourceInterpolated}, nil
	}

	// 4. Live fetch for the day bucket. Quota exhaustion propagates; a clean
	// miss is a not-found, never a fabricated value.
	price, found, err := r.fetcher.DailyPrice(ctx, q.Token, q.Network, bucket)
	if err != nil {
		return nil, fmt.Errorf("external fetch: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}

	if err := r.store.Upsert(ctx, models.PricePoint{
		Token:   q.Token,
		Network: q.Network,
		Date:    bucket,
		Price:   price,
	}); err != nil {
		return nil, fmt.Errorf("persist fetched price: %w", err)
	}
	r.fillCache(ctx, q, price)
	return &models.PriceResult{Price: price, Source: models.SourceExternal}, nil
}

func (r *Resolver) fillCache(ctx context.Context, q models.PriceQuery, price float64) {
	if err := r.cache.Set(ctx, q.Token, q.Network, q.Timestamp, price, r.ttl); err != nil {
		fmt.Printf("[RESOLVER] Cache write failed: %v\n", err)
	}
}
