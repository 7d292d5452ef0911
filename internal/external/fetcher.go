package external

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// recentWindow bounds how far back a current-price read is still an
// acceptable proxy for a day's price.
const recentWindow = 7 * 86400

type resultKind int

const (
	kindOK resultKind = iota
	kindMiss
	kindQuota
	kindTransient
)

// attempt is the outcome of one provider call: a price, a clean miss, a
// quota signal, or a transient failure worth falling through.
type attempt struct {
	provider string
	kind     resultKind
	price    float64
	err      error
}

func classify(provider string, price float64, found bool, err error) attempt {
	switch {
	case err != nil && errors.Is(err, ErrQuotaExceeded):
		return attempt{provider: provider, kind: kindQuota, err: err}
	case err != nil:
		return attempt{provider: provider, kind: kindTransient, err: err}
	case !found:
		return attempt{provider: provider, kind: kindMiss}
	default:
		return attempt{provider: provider, kind: kindOK, price: price}
	}
}

// Fetcher resolves one (token, network, day) to a USD price by walking an
// ordered provider chain. A false found result is normal for illiquid or
// unlisted tokens; only quota exhaustion is surfaced as an error.
type Fetcher struct {
	alchemy *AlchemyClient
	gecko   *CoinGeckoClient
	now     func() time.Time
}

func NewFetcher(alchemy *AlchemyClient, gecko *CoinGeckoClient) *Fetcher {
	return &Fetcher{
		alchemy: alchemy,
		gecko:   gecko,
		now:     time.Now,
	}
}

// SetNow overrides the clock used for the recency window. Tests only.
func (f *Fetcher) SetNow(now func() time.Time) {
	f.now = now
}

// DailyPrice tries, in order: Alchemy historical, CoinGecko historical,
// CoinGecko current (CoinGecko's own last resort), and Alchemy current when
// the day is within the recency window. Transient provider failures fall
// through to the next attempt; quota exhaustion aborts the chain.
func (f *Fetcher) DailyPrice(ctx context.Context, token, network string, day int64) (float64, bool, error) {
	attempts := []func() attempt{
		func() attempt {
			price, found, err := f.alchemy.HistoricalPrice(ctx, token, network, day)
			return classify("alchemy-historical", price, found, err)
		},
		func() attempt {
			price, found, err := f.gecko.HistoricalPrice(ctx, token, day)
			return classify("coingecko-historical", price, found, err)
		},
		func() attempt {
			if !f.gecko.Supported(token) {
				return attempt{provider: "coingecko-current", kind: kindMiss}
			}
			price, found, err := f.gecko.CurrentPrice(ctx, token)
			return classify("coingecko-current", price, found, err)
		},
		func() attempt {
			if f.now().Unix()-day > recentWindow {
				return attempt{provider: "alchemy-current", kind: kindMiss}
			}
			price, found, err := f.alchemy.CurrentPrice(ctx, token, network)
			return classify("alchemy-current", price, found, err)
		},
	}

	for _, try := range attempts {
		a := try()
		switch a.kind {
		case kindOK:
			fmt.Printf("[FETCH] %s: $%f for %s on %s\n", a.provider, a.price, token, network)
			return a.price, true, nil
		case kindQuota:
			fmt.Printf("[FETCH] %s: quota exhausted\n", a.provider)
			return 0, false, fmt.Errorf("%s: %w", a.provider, ErrQuotaExceeded)
		case kindTransient:
			fmt.Printf("[FETCH] %s failed, trying next provider: %v\n", a.provider, a.err)
		case kindMiss:
			// Normal; next provider.
		}
	}

	return 0, false, nil
}
