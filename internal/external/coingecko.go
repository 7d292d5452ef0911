package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zeru/price-oracle/internal/httputil"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// coinIDs maps well-known token contract addresses to CoinGecko coin ids.
// Tokens outside this map cannot be served by CoinGecko and short-circuit
// to the next provider in the chain.
var coinIDs = map[string]string{
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": "usd-coin",        // USDC
	"0xdac17f958d2ee523a2206206994597c13d831ec7": "tether",          // USDT
	"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984": "uniswap",         // UNI
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": "wrapped-bitcoin", // WBTC
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "weth",            // WETH (Ethereum)
	"0x7ceb23fd6bc0add59e62ac25578270cff1b9f619": "weth",            // WETH (Polygon)
}

// CoinGeckoClient is the secondary price provider. It only knows coins by
// CoinGecko id, so lookups go through the address mapping above.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewCoinGeckoClient() *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    defaultCoinGeckoURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

func (c *CoinGeckoClient) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// Supported reports whether the token address has a CoinGecko mapping.
func (c *CoinGeckoClient) Supported(token string) bool {
	_, ok := coinIDs[strings.ToLower(token)]
	return ok
}

// HistoricalPrice reads the coin's USD price for the given day via the
// by-date history endpoint.
func (c *CoinGeckoClient) HistoricalPrice(ctx context.Context, token string, ts int64) (float64, bool, error) {
	id, ok := coinIDs[strings.ToLower(token)]
	if !ok {
		return 0, false, nil
	}

	date := time.Unix(ts, 0).UTC().Format("02-01-2006")
	url := fmt.Sprintf("%s/coins/%s/history?date=%s", c.baseURL, id, date)

	var out struct {
		MarketData struct {
			CurrentPrice map[string]float64 `json:"current_price"`
		} `json:"market_data"`
	}
	if err := c.get(ctx, url, &out); err != nil {
		return 0, false, err
	}

	price, ok := out.MarketData.CurrentPrice["usd"]
	if !ok || price <= 0 {
		return 0, false, nil
	}
	return price, true, nil
}

// CurrentPrice reads the coin's current USD price.
func (c *CoinGeckoClient) CurrentPrice(ctx context.Context, token string) (float64, bool, error) {
	id, ok := coinIDs[strings.ToLower(token)]
	if !ok {
		return 0, false, nil
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, id)

	out := map[string]map[string]float64{}
	if err := c.get(ctx, url, &out); err != nil {
		return 0, false, err
	}

	price, ok := out[id]["usd"]
	if !ok || price <= 0 {
		return 0, false, nil
	}
	return price, true, nil
}

func (c *CoinGeckoClient) get(ctx context.Context, url string, out any) error {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("coingecko: %w", ErrQuotaExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
