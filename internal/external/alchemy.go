package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeru/price-oracle/internal/httputil"
)

const defaultAlchemyPricesURL = "https://api.g.alchemy.com/prices/v1"

// alchemyNetwork maps our network names to Alchemy's identifiers.
func alchemyNetwork(network string) string {
	switch network {
	case "polygon":
		return "polygon-mainnet"
	default:
		return "eth-mainnet"
	}
}

// AlchemyClient talks to the Alchemy Prices API. It exposes the historical
// endpoint (primary source for daily buckets) and the by-address current
// price endpoint (proxy for very recent days).
type AlchemyClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewAlchemyClient(apiKey string) *AlchemyClient {
	return &AlchemyClient{
		apiKey:     apiKey,
		baseURL:    defaultAlchemyPricesURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

// SetBaseURL points the client at a different API host. Tests use this to
// target a local server.
func (c *AlchemyClient) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// HistoricalPrice requests samples in a one-hour window starting at the
// target instant and returns the first sample's value. found is false when
// the provider has no data for that window.
func (c *AlchemyClient) HistoricalPrice(ctx context.Context, token, network string, ts int64) (float64, bool, error) {
	start := time.Unix(ts, 0).UTC()
	body := map[string]any{
		"network":   alchemyNetwork(network),
		"address":   token,
		"startTime": start.Format(time.RFC3339),
		"endTime":   start.Add(1 * time.Hour).Format(time.RFC3339),
		"interval":  "5m",
	}

	var out struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/tokens/historical", body, &out); err != nil {
		return 0, false, err
	}

	if len(out.Data) == 0 || out.Data[0].Value == "" {
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(out.Data[0].Value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse historical value %q: %w", out.Data[0].Value, err)
	}
	return price, true, nil
}

// CurrentPrice returns the token's current USD price.
func (c *AlchemyClient) CurrentPrice(ctx context.Context, token, network string) (float64, bool, error) {
	body := map[string]any{
		"addresses": []map[string]string{{
			"address": token,
			"network": alchemyNetwork(network),
		}},
	}

	var out struct {
		Data []struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
			Prices []struct {
				Currency string `json:"currency"`
				Value    string `json:"value"`
			} `json:"prices"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/tokens/by-address", body, &out); err != nil {
		return 0, false, err
	}

	if len(out.Data) == 0 || out.Data[0].Error != nil {
		return 0, false, nil
	}
	for _, p := range out.Data[0].Prices {
		if strings.EqualFold(p.Currency, "usd") {
			price, err := strconv.ParseFloat(p.Value, 64)
			if err != nil {
				return 0, false, fmt.Errorf("parse current value %q: %w", p.Value, err)
			}
			return price, true, nil
		}
	}
	return 0, false, nil
}

func (c *AlchemyClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s%s", c.baseURL, c.apiKey, path)
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("alchemy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("alchemy: %w", ErrQuotaExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alchemy returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
