// Package pricefeed provides the USD price feed collaborator consumed by the
// oracle. Only the request/response contract matters here.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"chainswitch/internal/model"
)

// Client returns the current USD price for an asset identifier.
type Client interface {
	USDPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, error)
}

// HTTPClient queries a JSON price feed API with retry semantics.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a feed client for the given base URL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: retryClient.StandardClient(),
	}
}

// USDPrice fetches the latest USD price for assetID. A non-positive price or
// an unreachable feed maps to ErrPriceFeedUnavailable.
func (c *HTTPClient) USDPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, error) {
	url := fmt.Sprintf("%s/v1/prices/%s", c.baseURL, assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %v", model.ErrPriceFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: status %d, body: %s", model.ErrPriceFeedUnavailable, resp.StatusCode, string(body))
	}

	var payload struct {
		PriceUSD  decimal.Decimal `json:"price_usd"`
		UpdatedAt int64           `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("decode feed response: %w", err)
	}

	if payload.PriceUSD.Sign() <= 0 {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: non-positive price for %s", model.ErrPriceFeedUnavailable, assetID)
	}

	return payload.PriceUSD, time.Unix(payload.UpdatedAt, 0).UTC(), nil
}
