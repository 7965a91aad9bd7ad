package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"

	"chainswitch/internal/model"
)

// HTTPClient talks to a bridge relayer API over JSON.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a bridge client for the given relayer endpoint.
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

// Quote fetches the bridge fee and time estimate for one transfer.
func (c *HTTPClient) Quote(ctx context.Context, token common.Address, amount *big.Int, dest model.ChainID) (Quote, error) {
	payload := map[string]any{
		"token":             token.Hex(),
		"amount":            amount.String(),
		"destination_chain": uint64(dest),
	}
	var out Quote
	if err := c.post(ctx, "/v1/quote", payload, &out); err != nil {
		return Quote{}, err
	}
	return out, nil
}

// Transfer requests a value movement and returns the bridge reference id.
func (c *HTTPClient) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	payload := map[string]any{
		"depositor":         req.Depositor.Hex(),
		"recipient":         req.Recipient.Hex(),
		"token":             req.Token.Hex(),
		"amount":            req.Amount.String(),
		"destination_chain": uint64(req.DestinationChain),
		"message":           req.Message,
	}
	var out struct {
		ReferenceID string `json:"reference_id"`
	}
	if err := c.post(ctx, "/v1/transfers", payload, &out); err != nil {
		return "", err
	}
	if out.ReferenceID == "" {
		return "", fmt.Errorf("bridge returned empty reference id")
	}
	return out.ReferenceID, nil
}

// Status reports transfer progress by reference id.
func (c *HTTPClient) Status(ctx context.Context, ref string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transfers/"+ref, nil)
	if err != nil {
		return Status{}, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("bridge status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, decodeAPIError(resp)
	}

	var payload struct {
		Completed    bool   `json:"completed"`
		Failed       bool   `json:"failed"`
		FilledAmount string `json:"filled_amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}

	filled := new(big.Int)
	if payload.FilledAmount != "" {
		if _, ok := filled.SetString(payload.FilledAmount, 10); !ok {
			return Status{}, fmt.Errorf("invalid filled amount %q", payload.FilledAmount)
		}
	}
	return Status{Completed: payload.Completed, Failed: payload.Failed, FilledAmount: filled}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// decodeAPIError maps the relayer's error codes onto the typed errors the
// orchestrator branches on.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	switch payload.Code {
	case "unsupported_chain":
		return fmt.Errorf("%w: %s", model.ErrUnsupportedChain, payload.Message)
	case "amount_out_of_bounds":
		return fmt.Errorf("%w: %s", model.ErrAmountOutOfBounds, payload.Message)
	default:
		return fmt.Errorf("bridge error: status %d, body: %s", resp.StatusCode, string(body))
	}
}
