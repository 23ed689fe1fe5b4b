package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/algocheckout/checkout"
	"github.com/algocheckout/checkout/logger"
)

// ============================================================================
// HTTP Checkout Client
// ============================================================================

// CheckoutClient reads and creates checkout records on the checkout API
// Implements checkout.CheckoutSource
type CheckoutClient struct {
	url            string
	httpClient     *http.Client
	apiKey         string
	logger         logger.Logger
	retries        int
	retryBaseDelay time.Duration
}

var _ checkout.CheckoutSource = (*CheckoutClient)(nil)

// CheckoutConfig configures the HTTP checkout client
type CheckoutConfig struct {
	// URL is the base URL of the checkout API
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// APIKey is sent as a bearer token when set (optional)
	APIKey string

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration

	// Logger (optional)
	Logger logger.Logger
}

// DefaultCheckoutURL is the local development checkout API
const DefaultCheckoutURL = "http://localhost:8081"

// requestRetries is the number of attempts on 429 rate limit errors
const requestRetries = 3

// requestRetryBaseDelay is the base delay for exponential backoff on retries
const requestRetryBaseDelay = 1 * time.Second

// ErrCheckoutNotFound is returned when the API has no record for an id
var ErrCheckoutNotFound = errors.New("checkout not found")

// CreateCheckoutRequest is the body of POST /checkouts
type CreateCheckoutRequest struct {
	Method           checkout.SettlementMethod `json:"method,omitempty"`
	ProgramID        *uint64                   `json:"programId,omitempty"`
	MerchantAddress  string                    `json:"merchantAddress"`
	MerchantName     string                    `json:"merchantName,omitempty"`
	Amount           uint64                    `json:"amount"`
	AssetID          uint64                    `json:"assetId"`
	Note             string                    `json:"note,omitempty"`
	ExpiresInSeconds int64                     `json:"expiresInSeconds,omitempty"`
}

// UpdateStatusRequest is the body of POST /checkouts/{id}/status
type UpdateStatusRequest struct {
	Status checkout.Status `json:"status"`
	TxID   string          `json:"txId,omitempty"`
}

// NewCheckoutClient creates a new HTTP checkout client
func NewCheckoutClient(config *CheckoutConfig) *CheckoutClient {
	if config == nil {
		config = &CheckoutConfig{}
	}

	baseURL := strings.TrimRight(config.URL, "/")
	if baseURL == "" {
		baseURL = DefaultCheckoutURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &CheckoutClient{
		url:            baseURL,
		httpClient:     httpClient,
		apiKey:         config.APIKey,
		logger:         logger.OrNoop(config.Logger),
		retries:        requestRetries,
		retryBaseDelay: requestRetryBaseDelay,
	}
}

// URL returns the base URL
func (c *CheckoutClient) URL() string {
	return c.url
}

// GetCheckout fetches the authoritative record for id
func (c *CheckoutClient) GetCheckout(ctx context.Context, id string) (*checkout.Checkout, error) {
	if id == "" {
		return nil, fmt.Errorf("checkout id is required")
	}

	status, body, err := c.do(ctx, http.MethodGet, "/checkouts/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return decodeRecord(body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCheckoutNotFound, id)
	default:
		return nil, fmt.Errorf("checkout request failed (%d): %s", status, string(body))
	}
}

// CreateCheckout registers a new checkout
func (c *CheckoutClient) CreateCheckout(ctx context.Context, request CreateCheckoutRequest) (*checkout.Checkout, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/checkouts", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("create checkout failed (%d): %s", status, string(body))
	}
	return decodeRecord(body)
}

// UpdateStatus reports a lifecycle change for id, as the settlement watcher does
func (c *CheckoutClient) UpdateStatus(ctx context.Context, id string, request UpdateStatusRequest) (*checkout.Checkout, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/checkouts/"+url.PathEscape(id)+"/status", payload)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return decodeRecord(body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCheckoutNotFound, id)
	default:
		return nil, fmt.Errorf("status update failed (%d): %s", status, string(body))
	}
}

// do sends one request, retrying with exponential backoff on 429.
func (c *CheckoutClient) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var lastErr error

	for attempt := range c.retries {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("%s %s failed: %w", method, path, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp.StatusCode, body, nil
		}

		lastErr = fmt.Errorf("%s %s rate limited (%d): %s", method, path, resp.StatusCode, string(body))

		// Retry on 429 with exponential backoff, except on the last attempt
		if attempt < c.retries-1 {
			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			c.logger.Debug("checkout api rate limited, retrying", map[string]any{
				"path":    path,
				"attempt": attempt + 1,
				"delay":   delay.String(),
			})
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			}
		}
	}

	return 0, nil, lastErr
}

func decodeRecord(body []byte) (*checkout.Checkout, error) {
	if err := ValidateRecord(body); err != nil {
		return nil, err
	}

	var record checkout.Checkout
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode checkout record: %w", err)
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return &record, nil
}
