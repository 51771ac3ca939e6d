// Package venue implements the REST client for the upstream exchange order
// gateway. It handles order submission, cancellation, and queries.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rioporto/orderdesk/internal/domain"
)

// ClientConfig holds the venue gateway connection parameters.
type ClientConfig struct {
	// BaseURL is the gateway API root, e.g. "https://api.exchange.example".
	BaseURL string

	// APIKey authenticates requests via the X-API-Key header.
	APIKey string

	// Timeout bounds each HTTP request. Zero means 30 seconds.
	Timeout time.Duration
}

// Client is the REST client for the venue order gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a venue gateway client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ domain.OrderGateway = (*Client)(nil)

// apiOrderResult is the gateway's order acknowledgement payload.
type apiOrderResult struct {
	Accepted      bool   `json:"accepted"`
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Message       string `json:"message"`
	SubmittedAt   string `json:"submittedAt"`
}

// PostOrder submits an order payload to the gateway and returns the result.
// A gateway-side rejection is reported as domain.ErrVenueRejected with the
// gateway's message attached.
func (c *Client) PostOrder(ctx context.Context, payload domain.OrderPayload) (domain.SubmitResult, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/v1/orders", payload)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("venue: post order: %w", err)
	}

	var apiResult apiOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("venue: decode order result: %w", err)
	}

	result := domain.SubmitResult{
		Accepted:      apiResult.Accepted,
		VenueOrderID:  apiResult.OrderID,
		ClientOrderID: apiResult.ClientOrderID,
		Message:       apiResult.Message,
	}
	if apiResult.SubmittedAt != "" {
		if ts, err := time.Parse(time.RFC3339, apiResult.SubmittedAt); err == nil {
			result.SubmittedAt = ts
		}
	}
	if result.ClientOrderID == "" {
		result.ClientOrderID = payload.ClientOrderID
	}

	if !result.Accepted {
		return result, fmt.Errorf("venue: %w: %s", domain.ErrVenueRejected, result.Message)
	}
	return result, nil
}

// CancelOrder cancels a single order by its venue-assigned ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	respBody, err := c.doRequest(ctx, http.MethodDelete, "/v1/orders/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("venue: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Accepted bool   `json:"accepted"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("venue: decode cancel response: %w", err)
	}
	if !result.Accepted {
		return fmt.Errorf("venue: cancel order %s: %w: %s", orderID, domain.ErrVenueRejected, result.Message)
	}
	return nil
}

// doRequest builds, authenticates, sends, and reads an HTTP request against
// the gateway. It returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrVenueRejected, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
