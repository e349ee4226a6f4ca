// Package aggregator is the HTTP client for the swap route aggregator.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"intent-orchestrator/internal/common/config"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
)

// Route is one executable leg returned by the aggregator: a target contract,
// the encoded calldata, and the native value to attach.
type Route struct {
	Target   string `json:"target"`
	CallData string `json:"callData"`
	Value    string `json:"value"`
}

// QuoteRequest asks for the best route between two tokens.
type QuoteRequest struct {
	TokenIn     string  `json:"tokenIn"`
	TokenOut    string  `json:"tokenOut"`
	AmountWei   string  `json:"amountWei"`
	SlippagePct float64 `json:"slippagePct"`
}

// QuoteResponse carries the routes plus the quoted output amount.
type QuoteResponse struct {
	UniversalRoutes []Route `json:"universalRoutes"`
	AmountOut       string  `json:"amountOut"`
}

// Client calls the aggregator quote endpoint with bounded retries.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
	log        logger.Logger
}

func New(cfg config.AggregatorConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Quote fetches the best route for the requested pair. Transient failures
// are retried with exponential backoff until the attempt budget or the
// context runs out.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, ierr.NewQuoteFailedError(fmt.Errorf("encode quote request: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			c.log.Warn("retrying quote request", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
			})
			select {
			case <-ctx.Done():
				return nil, ierr.NewQuoteTimeoutError()
			case <-time.After(backoff):
			}
		}

		resp, err := c.post(ctx, payload)
		if err == nil {
			if len(resp.UniversalRoutes) == 0 {
				return nil, ierr.NewNoRouteError(req.TokenIn, req.TokenOut)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ierr.NewQuoteTimeoutError()
		}
		lastErr = err
	}
	return nil, ierr.NewQuoteFailedError(lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) (*QuoteResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quote", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("aggregator returned %d: %s", httpResp.StatusCode, string(body))
	}

	var resp QuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}
	return &resp, nil
}
