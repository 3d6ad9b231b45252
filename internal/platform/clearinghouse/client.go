// Package clearinghouse talks to the electronic claim clearinghouse. It wraps
// the HTTP transport with retry-aware error classification so callers can
// distinguish failures worth retrying (network faults, 5xx, 429) from
// permanent rejections.
package clearinghouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/hcbs/hcbs/internal/platform/apperr"
)

// Response is the clearinghouse acknowledgement for a single claim. The
// external claim id is the payer's own identifier and may lag the tracking id
// by one processing cycle, so it can be empty on acceptance.
type Response struct {
	TrackingID      string   `json:"tracking_id"`
	ExternalClaimID string   `json:"external_claim_id,omitempty"`
	Accepted        bool     `json:"accepted"`
	Messages        []string `json:"messages,omitempty"`
}

// BatchResponse is the acknowledgement for a batch submission.
type BatchResponse struct {
	BatchID   string     `json:"batch_id"`
	Responses []Response `json:"responses"`
}

// Client is the outbound interface to the clearinghouse.
type Client interface {
	SubmitClaim(ctx context.Context, payerID string, payload []byte, format string) (*Response, error)
	SubmitBatch(ctx context.Context, payerID string, payloads [][]byte, format string) (*BatchResponse, error)
}

// HTTPClient implements Client against a clearinghouse HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	logger  zerolog.Logger
}

// Config configures the clearinghouse HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

// NewHTTPClient builds a clearinghouse client with transport-level retries.
// Only failures classified as retryable (connection errors, 5xx, 429) are
// retried; other 4xx responses surface immediately.
func NewHTTPClient(cfg Config, logger zerolog.Logger) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return retryableStatus(resp.StatusCode), nil
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    rc,
		logger:  logger.With().Str("component", "clearinghouse").Logger(),
	}
}

// retryableStatus reports whether an HTTP status indicates a transient
// condition.
func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}

func (c *HTTPClient) SubmitClaim(ctx context.Context, payerID string, payload []byte, format string) (*Response, error) {
	var resp Response
	if err := c.post(ctx, "/claims", payerID, format, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) SubmitBatch(ctx context.Context, payerID string, payloads [][]byte, format string) (*BatchResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"payer_id": payerID,
		"format":   format,
		"claims":   encodePayloads(payloads),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch body: %w", err)
	}

	var resp BatchResponse
	if err := c.post(ctx, "/claims/batch", payerID, format, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func encodePayloads(payloads [][]byte) []string {
	out := make([]string, len(payloads))
	for i, p := range payloads {
		out[i] = string(p)
	}
	return out
}

func (c *HTTPClient) post(ctx context.Context, path, payerID, format string, body []byte, out interface{}) error {
	op := "clearinghouse " + path

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Payer-ID", payerID)
	req.Header.Set("X-Claim-Format", format)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Exhausted retries on a transient failure, or the connection never
		// came up. Either way the caller may try again later.
		c.logger.Error().Err(err).Str("path", path).Dur("elapsed", time.Since(start)).Msg("submission transport failure")
		return &apperr.IntegrationError{Op: op, Retryable: true, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	c.logger.Info().
		Str("path", path).
		Str("payer_id", payerID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("clearinghouse response")

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &apperr.IntegrationError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.IntegrationError{Op: op, StatusCode: resp.StatusCode, Retryable: false, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
