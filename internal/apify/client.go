// Package apify talks to the scraping provider's actor API. Two actors are
// used: a per-country trending-sounds tracker and a sound search actor that
// returns playable preview metadata.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrClosed is returned by calls made after Close
var ErrClosed = errors.New("apify client closed")

// DefaultTimeout outlasts the actor API's 300s synchronous run window
const DefaultTimeout = 330 * time.Second

// StatusError is a non-2xx response from the actor API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apify API error: %d, body: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt. A 408 means
// the synchronous wait expired while the run kept going, so it is final.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds client settings
type Config struct {
	BaseURL           string
	Token             string
	TrendingActor     string
	PreviewActor      string
	Timeout           time.Duration
	RequestsPerSecond int
	MaxRetries        int
}

// Client runs actors synchronously and decodes their dataset items
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	trendingActor string
	previewActor  string
	limiter       *RateLimiter
	maxRetries    int
	backoff       time.Duration
}

// NewClient creates a new actor API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.apify.com/v2"
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		token:         cfg.Token,
		trendingActor: cfg.TrendingActor,
		previewActor:  cfg.PreviewActor,
		limiter:       NewRateLimiter(cfg.RequestsPerSecond),
		maxRetries:    cfg.MaxRetries,
		backoff:       500 * time.Millisecond,
	}
}

// Close releases the rate limiter
func (c *Client) Close() {
	c.limiter.Close()
}

// RunActor starts an actor with the given input, waits for it to finish and
// decodes up to limit dataset items into out (a pointer to a slice).
func (c *Client) RunActor(ctx context.Context, actorID string, input interface{}, limit int, out interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to encode actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items", c.baseURL, url.PathEscape(strings.ReplaceAll(actorID, "/", "~")))
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		payload, err := c.post(ctx, endpoint, body)
		if err == nil {
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("failed to decode dataset items: %w", err)
			}
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return err
		}

		if attempt < c.maxRetries {
			delay := c.backoff * time.Duration(1<<attempt)
			log.Printf("[WARN] actor %s attempt %d failed, retrying in %v: %v", actorID, attempt+1, delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(payload)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	return payload, nil
}

// isRetryableError determines if an error should be retried
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	// A timed-out run may still be running on the provider side
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "connection reset") ||
		strings.Contains(err.Error(), "connection refused")
}
