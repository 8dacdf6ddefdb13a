// Package httpapi is the World's HTTP client: baseURL, default headers,
// timeout, and retry policy (spec.md §4.2). Grounded on the request-building
// and retry/backoff logic of http/client.go and executor/http_executor.go.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"venomqa.dev/venomqa/respview"
)

// RetryPolicy controls how Client retries failed requests. A request is only
// retried on transport errors or 5xx responses, never on 4xx — matching the
// teacher's "don't retry on client errors" rule in http/client.go.
type RetryPolicy struct {
	MaxAttempts int // total attempts including the first; 1 disables retries
	Backoff     time.Duration
	BackoffMult float64 // multiplier applied after each retry
}

// DefaultRetryPolicy retries twice with exponential backoff starting at
// 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond, BackoffMult: 2.0}
}

// AuthProvider optionally signs outbound requests, e.g. attaching a bearer
// token minted by BearerAuth (auth.go). Nil means no auth header is added.
type AuthProvider interface {
	Authorize(req *http.Request) error
}

// Config configures a Client.
type Config struct {
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        time.Duration
	Retry          RetryPolicy
	Auth           AuthProvider
	Transport      http.RoundTripper // nil uses http.DefaultTransport
}

// Client is the World's HTTP API client.
type Client struct {
	cfg    Config
	client *http.Client
}

// New constructs a Client from cfg, filling in defaults.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
	}
}

// Do executes method against path (resolved against BaseURL) with an
// optional JSON body, applying default headers, auth, and retry policy. It
// returns a *respview.ResponseView on any completed HTTP round trip
// (including non-2xx responses) and an error only for transport-level
// failures (spec.md §4.8: "HTTP transport error inside an action → violation
// of implicit transport invariant").
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (*respview.ResponseView, error) {
	url := c.resolveURL(path)

	var lastErr error
	attempts := c.cfg.Retry.MaxAttempts
	backoff := c.cfg.Retry.Backoff

	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		view, status, transportErr := c.execute(ctx, method, url, headers, body, start)
		if transportErr == nil {
			if status >= 500 && status < 600 && attempt < attempts-1 {
				lastErr = fmt.Errorf("server error %d", status)
				sleep(ctx, backoff)
				backoff = time.Duration(float64(backoff) * c.cfg.Retry.BackoffMult)
				continue
			}
			return view, nil
		}
		lastErr = transportErr
		if attempt < attempts-1 {
			sleep(ctx, backoff)
			backoff = time.Duration(float64(backoff) * c.cfg.Retry.BackoffMult)
			continue
		}
	}
	return nil, fmt.Errorf("httpapi: request failed after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// execute performs exactly one HTTP round trip.
func (c *Client) execute(ctx context.Context, method, url string, headers map[string]string, body []byte, start time.Time) (*respview.ResponseView, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("httpapi: building request: %w", err)
	}

	for k, v := range c.cfg.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Auth != nil {
		if err := c.cfg.Auth.Authorize(req); err != nil {
			return nil, 0, fmt.Errorf("httpapi: authorizing request: %w", err)
		}
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpapi: %s %s: %w", method, url, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("httpapi: reading response body: %w", err)
	}

	view := respview.New(httpResp.StatusCode, map[string][]string(httpResp.Header), respBody, time.Since(start), respview.RequestEcho{
		Method: method,
		URL:    url,
		Body:   body,
	})
	return view, httpResp.StatusCode, nil
}

func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return base + "/" + strings.TrimLeft(path, "/")
}
