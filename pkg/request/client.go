package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"occtitles/pkg/backoff"
	"occtitles/pkg/tracker"
	"occtitles/pkg/version"
)

type ctxKey string

// CtxOperation labels a request for tracking (e.g. "runs.get").
const CtxOperation ctxKey = "operation"

// WithOperation returns a context that attributes requests to op.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, CtxOperation, op)
}

// ClientConfig holds transport settings.
type ClientConfig struct {
	Retries   int // extra attempts on network errors, 429 and 5xx
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// StatusError is returned for HTTP responses with status >= 400.
// Body keeps the raw response so callers can decode API error objects.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

// Client performs JSON-over-HTTP requests with bounded retries and tracking.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	retries    int
	policy     backoff.Policy
}

// New creates a new Client. t may be nil.
func New(t *tracker.Tracker, cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracker:    t,
		retries:    cfg.Retries,
		policy:     backoff.NewExponential(cfg.BaseDelay, cfg.MaxDelay),
	}
}

// Get performs a GET request with custom headers.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers)
}

// Post performs a POST request with custom headers.
func (c *Client) Post(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	op, _ := ctx.Value(CtxOperation).(string)
	if op == "" {
		op = parsedURL.Host
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	uaSet := false
	for k, v := range headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			uaSet = true
		}
	}
	if !uaSet {
		req.Header.Set("User-Agent", version.UserAgent)
	}

	respBody, err := c.executeWithBackoff(req, op)
	if err != nil {
		c.tracker.TrackAPIFailure(op)
		return nil, err
	}
	c.tracker.TrackAPISuccess(op)
	return respBody, nil
}

// executeWithBackoff attempts the request, retrying retryable failures up to c.retries times.
func (c *Client) executeWithBackoff(req *http.Request, op string) ([]byte, error) {
	maxAttempts := c.retries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		if attempt > 1 {
			if req.GetBody != nil {
				b, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind body: %w", err)
				}
				req.Body = b
			}
			c.tracker.TrackRetry(op)
		}

		slog.Debug("Network Request", "op", op, "method", req.Method, "path", req.URL.Path, "attempt", attempt)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			lastErr = fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
			if attempt < maxAttempts {
				slog.Warn("Request failed, retrying", "op", op, "attempt", attempt, "error", err)
				if werr := backoff.Wait(req.Context(), c.policy.Delay(attempt)); werr != nil {
					return nil, werr
				}
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read error: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: respBody}
			if attempt < maxAttempts {
				slog.Warn("API Backoff", "op", op, "status", resp.StatusCode, "attempt", attempt)
				if werr := backoff.Wait(req.Context(), c.policy.Delay(attempt)); werr != nil {
					return nil, werr
				}
			}
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
		}

		return respBody, nil
	}

	if lastErr == nil {
		lastErr = errors.New("max retries exceeded")
	}
	return nil, lastErr
}
