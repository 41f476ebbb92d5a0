// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "species-checker/internal/common/errors"
)

const maxBodyBytes = 64 << 20

// Logger is the subset of logger.Logger the client needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     Logger
}

type Option func(*Client)

// WithRetry retries transient failures up to maxRetries times, sleeping
// backoff before the first retry and doubling it after each one.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostForm sends a form-encoded POST and returns the response body of a 2xx reply.
// Failures are *errors.StandardError values with code TRANSPORT_ERROR or RECONCILE_TIMEOUT.
func (c *Client) PostForm(ctx context.Context, operation, endpoint string, form url.Values) ([]byte, error) {
	delay := c.backoff
	encoded := form.Encode()

	var lastErr *apperrors.StandardError
	for attempt := 0; ; attempt++ {
		body, err := c.postOnce(ctx, operation, endpoint, encoded)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !err.Retryable || attempt >= c.maxRetries || ctx.Err() != nil {
			break
		}

		if c.logger != nil {
			c.logger.Warn(fmt.Sprintf("%s request failed, retrying...", operation), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     attempt + 1,
				"maxRetries":  c.maxRetries,
				"nextRetryIn": delay.String(),
			})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperrors.NewTransportError(operation, 0, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, lastErr
}

func (c *Client) postOnce(ctx context.Context, operation, endpoint, encoded string) ([]byte, *apperrors.StandardError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
	if err != nil {
		return nil, apperrors.NewTransportError(operation, 0, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewReconcileTimeoutError(operation, err)
		}
		return nil, apperrors.NewTransportError(operation, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, apperrors.NewTransportError(operation, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewReconcileTimeoutError(operation, err)
		}
		return nil, apperrors.NewTransportError(operation, resp.StatusCode, err)
	}
	return body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
