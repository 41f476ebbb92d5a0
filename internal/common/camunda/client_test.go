package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"species-checker/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{errors.New("rpc error: code = Unavailable desc = connection refused"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("rpc error: code = NotFound desc = job not found"), false},
		{errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableZeebeError(tt.err))
		})
	}
}

func newRetryClient(maxRetries int) *Client {
	return &Client{
		config: &ClientConfig{RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		}},
		logger: logger.NewNoOpLogger(),
	}
}

func TestExecuteWithRetry(t *testing.T) {
	c := newRetryClient(3)

	calls := 0
	err := c.ExecuteWithRetry(context.Background(), "connect", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = c.ExecuteWithRetry(context.Background(), "connect", func(context.Context) error {
		calls++
		return errors.New("permission denied")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = c.ExecuteWithRetry(context.Background(), "connect", func(context.Context) error {
		calls++
		return errors.New("unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestExecuteWithRetry_Cancelled(t *testing.T) {
	c := newRetryClient(3)
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ExecuteWithRetry(ctx, "connect", func(context.Context) error {
		return errors.New("timeout")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
