package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	apperrors "species-checker/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostForm_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, `{"0":{"query":"Canis lupus","limit":1}}`, r.PostForm.Get("queries"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(time.Second)
	body, err := client.PostForm(context.Background(), "match", server.URL,
		url.Values{"queries": {`{"0":{"query":"Canis lupus","limit":1}}`}})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_PostForm_Retry(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failures   int32
		status     int
		wantErr    bool
		wantCalls  int32
	}{
		{name: "no retries by default", maxRetries: 0, failures: 1, status: http.StatusServiceUnavailable, wantErr: true, wantCalls: 1},
		{name: "one retry recovers from 503", maxRetries: 1, failures: 1, status: http.StatusServiceUnavailable, wantErr: false, wantCalls: 2},
		{name: "retries exhausted", maxRetries: 2, failures: 5, status: http.StatusBadGateway, wantErr: true, wantCalls: 3},
		{name: "4xx is not retried", maxRetries: 3, failures: 5, status: http.StatusBadRequest, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if n <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = io.WriteString(w, `{}`)
			}))
			defer server.Close()

			client := NewClient(time.Second, WithRetry(tt.maxRetries, time.Millisecond))
			_, err := client.PostForm(context.Background(), "extend", server.URL, url.Values{})

			if tt.wantErr {
				require.Error(t, err)
				stdErr, ok := apperrors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, apperrors.ErrCodeTransport, stdErr.Code)
				assert.Contains(t, stdErr.Details, "status")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestClient_PostForm_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(50 * time.Millisecond)
	_, err := client.PostForm(context.Background(), "match", server.URL, url.Values{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeReconcileTimeout, apperrors.CodeOf(err))
}

func TestClient_PostForm_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(time.Second, WithRetry(5, time.Hour))
	_, err := client.PostForm(ctx, "match", server.URL, url.Values{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
