package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)

	c, err := NewClient("http://example.com/api")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/", c.BaseURL())
}

func TestPostJSONSendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/stat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Session"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"path":"/a&b"}`, string(body))
		w.Write([]byte(`{"result":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api", WithHeaders(http.Header{"X-Session": {"abc"}}))
	require.NoError(t, err)
	out, err := c.PostJSON(context.Background(), "/stat", map[string]string{"path": "/a&b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"result":true}`, string(out))
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `"payload"`, string(body), "body must be replayed on retry")
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	out, err := c.PostJSON(context.Background(), "x", "payload", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryDefinitiveErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":3}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	_, err = c.PostJSON(context.Background(), "stat", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "stat", httpErr.Path)
	assert.True(t, httpErr.IsJSON())
	assert.False(t, httpErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	_, err = c.PostJSON(context.Background(), "x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(fastRetry.MaxRetries+1), calls.Load())
}

func TestCancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.PostJSON(ctx, "x", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPErrorMessageIsTruncated(t *testing.T) {
	err := &HTTPError{Method: "POST", Path: "read_file", StatusCode: 500, Body: []byte(strings.Repeat("x", 1000))}
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "httpx: POST read_file: status 500: "))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Less(t, len(msg), 400)
}

func TestBackoffBounds(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 80*time.Millisecond, 0)
	assert.Equal(t, 10*time.Millisecond, b.ForAttempt(0))
	assert.Equal(t, 40*time.Millisecond, b.ForAttempt(2))
	assert.Equal(t, 80*time.Millisecond, b.ForAttempt(10))
	assert.Equal(t, 80*time.Millisecond, b.ForAttempt(100))

	jittered := NewBackoff(100*time.Millisecond, time.Second, 0.5)
	for range 50 {
		d := jittered.ForAttempt(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestJSONServerErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":8,"message":"disk failure"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	_, err = c.PostJSON(context.Background(), "write_file", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.False(t, httpErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryableStatuses(t *testing.T) {
	jsonHeader := http.Header{"Content-Type": {"application/json"}}
	for _, tc := range []struct {
		status    int
		header    http.Header
		retryable bool
		declined  bool
	}{
		{http.StatusRequestTimeout, nil, true, true},
		{http.StatusTooManyRequests, jsonHeader, true, true},
		{http.StatusServiceUnavailable, jsonHeader, true, true},
		{http.StatusBadGateway, nil, true, false},
		{http.StatusGatewayTimeout, nil, true, false},
		{http.StatusInternalServerError, nil, true, false},
		{http.StatusInternalServerError, jsonHeader, false, false},
		{http.StatusNotImplemented, nil, false, false},
		{http.StatusNotFound, nil, false, false},
	} {
		e := &HTTPError{StatusCode: tc.status, Header: tc.header}
		assert.Equal(t, tc.retryable, e.Retryable(), "retryable %d json=%v", tc.status, e.IsJSON())
		assert.Equal(t, tc.declined, e.Declined(), "declined %d", tc.status)
	}
}

func TestNotIdempotentSurvivesOnlyDeclinedStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte("ok")) //nolint:errcheck
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	_, err = c.PostJSON(context.Background(), "mkdir", nil, nil, NotIdempotent())

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotIdempotentIsNotRepeatedAfterDroppedConnection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryPolicy(fastRetry))
	require.NoError(t, err)

	_, err = c.PostJSON(context.Background(), "rename_path", nil, nil, NotIdempotent())
	require.Error(t, err)
	assert.False(t, notSent(err))
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	out, err := c.PostJSON(context.Background(), "stat", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDialFailureCountsAsNotSent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, WithRetryPolicy(RetryPolicy{MaxRetries: 0}))
	require.NoError(t, err)
	_, err = c.PostJSON(context.Background(), "mkdir", nil, nil, NotIdempotent())
	require.Error(t, err)
	assert.True(t, notSent(err))
}

func TestAttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond), WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	out, err := c.PostJSON(context.Background(), "stat", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, int32(2), calls.Load())
}
