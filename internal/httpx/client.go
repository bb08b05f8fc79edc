package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds how transient failures are retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// DefaultRetryPolicy retries three times between 250ms and 2s.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

// DefaultTimeout bounds a single attempt when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHeaders adds headers sent on every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		addHeaders(c.headers, h)
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithLogger attaches a logger used to trace retries.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// CallOption tunes a single PostJSON call.
type CallOption func(*callOptions)

type callOptions struct {
	idempotent bool
}

// NotIdempotent marks a call whose effect must not be applied twice. Such a
// call is retried only when the request never reached the server or the
// server declined it without acting (see HTTPError.Declined).
func NotIdempotent() CallOption {
	return func(o *callOptions) {
		o.idempotent = false
	}
}

// Client posts JSON documents to endpoints under a base URL and retries
// transient failures with exponential backoff.
type Client struct {
	base    *url.URL
	http    *http.Client
	headers http.Header
	retry   RetryPolicy
	log     zerolog.Logger
}

// NewClient creates a Client for baseURL, which must be http or https.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpx: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("httpx: unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("httpx: base URL %q has no host", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	c := &Client{
		base:    parsed,
		http:    &http.Client{Timeout: DefaultTimeout},
		headers: make(http.Header),
		retry:   DefaultRetryPolicy,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.retry.MaxRetries = max(c.retry.MaxRetries, 0)
	if c.retry.BaseDelay <= 0 {
		c.retry.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if c.retry.MaxDelay <= 0 {
		c.retry.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return c, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// PostJSON encodes payload, POSTs it to path and returns the response body.
// Statuses >= 400 come back as *HTTPError.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, header http.Header, opts ...CallOption) ([]byte, error) {
	co := callOptions{idempotent: true}
	for _, opt := range opts {
		opt(&co)
	}
	data, err := encodeJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("httpx: encode request: %w", err)
	}
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	h := make(http.Header, len(c.headers)+len(header)+1)
	addHeaders(h, c.headers)
	addHeaders(h, header)
	h.Set("Content-Type", "application/json")

	backoff := NewBackoff(c.retry.BaseDelay, c.retry.MaxDelay, c.retry.Jitter)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := c.post(ctx, target, path, h, data)
		if err == nil {
			return body, nil
		}
		if !c.retryable(ctx, attempt, err, co.idempotent) {
			return nil, err
		}
		delay := backoff.ForAttempt(attempt)
		c.log.Debug().
			Str("path", path).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("retrying request")
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func (c *Client) post(ctx context.Context, target, path string, h http.Header, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header = h.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpx: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			Method:     http.MethodPost,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       body,
			Header:     resp.Header.Clone(),
		}
	}
	return body, nil
}

func (c *Client) retryable(ctx context.Context, attempt int, err error, idempotent bool) bool {
	if attempt >= c.retry.MaxRetries || ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if idempotent {
			return httpErr.Retryable()
		}
		return httpErr.Declined()
	}
	return idempotent || notSent(err)
}

// notSent reports whether err happened before the request was written, which
// makes a retry safe for any call.
func notSent(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("httpx: invalid path %q: %w", path, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func addHeaders(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
