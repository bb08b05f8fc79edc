package httpx

import (
	"fmt"
	"net/http"
)

// maxErrorBody caps how much of a response body Error prints.
const maxErrorBody = 256

// HTTPError is a response with status >= 400. Body holds the full payload so
// callers can decode service error envelopes from it.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	body := e.Body
	suffix := ""
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
		suffix = "..."
	}
	if e.Method == "" {
		return fmt.Sprintf("httpx: status %d: %s%s", e.StatusCode, body, suffix)
	}
	return fmt.Sprintf("httpx: %s %s: status %d: %s%s", e.Method, e.Path, e.StatusCode, body, suffix)
}

// Retryable reports whether repeating the request may succeed: 408, 429,
// 502, 503 and 504 always, other 5xx only when the body is not a JSON error
// document. A JSON 500 is the service's final answer about the operation.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case http.StatusNotImplemented:
		return false
	}
	return e.StatusCode >= http.StatusInternalServerError && !e.IsJSON()
}

// Declined reports whether the server refused the request without acting on
// it: 408, 429 or 503.
func (e *HTTPError) Declined() bool {
	if e == nil {
		return false
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// IsJSON reports whether the response declared a JSON body.
func (e *HTTPError) IsJSON() bool {
	return e != nil && isJSON(e.Header.Get("Content-Type"))
}
