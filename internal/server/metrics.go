package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics holds process-lifetime counters exposed at GET /metrics.
type Metrics struct {
	Requests     atomic.Int64
	Errors       atomic.Int64 // responses with status >= 400
	Injected     atomic.Int64
	BytesWritten atomic.Int64
	BytesRead    atomic.Int64
}

// Snapshot returns the current counter values keyed by their wire names.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":    m.Requests.Load(),
		"errors_total":      m.Errors.Load(),
		"injected_failures": m.Injected.Load(),
		"bytes_written":     m.BytesWritten.Load(),
		"bytes_read":        m.BytesRead.Load(),
	}
}

func (m *Metrics) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot()) //nolint:errcheck
	}
}
