package server

import (
	"crypto/subtle"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/datenlord/datenlord_sdk_go/internal/dlapi"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// responseRecorder captures the status code and body size for the access log.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

// requestLog emits one access line per request once it completes.
func requestLog(log zerolog.Logger, m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			m.Requests.Add(1)
			if rec.status >= 400 {
				m.Errors.Add(1)
			}
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("took", time.Since(start)).
				Int64("response_bytes", rec.written).
				Str("session", r.Header.Get(dlapi.HeaderSession)).
				Str("remote_addr", r.RemoteAddr).
				Msg("http")
		})
	}
}

// serviceToken rejects requests whose X-Service-Token does not match token.
// Health checks are always allowed; an empty token allows everything.
func serviceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.URL.Path == dlapi.PathHealth {
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get(dlapi.HeaderToken)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized,
					dlapi.EncodeError(uint32(dlfs.CodePermissionDenied), "unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// inject applies artificial latency and random failures before next runs.
func inject(delay time.Duration, fail FailConfig, m *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-r.Context().Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if fail.Rate > 0 && rand.Float64() < fail.Rate {
			m.Injected.Add(1)
			status := fail.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			http.Error(w, "failure injected", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}
