// Package server exposes a dlfs.Backend over the JSON wire protocol used by
// the HTTP backend of package dlfs.
package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/datenlord/datenlord_sdk_go/internal/dlapi"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// maxRequestBytes bounds a single request body (base64 inflates payloads by a
// third).
const maxRequestBytes = 64 << 20

// Server serves one backend. It implements http.Handler.
type Server struct {
	backend dlfs.Backend
	log     zerolog.Logger
	token   string
	latency time.Duration
	fail    FailConfig
	metrics *Metrics
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithToken requires every request but health checks to carry token in
// X-Service-Token. An empty token disables the check.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithLatency delays every operation by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithFailure injects failures into a fraction of operations.
func WithFailure(cfg FailConfig) Option {
	return func(s *Server) {
		s.fail = cfg
	}
}

// New builds a Server for b.
func New(b dlfs.Backend, opts ...Option) *Server {
	s := &Server{
		backend: b,
		log:     zerolog.Nop(),
		metrics: &Metrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	ops := http.NewServeMux()
	ops.HandleFunc(dlapi.PathStat, s.handleStat)
	ops.HandleFunc(dlapi.PathReadDir, s.handleReadDir)
	ops.HandleFunc(dlapi.PathMkdir, s.handleMkdir)
	ops.HandleFunc(dlapi.PathCreateFile, s.handleCreateFile)
	ops.HandleFunc(dlapi.PathWriteFile, s.handleWriteFile)
	ops.HandleFunc(dlapi.PathReadFile, s.handleReadFile)
	ops.HandleFunc(dlapi.PathRename, s.handleRename)
	ops.HandleFunc(dlapi.PathDeleteDir, s.handleDeleteDir)
	ops.HandleFunc(dlapi.PathDeleteFile, s.handleDeleteFile)
	ops.HandleFunc(dlapi.PathStatFs, s.handleStatFs)

	mux := http.NewServeMux()
	mux.Handle("/", inject(s.latency, s.fail, s.metrics, ops))
	mux.HandleFunc("GET "+dlapi.PathMetrics, s.metrics.handler())
	mux.HandleFunc("GET "+dlapi.PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeResult(w, dlapi.Health{Status: "ok"})
	})

	s.handler = requestLog(s.log, s.metrics)(serviceToken(s.token)(mux))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Metrics exposes the live counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
