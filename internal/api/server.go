// Package api exposes the answer pipeline over HTTP.
//
// Endpoints:
//
//	GET    /health                 liveness probe
//	GET    /ready                  readiness probe (db ping + index populated)
//	POST   /api/chat               synchronous question answering
//	GET    /api/chat/stream        SSE streaming question answering
//	DELETE /api/sessions/{id}      drop a conversation
//	POST   /api/search             retrieval-only source lookup
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - chat.go: chat endpoints (JSON + SSE)
//   - search.go: retrieval-only endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
	"github.com/askdocs/askdocs/internal/session"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout must cover a full streamed answer, so it is generous.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Pipeline is the slice of the answer pipeline the API consumes.
// rag.Pipeline satisfies it.
type Pipeline interface {
	Ask(ctx context.Context, question string, history []rag.Turn, opts ...rag.AskOption) (*rag.Answer, error)
	AskStream(ctx context.Context, question string, history []rag.Turn, fn rag.StreamCallback, opts ...rag.AskOption) (*rag.Answer, error)
	Search(ctx context.Context, query string, opts ...rag.AskOption) ([]rag.Source, error)
}

// Pinger reports database connectivity. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter reports the stored chunk count. The store satisfies it.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Config contains the server's dependencies.
type Config struct {
	Pipeline        Pipeline
	Sessions        *session.Manager
	DB              Pinger
	Index           Counter
	MaxHistoryTurns int
	Logger          log.Logger
}

func (cfg Config) validate() error {
	if cfg.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session manager is required")
	}
	if cfg.Index == nil {
		return errors.New("chunk counter is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Server is the HTTP server for the documentation Q&A API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: cfg.Logger}

	newHealthHandler(cfg.DB, cfg.Index, cfg.Logger).registerRoutes(mux)
	newChatHandler(cfg.Pipeline, cfg.Sessions, cfg.MaxHistoryTurns, cfg.Logger).registerRoutes(mux)
	newSearchHandler(cfg.Pipeline, cfg.Logger).registerRoutes(mux)

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
