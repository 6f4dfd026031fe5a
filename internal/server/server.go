// Package server hosts the snapshot subgraph over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xtal-snapshots/crystal-snapshots/internal/graph"
	"github.com/xtal-snapshots/crystal-snapshots/internal/loader"
	"github.com/xtal-snapshots/crystal-snapshots/internal/metrics"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP and per-request loader settings.
type Config struct {
	Listen          string
	ShutdownTimeout time.Duration
	Bucket          string
	Loader          snapshots.LoaderOptions
}

// Deps are the collaborators shared by every request.
type Deps struct {
	Schema *graphql.Schema
	Store  snapshots.Store
	Signer snapshots.Signer

	// DB backs /readyz. A nil DB is always ready.
	DB Pinger

	Logger   zerolog.Logger
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Server serves the GraphQL endpoint alongside health and metrics.
type Server struct {
	cfg     Config
	deps    Deps
	tracer  trace.Tracer
	handler http.Handler
}

// New validates deps and builds the route table.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Schema == nil {
		return nil, errors.New("schema is required")
	}
	if deps.Store == nil || deps.Signer == nil {
		return nil, errors.New("store and signer are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required: %w", snapshots.ErrInvalidConfig)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = snapshots.DefaultShutdownTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	s := &Server{cfg: cfg, deps: deps}
	if deps.TracerProvider != nil {
		s.tracer = deps.TracerProvider.Tracer(loader.InstrumentationName)
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	gql := s.withLoader(&relay.Handler{Schema: s.deps.Schema})
	mux.Handle("POST /{$}", s.instrument("/", gql))
	mux.Handle("POST /graphql", s.instrument("/graphql", gql))
	mux.Handle("GET /healthz", s.instrument("/healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /readyz", s.instrument("/readyz", http.HandlerFunc(s.handleReady)))
	if s.deps.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.deps.Gatherer))
	}

	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if s.deps.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(s.deps.TracerProvider))
	}
	return otelhttp.NewHandler(mux, "crystal-snapshots", opts...)
}

// withLoader gives every request its own snapshot loader, scoped to the
// request context so that batches die with the request.
func (s *Server) withLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		l := loader.New(ctx, loader.Deps{
			Store:   s.deps.Store,
			Signer:  s.deps.Signer,
			Bucket:  s.cfg.Bucket,
			Logger:  logger,
			Metrics: s.deps.Metrics,
			Tracer:  s.tracer,
		}, s.cfg.Loader)

		next.ServeHTTP(w, r.WithContext(graph.WithLoader(ctx, l)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable\n"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. In-flight requests get
// up to the shutdown timeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info().Str("addr", ln.Addr().String()).Msg("serving subgraph")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.deps.Logger.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
