package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rzbill/turnstile/internal/runtime"
	gatesvc "github.com/rzbill/turnstile/internal/services/gates"
	logpkg "github.com/rzbill/turnstile/pkg/log"
)

// Server serves the HTTP API.
type Server struct {
	rt     *runtime.Runtime
	gates  *gatesvc.Service
	logger logpkg.Logger
	srv    *http.Server
	lis    net.Listener
}

// Options configures the server.
type Options struct {
	Logger logpkg.Logger
	// Registry backs the /metrics endpoint. Optional.
	Registry *prometheus.Registry
}

// New builds the server and its routes.
func New(rt *runtime.Runtime, gates *gatesvc.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.With(logpkg.Component("http"))

	mux := http.NewServeMux()
	s := &Server{rt: rt, gates: gates, logger: logger}
	s.srv = &http.Server{Handler: cors(requestID(logging(logger, mux)))}

	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/gates", s.handleListGates)
	mux.HandleFunc("/v1/gates/apply", s.handleApply)
	mux.HandleFunc("/v1/gates/enqueue", s.handleEnqueue)
	mux.HandleFunc("/v1/gates/release", s.handleRelease)
	mux.HandleFunc("/v1/gates/status", s.handleStatus)
	mux.HandleFunc("/v1/gates/waiting", s.handleWaiting)
	mux.HandleFunc("/v1/gates/reset", s.handleReset)
	mux.HandleFunc("/v1/gates/watch", s.handleWatchSSE)
	if opts.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
