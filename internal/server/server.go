package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photocal/pkg/logger"
)

// Handlers are the sub-routers the server exposes. Nil entries are skipped.
type Handlers struct {
	// Gateway is mounted at the root.
	Gateway http.Handler
	// WebApp is mounted under /api.
	WebApp http.Handler
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	server *http.Server
	logger *logger.Logger
}

func NewServer(port string, h Handlers, logger *logger.Logger) *Server {
	logger = logger.Named("http")
	return &Server{
		server: &http.Server{
			Addr:         ":" + port,
			Handler:      NewRouter(h, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the process-wide router.
func NewRouter(h Handlers, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if h.WebApp != nil {
		r.Mount("/api", h.WebApp)
	}
	if h.Gateway != nil {
		r.Mount("/", h.Gateway)
	}
	return r
}

func requestLogger(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debugw("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func (s *Server) Start() error {
	s.logger.Infow("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
