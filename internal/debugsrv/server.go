// Package debugsrv serves read-only introspection of a running renderer:
// health, Prometheus metrics, a DOM snapshot, registry statistics and
// XPath queries over the headless document.
package debugsrv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/registry"
	"github.com/vango-dev/vrender/pkg/renderer"
)

// Config configures the debug handler.
type Config struct {
	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Session, when set, backs /session with live transport counters.
	Session func() any

	// Timeout bounds each request's wait for the renderer loop.
	Timeout time.Duration

	Logger *slog.Logger
}

type server struct {
	r      *renderer.Renderer
	doc    *htmldom.Document
	config Config
	logger *slog.Logger
}

// Handler returns the debug routes for r, whose document is doc.
func Handler(r *renderer.Renderer, doc *htmldom.Document, config Config) http.Handler {
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &server{
		r:      r,
		doc:    doc,
		config: config,
		logger: config.Logger.With("component", "debugsrv"),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(config.Timeout))

	mux.Get("/healthz", s.health)
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	mux.Get("/snapshot", s.snapshot)
	mux.Get("/nodes", s.nodes)
	mux.Get("/query", s.query)
	if config.Session != nil {
		mux.Get("/session", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, config.Session())
		})
	}
	return mux
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	if err := s.r.Faulted(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "faulted",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) snapshot(w http.ResponseWriter, req *http.Request) {
	var html string
	err := s.r.View(req.Context(), func(dom.Document, *registry.Registry) error {
		html = s.doc.String()
		return nil
	})
	if err != nil {
		s.loopError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func (s *server) nodes(w http.ResponseWriter, req *http.Request) {
	stats, err := s.r.Stats(req.Context())
	if err != nil {
		s.loopError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) query(w http.ResponseWriter, req *http.Request) {
	xpath := req.URL.Query().Get("xpath")
	if xpath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing xpath parameter"})
		return
	}

	var matches []string
	var queryErr error
	err := s.r.View(req.Context(), func(dom.Document, *registry.Registry) error {
		matches, queryErr = s.doc.QueryHTML(xpath)
		return nil
	})
	if err != nil {
		s.loopError(w, err)
		return
	}
	if queryErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": queryErr.Error()})
		return
	}
	if matches == nil {
		matches = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"xpath":   xpath,
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *server) loopError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.logger.Warn("renderer unavailable", "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve runs the debug server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("debug server listening", "component", "debugsrv", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
