package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-radar-renderer/internal/adapter/raster"
	"github.com/couchcryptid/storm-radar-renderer/internal/pipeline"
)

// FrameRenderer produces radar frames for a caller-supplied dataset id.
type FrameRenderer interface {
	Render(ctx context.Context, requestedID string) (pipeline.Frame, error)
	RenderSVG(ctx context.Context, requestedID string) (pipeline.Frame, error)
}

const contentTypeSVG = "image/svg+xml"

// Server exposes the radar image plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	frames     FrameRenderer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /radar, /radar.svg, /healthz,
// /readyz, and /metrics routes. Any path mentioning favicon is answered
// with 204 before routing.
func NewServer(addr string, frames FrameRenderer, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      noFavicon(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		frames: frames,
		logger: logger,
	}

	mux.HandleFunc("GET /{$}", s.handleRadar)
	mux.HandleFunc("GET /radar", s.handleRadar)
	mux.HandleFunc("GET /radar.svg", s.handleRadarSVG)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRadar(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("dt")
	f, err := s.frames.Render(r.Context(), requested)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFrame(w, raster.ContentType, f)
}

func (s *Server) handleRadarSVG(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("dt")
	f, err := s.frames.RenderSVG(r.Context(), requested)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFrame(w, contentTypeSVG, f)
}

// fail logs the error and answers 502 with no body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("frame render failed",
		"path", r.URL.Path,
		"dt", r.URL.Query().Get("dt"),
		"error", err,
	)
	w.WriteHeader(http.StatusBadGateway)
}

func writeFrame(w http.ResponseWriter, contentType string, f pipeline.Frame) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(f.Body)))
	h.Set("Cache-Control", f.Policy.Header())
	w.WriteHeader(http.StatusOK)
	w.Write(f.Body) //nolint:errcheck // client went away
}

func noFavicon(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(strings.ToLower(r.URL.Path), "favicon") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
