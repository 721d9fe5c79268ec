// Package handler implements the HTTP handlers for the goat attendance API.
// All handlers are methods on Server. Methods are split into resource files
// (health.go, runs.go, attendance.go) but share the same Server struct so they
// can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/goat-attendance/api"
	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/middleware"
)

// DefaultMaxBodyBytes caps request bodies. No endpoint reads a body today.
const DefaultMaxBodyBytes = 1 << 20

// Detector defines the operations the handlers depend on.
// service.AbsenceDetector satisfies it; tests inject a mock.
type Detector interface {
	Run(ctx context.Context, windowHours int) (domain.AbsenceReport, error)
	Attendance(ctx context.Context, tagID string) (domain.AttendanceRecord, error)
	ListAttendance(ctx context.Context, p domain.PageRequest) (domain.AttendancePage, error)
}

// Server holds the dependencies of every handler.
type Server struct {
	detector    Detector
	windowHours int
	gatherer    prometheus.Gatherer
}

// NewServer constructs the Server. windowHours is used when a run request
// does not name its own window. gatherer may be nil, in which case /metrics
// is not registered.
func NewServer(detector Detector, windowHours int, gatherer prometheus.Gatherer) *Server {
	return &Server{detector: detector, windowHours: windowHours, gatherer: gatherer}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, 0, nil)
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Post("/runs", s.PostRun)
	r.Get("/attendance", s.ListAttendance)
	r.Get("/attendance/{tagID}", s.GetAttendance)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// RouterOptions configures the middleware stack built by NewRouter.
type RouterOptions struct {
	Logger       *slog.Logger
	CORSOrigins  []string
	MaxBodyBytes int64
}

// NewRouter returns a chi router with the standard middleware stack and all
// of s's routes mounted.
//
// Middleware order: RequestID → RealIP → SlogLogger → Recoverer → MaxBodySize
// → CORS (a pass-through when no origin is configured).
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(opts.Logger, "/healthz", "/metrics"))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewMaxBodySizeHandler(opts.MaxBodyBytes))
	r.Use(middleware.NewCORSHandler(opts.CORSOrigins))

	s.Routes(r)
	return r
}

// GetOpenAPI handles GET /openapi.yaml.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPI)
}
