// Package http serves the strategic report API together with the health
// and metrics endpoints of the analytics worker.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alem-hub/strategic-analytics/internal/application/query"
	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
	"github.com/alem-hub/strategic-analytics/pkg/logger"
)

// Config contains HTTP server settings.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds a single report computation.
	RequestTimeout time.Duration
}

// DefaultConfig returns the settings used by the worker.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// Address returns the listen address.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReportQuery computes or fetches the report of one institution.
type ReportQuery interface {
	Handle(ctx context.Context, q query.GetStrategicReportQuery) (*query.GetStrategicReportResult, error)
}

// LatestReports returns the newest cached report of an institution.
type LatestReports interface {
	Latest(ctx context.Context, institutionID string) (*analytics.Report, bool, error)
}

// Dependencies are the collaborators behind the routes. Reports is
// required; a nil Latest, Health or Metrics disables its route.
type Dependencies struct {
	Reports ReportQuery
	// Goals is the base for partial goal overrides; zero means the defaults.
	Goals   assessment.InstitutionalGoals
	Latest  LatestReports
	Health  *HealthChecker
	Metrics http.Handler
	Logger  *logger.Logger
}

// Server is the HTTP interface of the worker.
type Server struct {
	config     Config
	deps       Dependencies
	log        *logger.Logger
	router     chi.Router
	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// NewServer builds the router and the underlying http.Server.
func NewServer(config Config, deps Dependencies) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	s := &Server{
		config: config,
		deps:   deps,
		log:    deps.Logger,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With(logger.Component("http"))

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              config.Address(),
		Handler:           s.router,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logging)
	r.Use(s.recovery)

	r.Get("/healthz", s.handleLive)
	r.Get("/readyz", s.handleReady)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api/v1/institutions/{institutionID}", func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
		r.Get("/report", s.handleReport)
		if s.deps.Latest != nil {
			r.Get("/report/latest", s.handleLatest)
		}
	})
	return r
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("address", s.config.Address()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, HealthStatus{Healthy: true, Timestamp: time.Now().UTC()})
		return
	}
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReport serves GET /api/v1/institutions/{id}/report. Query
// parameters: fresh=true skips the cache; goal_average_score,
// goal_passing_rate and goal_attendance_rate override the configured goals;
// section picks one part of the report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := query.GetStrategicReportQuery{
		InstitutionID: chi.URLParam(r, "institutionID"),
		BypassCache:   queryBool(r, "fresh"),
	}
	goals, err := goalsFromQuery(r, s.deps.Goals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q.Goals = goals

	pick, ok := sections[r.URL.Query().Get("section")]
	if !ok {
		s.writeError(w, r, shared.NewDomainError("http", "Report", shared.ErrInvalidInput, "unknown section"))
		return
	}

	res, err := s.deps.Reports.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("ETag", strconv.Quote(res.Report.Fingerprint))
	writeJSON(w, http.StatusOK, pick(res.Report))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "institutionID")
	report, found, err := s.deps.Latest.Latest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, shared.NewDomainError("http", "Latest", shared.ErrNotFound, "no cached report for institution"))
		return
	}
	w.Header().Set("ETag", strconv.Quote(report.Fingerprint))
	writeJSON(w, http.StatusOK, report)
}

var sections = map[string]func(*analytics.Report) any{
	"":            func(r *analytics.Report) any { return r },
	"metrics":     func(r *analytics.Report) any { return r.Metrics },
	"gaps":        func(r *analytics.Report) any { return r.LearningGaps },
	"rankings":    func(r *analytics.Report) any { return r.ClassRankings },
	"predictions": func(r *analytics.Report) any { return r.Predictions },
	"alerts":      func(r *analytics.Report) any { return r.Alerts },
}

// goalsFromQuery returns nil when no goal parameter is present. Goals a
// partial override leaves out are taken from base.
func goalsFromQuery(r *http.Request, base assessment.InstitutionalGoals) (*assessment.InstitutionalGoals, error) {
	params := []struct {
		key string
		dst func(*assessment.InstitutionalGoals) *float64
	}{
		{"goal_average_score", func(g *assessment.InstitutionalGoals) *float64 { return &g.AverageScore }},
		{"goal_passing_rate", func(g *assessment.InstitutionalGoals) *float64 { return &g.PassingRate }},
		{"goal_attendance_rate", func(g *assessment.InstitutionalGoals) *float64 { return &g.AttendanceRate }},
	}

	goals := base
	if goals == (assessment.InstitutionalGoals{}) {
		goals = assessment.DefaultGoals()
	}
	set := false
	for _, p := range params {
		raw := r.URL.Query().Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, shared.WrapError("http", "Report", shared.ErrInvalidFormat, p.key+" must be a number", err)
		}
		*p.dst(&goals) = v
		set = true
	}
	if !set {
		return nil, nil
	}
	return &goals, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.String("ip", r.RemoteAddr),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Latency(time.Since(start)),
		)
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("panic recovered",
					logger.Any("error", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", middleware.GetReqID(r.Context())),
				)
				writeJSON(w, http.StatusInternalServerError, apiError{Code: "internal_error", Message: "unexpected error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain error kinds onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case shared.IsValidation(err):
		status, code = http.StatusBadRequest, "invalid_request"
	case shared.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case shared.IsUnavailable(err):
		status, code = http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	}

	msg := "unexpected error"
	var de *shared.DomainError
	if status != http.StatusInternalServerError && errors.As(err, &de) {
		msg = de.Message
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", logger.Err(err), logger.String("path", r.URL.Path))
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, apiError{Code: code, Message: msg, RequestID: middleware.GetReqID(r.Context())})
}
