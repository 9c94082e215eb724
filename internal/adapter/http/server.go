package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ArtifactSource serves the pipeline's persisted tables.
type ArtifactSource interface {
	ReadinessChecker
	Locations(ctx context.Context) ([]string, error)
	Monthly(ctx context.Context, q domain.Query) ([]domain.MonthlyAggregate, error)
	Seasonal(ctx context.Context, q domain.Query) ([]domain.SeasonalAggregate, error)
	Extremes(ctx context.Context, q domain.Query) ([]domain.ExtremeEvent, error)
}

// Server exposes health, readiness, metrics and the read-only artifact API.
type Server struct {
	httpServer *http.Server
	source     ArtifactSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and /api/v1 routes.
func NewServer(addr string, source ArtifactSource, allowedOrigins []string, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(source))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/locations", s.handleLocations)
		r.Get("/monthly", s.handleMonthly)
		r.Get("/seasonal", s.handleSeasonal)
		r.Get("/extremes", s.handleExtremes)
	})

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

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		render.JSON(w, r, map[string]string{"status": "ready"})
	}
}

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var qe *queryError
	switch {
	case errors.As(err, &qe):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInputMissing), errors.Is(err, domain.ErrSchemaMismatch):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

// queryError reports an invalid query parameter.
type queryError struct {
	param, value string
}

func (e *queryError) Error() string {
	return "invalid query parameter " + e.param + "=" + strconv.Quote(e.value)
}

func parseQuery(r *http.Request) (domain.Query, error) {
	q := domain.Query{Location: r.URL.Query().Get("location")}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"from_year", &q.FromYear},
		{"to_year", &q.ToYear},
	} {
		v := r.URL.Query().Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return q, &queryError{param: p.name, value: v}
		}
		*p.dst = n
	}
	if q.FromYear != 0 && q.ToYear != 0 && q.FromYear > q.ToYear {
		return q, &queryError{param: "from_year", value: strconv.Itoa(q.FromYear)}
	}
	return q, nil
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.source.Locations(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if locations == nil {
		locations = []string{}
	}
	render.JSON(w, r, map[string]any{"locations": locations})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.source.Monthly(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]monthlyResponse, len(rows))
	for i, m := range rows {
		out[i] = toMonthlyResponse(m)
	}
	render.JSON(w, r, map[string]any{"count": len(out), "monthly": out})
}

func (s *Server) handleSeasonal(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.source.Seasonal(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.SeasonalAggregate{}
	}
	render.JSON(w, r, map[string]any{"count": len(rows), "seasonal": rows})
}

func (s *Server) handleExtremes(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	events, err := s.source.Extremes(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]extremeResponse, len(events))
	for i, e := range events {
		out[i] = extremeResponse{
			monthlyResponse: toMonthlyResponse(e.MonthlyAggregate),
			TempZ:           e.TempZ,
			PrecipPctile:    e.PrecipPctile,
			Reason:          e.Reason,
		}
	}
	render.JSON(w, r, map[string]any{"count": len(out), "extremes": out})
}
