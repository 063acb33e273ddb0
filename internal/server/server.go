// Package server exposes the chain loader over a small read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stamford_chains/internal/chain"
	"github.com/eddiefleurent/stamford_chains/internal/models"
)

const dateLayout = "2006-01-02"

// Server serves per-date chain slices and day summaries. It holds no mutable
// state of its own; everything comes from the immutable loader.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	loader         *chain.Loader
	logger         *logrus.Logger
	port           int
	authToken      string
	defaultFilters chain.Filters
}

// Config holds the server settings.
type Config struct {
	Port      int
	AuthToken string
	// DefaultFilters applies when a request carries no filter overrides.
	DefaultFilters chain.Filters
}

// NewServer wires the routes. The auth token is optional; when empty the API
// is open (health is always open).
func NewServer(cfg Config, loader *chain.Loader, logger *logrus.Logger) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		loader:         loader,
		logger:         logger,
		port:           cfg.Port,
		authToken:      cfg.AuthToken,
		defaultFilters: cfg.DefaultFilters,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/dataset", s.handleDataset)
	s.router.Get("/api/dates", s.handleDates)
	s.router.Get("/api/chain/{date}", s.handleChain)
	s.router.Get("/api/conditions/{date}", s.handleConditions)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start blocks serving the API until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting chain API server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"rows":      s.loader.RowCount(),
	}
	s.writeJSON(w, health)
}

func (s *Server) handleDataset(w http.ResponseWriter, _ *http.Request) {
	info := map[string]interface{}{
		"schema":     string(s.loader.SchemaVariant()),
		"underlying": s.loader.Underlying(),
		"rows":       s.loader.RowCount(),
		"bytes":      s.loader.SizeBytes(),
	}
	if first, ok := s.loader.FirstDate(); ok {
		info["first_date"] = first.Format(dateLayout)
	}
	if last, ok := s.loader.LastDate(); ok {
		info["last_date"] = last.Format(dateLayout)
	}
	s.writeJSON(w, info)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	var start, end time.Time
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, s.loader.Location())
		if err != nil {
			http.Error(w, "invalid start date", http.StatusBadRequest)
			return
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, s.loader.Location())
		if err != nil {
			http.Error(w, "invalid end date", http.StatusBadRequest)
			return
		}
		end = t
	}

	dates := s.loader.AvailableDates(start, end)
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(dateLayout))
	}
	s.writeJSON(w, out)
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filters, err := s.parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows := s.loader.LoadDay(date, filters)
	if rows == nil {
		// Empty days are a valid state; serve [] rather than null.
		rows = []models.ChainRow{}
	}
	s.writeJSON(w, rows)
}

func (s *Server) handleConditions(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filters, err := s.parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, s.loader.AnalyzeMarketConditions(date, filters))
}

func (s *Server) parseDate(r *http.Request) (time.Time, error) {
	raw := chi.URLParam(r, "date")
	date, err := time.ParseInLocation(dateLayout, raw, s.loader.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return date, nil
}

// parseFilters overlays query parameters onto the server's default filters.
func (s *Server) parseFilters(r *http.Request) (chain.Filters, error) {
	f := s.defaultFilters
	q := r.URL.Query()

	if raw := q.Get("min_volume"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return f, fmt.Errorf("invalid min_volume %q", raw)
		}
		f.MinVolume = v
	}
	if raw := q.Get("max_dte"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, fmt.Errorf("invalid max_dte %q", raw)
		}
		f.MaxDTE = v
	}
	if raw := q.Get("strike_range_pct"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v >= 1 {
			return f, fmt.Errorf("invalid strike_range_pct %q", raw)
		}
		f.StrikeRangePct = v
	}
	if raw := q.Get("include_expired"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("invalid include_expired %q", raw)
		}
		f.IncludeExpired = v
	}
	return f, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
