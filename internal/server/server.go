// Package server exposes the cached flight board over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sh3rwan/erbil-api/internal/cache"
	"github.com/sh3rwan/erbil-api/internal/metrics"
	"github.com/sh3rwan/erbil-api/pkg/models"
)

// Server routes inbound requests to cache operations. It holds no flight
// state of its own; every data path delegates to the cache.
type Server struct {
	basePath  string
	cache     *cache.Cache
	http      *http.Server
	startTime time.Time
}

// New creates a server for the given cache. basePath is the API prefix the
// flight endpoints hang off, e.g. "/api/v1/flights".
func New(addr, basePath string, c *cache.Cache) *Server {
	s := &Server{
		basePath:  basePath,
		cache:     c,
		startTime: time.Now(),
	}

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler builds the routing table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc(s.basePath, s.handleFlights)
	mux.HandleFunc(s.basePath+"/arrivals", s.handleArrivals)
	mux.HandleFunc(s.basePath+"/departures", s.handleDepartures)
	mux.HandleFunc(s.basePath+"/refresh", s.handleRefresh)

	// Everything else is a JSON 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.notFound(w, r)
	})

	return s.recoverMiddleware(s.corsMiddleware(s.metricsMiddleware(mux)))
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("HTTP server listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPRequests.Inc()

		next.ServeHTTP(w, r)

		metrics.HTTPLatency.Observe(time.Since(start).Seconds())
	})
}

// corsMiddleware attaches permissive CORS headers to every response and
// short-circuits preflight requests with an empty 204.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware converts handler panics into a 500 response so one bad
// request never takes the process down.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				respondJSON(w, http.StatusInternalServerError, errorResponse{
					Error:   "internal_error",
					Message: "an unexpected error occurred",
					Details: fmt.Sprintf("%v", rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response Shapes
// ---------------------------------------------------------------------------

type flightsResponse struct {
	Flights     []models.FlightRecord `json:"flights"`
	Type        string                `json:"type"`
	LastFetched *string               `json:"lastFetched"`
	CacheStatus models.Freshness      `json:"cacheStatus"`
}

type refreshResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	LastFetched *string `json:"lastFetched"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func lastFetched(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	s.serveSnapshot(w, r, "all", nil)
}

func (s *Server) handleArrivals(w http.ResponseWriter, r *http.Request) {
	kind := models.KindArrival
	s.serveSnapshot(w, r, "arrivals", &kind)
}

func (s *Server) handleDepartures(w http.ResponseWriter, r *http.Request) {
	kind := models.KindDeparture
	s.serveSnapshot(w, r, "departures", &kind)
}

func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request, typ string, kind *models.Kind) {
	if r.Method != http.MethodGet {
		s.notFound(w, r)
		return
	}

	snap, err := s.cache.Get(r.Context(), false)
	if err != nil {
		// Nothing has ever been fetched and this attempt failed too. Serve
		// an empty stale board; "refresh was attempted" is visible through
		// lastFetched staying null.
		log.Printf("Serving empty board, fetch failed with no cached data: %v", err)
	}

	records := snap.Records
	if kind != nil {
		records = snap.Filter(*kind)
	}
	if records == nil {
		records = []models.FlightRecord{}
	}

	respondJSON(w, http.StatusOK, flightsResponse{
		Flights:     records,
		Type:        typ,
		LastFetched: lastFetched(snap.FetchedAt),
		CacheStatus: snap.Freshness,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.notFound(w, r)
		return
	}

	snap, err := s.cache.ForceRefresh(r.Context())

	resp := refreshResponse{
		Success:     err == nil,
		LastFetched: lastFetched(snap.FetchedAt),
	}
	if err != nil {
		resp.Message = fmt.Sprintf("refresh failed: %v", err)
	} else {
		resp.Message = fmt.Sprintf("refresh completed, %d flights cached", len(snap.Records))
	}

	// Always 200: the refresh was attempted either way, and the outcome is
	// carried in the body.
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Current()
	metrics.CacheRecords.Set(float64(len(snap.Records)))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(metrics.Default().Export()))
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, errorResponse{
		Error:   "not_found",
		Message: fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
