// Package fakeapi serves an in-memory quote/history API and auth backend for
// development and tests.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/models"
)

// Server is the fixture backend
type Server struct {
	data    *Dataset
	auth    *authService
	router  *mux.Router
	handler http.Handler
	logger  *common.Logger

	mu       sync.Mutex
	failures map[string][]int
	delays   map[string]time.Duration
	calls    map[string]int
}

// Option configures the server
type Option func(*Server)

// WithDataset replaces the seeded dataset
func WithDataset(d *Dataset) Option {
	return func(s *Server) {
		s.data = d
	}
}

// WithJWTSecret sets the HS256 secret for issued tokens
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		s.auth.secret = []byte(secret)
	}
}

// WithTokenTTL sets the access token lifetime
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.auth.ttl = ttl
	}
}

// WithClock sets the time source for issued tokens
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.auth.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// DefaultJWTSecret signs tokens when no secret is configured
const DefaultJWTSecret = "tradeonly-fixture-secret"

// New creates a fixture server seeded with DefaultDataset
func New(opts ...Option) *Server {
	s := &Server{
		data:     DefaultDataset(),
		auth:     newAuthService(DefaultJWTSecret),
		router:   mux.NewRouter(),
		logger:   common.NewSilentLogger(),
		failures: map[string][]int{},
		delays:   map[string]time.Duration{},
		calls:    map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(s.injectMiddleware)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.registerMarketRoutes(s.router.PathPrefix("/api").Subrouter())
	s.registerAuthRoutes(s.router.PathPrefix("/auth/v1").Subrouter())

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept", "X-Request-ID", "apikey"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Data returns the live dataset
func (s *Server) Data() *Dataset {
	return s.data
}

// FailNext makes the next request to path fail with status. Calls queue.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], status)
}

// Delay holds every request to path for d. Zero removes the delay.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d <= 0 {
		delete(s.delays, path)
		return
	}
	s.delays[path] = d
}

// Calls returns how many requests reached path
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests under prefix
func (s *Server) TotalCalls(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p, c := range s.calls {
		if strings.HasPrefix(p, prefix) {
			n += c
		}
	}
	return n
}

func (s *Server) injectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		s.mu.Lock()
		s.calls[path]++
		delay := s.delays[path]
		status := 0
		if q := s.failures[path]; len(q) > 0 {
			status = q[0]
			s.failures[path] = q[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			s.logger.Debug().Str("path", path).Int("status", status).Msg("Injected failure")
			writeDetail(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail mirrors the backend's {"detail": ...} error body
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func regionOf(r *http.Request) models.Region {
	if strings.Contains(r.URL.Path, "/market/indian/") {
		return models.RegionIndia
	}
	return models.RegionUS
}
