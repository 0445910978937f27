package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"islatel/internal/auth"
	"islatel/internal/config"
	"islatel/internal/crm"
	"islatel/internal/domain"
	"islatel/internal/metrics"
	"islatel/internal/models"
)

// Server exposes the CRM over HTTP: login, guest CRUD, follow-ups,
// configuration lists, dashboard analytics and report export.
type Server struct {
	cfg      config.APIConfig
	engine   *crm.Engine
	auth     *auth.Service
	renderer domain.ReportRenderer
	logger   *zerolog.Logger
	server   *http.Server
	limiters sync.Map // map[string]*rate.Limiter
}

func NewServer(cfg config.APIConfig, engine *crm.Engine, authSvc *auth.Service, renderer domain.ReportRenderer, logger *zerolog.Logger) *Server {
	srv := &Server{
		cfg:      cfg,
		engine:   engine,
		auth:     authSvc,
		renderer: renderer,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/login", srv.handleLogin)
	mux.HandleFunc("/api/v1/guests", srv.handleGuests)
	mux.HandleFunc("/api/v1/guests/", srv.handleGuestByID)
	mux.HandleFunc("/api/v1/followups/", srv.handleFollowUpByID)
	mux.HandleFunc("/api/v1/reminders", srv.handleReminders)
	mux.HandleFunc("/api/v1/lists", srv.handleLists)
	mux.HandleFunc("/api/v1/lists/", srv.handleListByKind)
	mux.HandleFunc("/api/v1/dashboard", srv.handleDashboard)
	mux.HandleFunc("/api/v1/forecast", srv.handleForecast)
	mux.HandleFunc("/api/v1/reports", srv.handleReport)
	mux.HandleFunc("/api/v1/reports/export", srv.handleReportExport)

	handler := srv.loggingMiddleware(srv.rateLimitMiddleware(srv.authMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

type contextKey string

const roleKey contextKey = "role"

// public paths skip token auth.
func public(path string) bool {
	return path == "/healthz" || path == "/metrics" || path == "/api/v1/login"
}

// adminOnly guards the manage surface: deleting guests and editing lists.
func adminOnly(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/v1/lists") && r.Method != http.MethodGet {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/v1/guests") && r.Method == http.MethodDelete {
		return true
	}
	return false
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		role, ok := s.auth.RoleFor(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if adminOnly(r) && role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey, role)))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit.RPS > 0 {
			if !s.getLimiter(clientKey(r)).Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getLimiter(key string) *rate.Limiter {
	if v, ok := s.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := s.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), burst)
	actual, loaded := s.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
