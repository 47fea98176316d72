// Package gateway serves webhook ingress, approval callbacks and operational endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MEKXH/dropwatch/internal/approval"
	"github.com/MEKXH/dropwatch/internal/config"
	"github.com/MEKXH/dropwatch/internal/metrics"
	"github.com/MEKXH/dropwatch/internal/policy"
	"github.com/MEKXH/dropwatch/internal/ratelimit"
	"github.com/MEKXH/dropwatch/internal/version"
	"github.com/MEKXH/dropwatch/internal/webhook"
)

const defaultMaxBodyBytes = 64 << 10

// Ingress authenticates and deduplicates inbound webhooks.
type Ingress interface {
	Accept(ctx context.Context, req webhook.Request) (webhook.Event, error)
}

// Launcher starts a purchase attempt in the background and returns its run ID.
type Launcher interface {
	Launch(ctx context.Context, ev webhook.Event) string
}

// Deps are the collaborators the handler routes to.
type Deps struct {
	Ingress  Ingress
	Launcher Launcher
	Registry *approval.Registry
	// Limiter guards approval callbacks. Nil disables limiting.
	Limiter      *ratelimit.Limiter
	Mode         policy.Mode
	MaxBodyBytes int64
}

type Server struct {
	cfg        config.GatewayConfig
	deps       Deps
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, deps Deps) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 8080
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = cfg.MaxBodyBytes
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:  cfg,
		deps: deps,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           NewHandler(s.deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &handlers{deps: deps}

	r := mux.NewRouter()
	r.Use(instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, getRequestID(r), http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, getRequestID(r), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/version", h.version).Methods(http.MethodGet)
	r.HandleFunc("/webhook/{source}", h.webhook).Methods(http.MethodPost)

	callbacks := r.PathPrefix("/approval/{run_id}").Subrouter()
	if deps.Limiter != nil {
		callbacks.Use(rateLimit(deps.Limiter))
	}
	callbacks.HandleFunc("/approve", h.decide(actionApprove)).Methods(http.MethodGet, http.MethodPost)
	callbacks.HandleFunc("/reject", h.decide(actionReject)).Methods(http.MethodGet, http.MethodPost)
	callbacks.HandleFunc("/status", h.status).Methods(http.MethodGet)
	return r
}

type handlers struct {
	deps Deps
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":    "dropwatch",
		"status":     "ok",
		"mode":       h.deps.Mode,
		"version":    version.String(),
		"request_id": getRequestID(r),
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"request_id": getRequestID(r),
	})
}

func (h *handlers) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    version.String(),
		"request_id": getRequestID(r),
	})
}

// instrument records request latency by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		timer := prometheus.NewTimer(metrics.HTTPLatency.WithLabelValues(r.Method, route))
		defer timer.ObserveDuration()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
