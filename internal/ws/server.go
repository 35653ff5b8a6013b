package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avgrelay/relay/internal/config"
	"github.com/avgrelay/relay/internal/metrics"
	"github.com/avgrelay/relay/internal/procstat"
	"github.com/avgrelay/relay/internal/registry"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config         *config.Config
	registry       *registry.Registry
	metrics        *metrics.RelayMetrics
	router         *Router
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	metricsHandler http.Handler
	sampler        *procstat.Sampler
}

// NewServer wires the transport to reg. m may be nil.
func NewServer(cfg *config.Config, reg *registry.Registry, m *metrics.RelayMetrics) *Server {
	s := &Server{
		config:         cfg,
		registry:       reg,
		metrics:        m,
		router:         NewRouter(cfg.Routes),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetMetricsHandler serves h on the configured metrics path.
// Must be called before SetupRoutes.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

// SetProcessSampler adds process statistics to /api/status.
// Must be called before SetupRoutes.
func (s *Server) SetProcessSampler(sampler *procstat.Sampler) {
	s.sampler = sampler
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	if s.metricsHandler != nil && s.config.Metrics.Enabled {
		mux.Handle(s.config.Metrics.Path, s.metricsHandler)
	}
	mux.HandleFunc("/", s.handleStream)
}

// Handler returns the full HTTP handler for the relay.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

// handleStream accepts any websocket upgrade. The request path is the route
// selector; the stream is served on the request goroutine until it ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	role := s.router.Classify(r.URL.Path)
	if role == RoleUnknown && !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	s.dispatch(conn, role, r.RemoteAddr)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := StatusPayload{
		Average:   s.registry.Average(),
		Senders:   s.registry.SenderCount(),
		Listeners: s.registry.ListenerCount(),
	}
	if s.sampler != nil {
		st, err := s.sampler.Sample(r.Context())
		if err != nil {
			log.Printf("status: process sample failed: %v", err)
		} else {
			status.Process = &st
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves h until ctx is cancelled, then shuts down
// gracefully. Open websocket streams are hijacked connections and are not
// waited for.
func (s *Server) ListenAndServe(ctx context.Context, h http.Handler) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.config.TLSEnabled() {
			log.Printf("Server listening on %s (tls)", srv.Addr)
			errCh <- srv.ListenAndServeTLS(s.config.Server.TLSCert, s.config.Server.TLSKey)
			return
		}
		log.Printf("Server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
