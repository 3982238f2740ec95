// Package coordinator implements the Coordinator Service's HTTP surface
// (spec.md §6.1): the Lease Coordinator and Persistent State Store exposed
// over HTTP+JSON for remote Gateway Orchestrator processes, following the
// teacher's cmd/hlsd chi router construction.
package coordinator

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/middleware"
	"github.com/technosupport/vms-coordinator/internal/nodeauth"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

type Server struct {
	leases   leasestore.Store
	states   statestore.Store
	auth     *nodeauth.Manager
	hub      *Hub
	notifier orchestrator.Notifier

	httpServer *http.Server
}

type Config struct {
	Addr           string
	RequestTimeout time.Duration
	Auth           *nodeauth.Manager
	Leases         leasestore.Store
	States         statestore.Store
	Notifier       orchestrator.Notifier
	RateLimiter    *middleware.RateLimitMiddleware
	Hub            *Hub
}

func NewServer(cfg Config) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = orchestrator.NoopNotifier{}
	}

	s := &Server{
		leases:   cfg.Leases,
		states:   cfg.States,
		auth:     cfg.Auth,
		hub:      hub,
		notifier: notifier,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/leases/stream", hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(s.requireNodeCredential)
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.GlobalLimiter)
		}
		r.Post("/v1/leases/acquire", s.handleAcquire)
		r.Post("/v1/leases/renew", s.handleRenew)
		r.Post("/v1/leases/release", s.handleRelease)
		r.Get("/v1/leases", s.handleListLeases)

		r.Get("/v1/streams", s.handleListStreams)
		r.Get("/v1/streams/{id}", s.handleGetStream)
		r.Put("/v1/streams/{id}", s.handleSaveStream)
		r.Delete("/v1/streams/{id}", s.handleDeleteStream)
		r.Patch("/v1/streams/{id}/state", s.handleUpdateStreamState)

		r.Get("/v1/recordings", s.handleListRecordings)
		r.Get("/v1/recordings/{id}", s.handleGetRecording)
		r.Put("/v1/recordings/{id}", s.handleSaveRecording)
		r.Delete("/v1/recordings/{id}", s.handleDeleteRecording)
		r.Patch("/v1/recordings/{id}/state", s.handleUpdateRecordingState)

		r.Get("/v1/ai-tasks", s.handleListAiTasks)
		r.Get("/v1/ai-tasks/{id}", s.handleGetAiTask)
		r.Put("/v1/ai-tasks/{id}", s.handleSaveAiTask)
		r.Delete("/v1/ai-tasks/{id}", s.handleDeleteAiTask)
		r.Patch("/v1/ai-tasks/{id}/state", s.handleUpdateAiTaskState)
		r.Post("/v1/ai-tasks/{id}/stats", s.handleUpdateAiTaskStats)
	})

	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

// Hub exposes the server's websocket fan-out so a caller can compose a
// HubNotifier into the orchestrator.Notifier it hands to the Gateway's
// orchestrators when the Gateway is co-located with this Coordinator.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.leases.HealthCheck(r.Context()); err != nil {
		http.Error(w, "lease store unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := s.states.HealthCheck(r.Context()); err != nil {
		http.Error(w, "state store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
