// Package gateway exposes the Gateway Orchestrator's own HTTP surface
// (spec.md §4.3): start/stop for streams, recordings, and AI tasks, plus
// the bootstrap-reconciliation trigger and the AI worker's frame-stat
// callback. It follows the same chi router construction as
// internal/coordinator, since both are thin HTTP shells around a
// request/reply core.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/technosupport/vms-coordinator/internal/dedup"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
)

type Server struct {
	streams    *orchestrator.StreamOrchestrator
	recordings *orchestrator.RecordingOrchestrator
	aiTasks    *orchestrator.AiTaskOrchestrator
	bootstrap  *orchestrator.Bootstrap
	frameDedup *dedup.FrameDedup

	httpServer *http.Server
}

type Config struct {
	Addr           string
	RequestTimeout time.Duration
	Streams        *orchestrator.StreamOrchestrator
	Recordings     *orchestrator.RecordingOrchestrator
	AiTasks        *orchestrator.AiTaskOrchestrator
	Bootstrap      *orchestrator.Bootstrap
}

func NewServer(cfg Config) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		streams:    cfg.Streams,
		recordings: cfg.Recordings,
		aiTasks:    cfg.AiTasks,
		bootstrap:  cfg.Bootstrap,
		frameDedup: dedup.NewFrameDedup(4096),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/streams/start", s.handleStartStream)
	r.Post("/v1/streams/{id}/stop", s.handleStopStream)

	r.Post("/v1/recordings/start", s.handleStartRecording)
	r.Post("/v1/recordings/{id}/stop", s.handleStopRecording)

	r.Post("/v1/ai-tasks/start", s.handleStartAiTask)
	r.Post("/v1/ai-tasks/{id}/stop", s.handleStopAiTask)
	r.Post("/v1/ai-tasks/{id}/stats", s.handleAiTaskStats)

	r.Post("/v1/bootstrap", s.handleBootstrap)

	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
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
