// Command gatewayd runs the Gateway Orchestrator: the start/stop state
// machines for streams, recordings, and AI tasks (spec.md §4.3), talking to
// a Coordinator over HTTP+JSON and dispatching to worker nodes over the
// narrow Stream/Recorder/AiWorker interfaces (spec.md §6.2). It runs
// Bootstrap reconciliation once at startup, matching spec.md §4.5.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/technosupport/vms-coordinator/internal/config"
	"github.com/technosupport/vms-coordinator/internal/coordinator"
	"github.com/technosupport/vms-coordinator/internal/gateway"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
	"github.com/technosupport/vms-coordinator/internal/platform/paths"
	"github.com/technosupport/vms-coordinator/internal/statestore"
	"github.com/technosupport/vms-coordinator/internal/worker"
)

func main() {
	configPath := paths.ResolveConfigPath(os.Getenv("VMS_CONFIG_PATH"))

	mgr, err := config.NewManager(configPath)
	if err != nil {
		log.Fatalf("gatewayd: failed to load config from %s: %v", configPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Watch(ctx)

	cfg := mgr.Current()
	if cfg.NodeID == "" {
		log.Fatalf("gatewayd: node_id is required")
	}

	coordinatorURL := os.Getenv("VMS_COORDINATOR_URL")
	if coordinatorURL == "" {
		coordinatorURL = "http://localhost:8443"
	}
	credential := os.Getenv("VMS_NODE_CREDENTIAL")

	leases := coordinator.NewClient(coordinatorURL, 10*time.Second, credential)
	states := statestore.NewMemory()

	streamWorkerURL := envOr("VMS_STREAM_WORKER_URL", "http://localhost:9101")
	recorderWorkerURL := envOr("VMS_RECORDER_WORKER_URL", "http://localhost:9102")
	aiWorkerURL := envOr("VMS_AI_WORKER_URL", "http://localhost:9103")

	streamWorker := worker.NewHTTPClient(streamWorkerURL, 10*time.Second)
	recorderWorker := worker.NewHTTPClient(recorderWorkerURL, 10*time.Second)
	aiWorker := worker.NewHTTPClient(aiWorkerURL, 10*time.Second)

	notifier := orchestrator.NoopNotifier{}

	streams := orchestrator.NewStreamOrchestrator(states, leases, streamWorker, cfg.NodeID, notifier)
	recordings := orchestrator.NewRecordingOrchestrator(states, leases, recorderWorker, cfg.NodeID, notifier)
	aiTasks := orchestrator.NewAiTaskOrchestrator(states, leases, aiWorker, cfg.NodeID, notifier)

	bootstrap := orchestrator.NewBootstrap(states, leases, cfg.NodeID, streams, recordings, aiTasks)
	if result, err := bootstrap.Run(ctx); err != nil {
		log.Printf("gatewayd: bootstrap reconciliation failed: %v", err)
	} else {
		log.Printf("gatewayd: bootstrap reconciliation complete: %+v", result)
	}

	addr := envOr("VMS_GATEWAY_ADDR", ":8444")
	srv := gateway.NewServer(gateway.Config{
		Addr:       addr,
		Streams:    streams,
		Recordings: recordings,
		AiTasks:    aiTasks,
		Bootstrap:  bootstrap,
	})

	go func() {
		log.Printf("gatewayd: listening on %s (node=%s)", addr, cfg.NodeID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gatewayd: server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("gatewayd: shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("gatewayd: shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
