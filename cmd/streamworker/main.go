// Command streamworker is a reference StreamWorker binary (spec.md §6.2):
// it accepts start/stop calls over HTTP and tracks active stream ids in
// memory, without performing any real RTSP ingest or transcoding — media
// pipeline internals are out of scope (spec.md §1). It exists to exercise
// the Gateway Orchestrator's worker-dispatch path end-to-end.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/technosupport/vms-coordinator/internal/worker"
)

func main() {
	addr := os.Getenv("VMS_STREAM_WORKER_ADDR")
	if addr == "" {
		addr = ":9101"
	}

	stub := worker.NewStubServer()
	log.Printf("streamworker: listening on %s", addr)
	if err := http.ListenAndServe(addr, stub.Router()); err != nil {
		log.Fatalf("streamworker: server error: %v", err)
	}
}
