// Command recorderworker is a reference RecorderWorker binary (spec.md
// §6.2): it accepts start/stop calls over HTTP and tracks active
// recording ids in memory, without performing any real timestamped
// recording to disk — retention and recording pipeline internals are out
// of scope (spec.md §1). It exists to exercise the Gateway Orchestrator's
// worker-dispatch path end-to-end.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/technosupport/vms-coordinator/internal/worker"
)

func main() {
	addr := os.Getenv("VMS_RECORDER_WORKER_ADDR")
	if addr == "" {
		addr = ":9102"
	}

	stub := worker.NewStubServer()
	log.Printf("recorderworker: listening on %s", addr)
	if err := http.ListenAndServe(addr, stub.Router()); err != nil {
		log.Fatalf("recorderworker: server error: %v", err)
	}
}
