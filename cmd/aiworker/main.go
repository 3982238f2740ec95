// Command aiworker is a reference AiWorker binary (spec.md §6.2): it
// accepts start/stop calls over HTTP and tracks active AI task ids in
// memory, without performing any real frame sampling or inference — AI
// plugin internals are out of scope (spec.md §1). It exists to exercise
// the Gateway Orchestrator's worker-dispatch path end-to-end.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/technosupport/vms-coordinator/internal/worker"
)

func main() {
	addr := os.Getenv("VMS_AI_WORKER_ADDR")
	if addr == "" {
		addr = ":9103"
	}

	stub := worker.NewStubServer()
	log.Printf("aiworker: listening on %s", addr)
	if err := http.ListenAndServe(addr, stub.Router()); err != nil {
		log.Fatalf("aiworker: server error: %v", err)
	}
}
