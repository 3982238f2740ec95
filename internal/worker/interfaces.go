// Package worker defines the narrow capability interfaces the Gateway
// Orchestrator uses to dispatch to external collaborators (spec.md §6.2).
// Media pipeline, recording, and AI inference internals are out of scope —
// only start/stop/health_check with a bounded timeout are modeled here.
package worker

import (
	"context"

	"github.com/technosupport/vms-coordinator/internal/statestore"
)

// StreamWorker starts/stops stream ingest on a node. Implementations must
// respect ctx's deadline and return promptly on cancellation — the
// orchestrator holds a lease for the duration of the call and a stuck
// worker call stalls the renewal loop.
type StreamWorker interface {
	StartStream(ctx context.Context, streamID, uri, codec, container string) error
	StopStream(ctx context.Context, streamID string) error
	HealthCheck(ctx context.Context) error
}

// RecorderWorker and AiWorker, unlike StreamWorker, report their own
// accepted/message outcome on start (spec.md §6.2): a worker-side capacity
// or configuration refusal is a domain-level decision, not a transport
// fault, and must reach the caller as accepted=false rather than an error.
type RecorderWorker interface {
	StartRecording(ctx context.Context, recordingID, streamID, format string, output statestore.Value) (accepted bool, message string, err error)
	StopRecording(ctx context.Context, recordingID string) error
	HealthCheck(ctx context.Context) error
}

type AiWorker interface {
	StartAiTask(ctx context.Context, taskID, streamID string, modelConfig statestore.Value) (accepted bool, message string, err error)
	StopAiTask(ctx context.Context, taskID string) error
	HealthCheck(ctx context.Context) error
}
