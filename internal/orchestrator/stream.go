package orchestrator

import (
	"context"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/statestore"
	"github.com/technosupport/vms-coordinator/internal/worker"
)

// StreamOrchestrator is the Orchestrator[T] instantiation for streams —
// the only kind-specific code is this file's thin wiring of
// Capabilities[statestore.StreamRecord] plus the StartStream/StopStream
// entry points a transport handler calls.
type StreamOrchestrator struct {
	core   *Orchestrator[statestore.StreamRecord]
	states statestore.StreamStore
	w      worker.StreamWorker
}

func NewStreamOrchestrator(states statestore.StreamStore, leases leasestore.Store, w worker.StreamWorker, holderID string, notifier Notifier) *StreamOrchestrator {
	caps := Capabilities[statestore.StreamRecord]{
		Kind:   leasestore.KindStream,
		Get:    states.GetStream,
		Save:   states.SaveStream,
		Delete: states.DeleteStream,
		UpdateState: func(ctx context.Context, id string, state string, lastError *string) error {
			return states.UpdateStreamState(ctx, id, statestore.StreamState(state), lastError)
		},
		IsActive: func(rec statestore.StreamRecord) bool { return rec.State.Active() },
		LeaseID:  func(rec statestore.StreamRecord) *string { return rec.LeaseID },
	}
	return &StreamOrchestrator{core: New(caps, leases, holderID, notifier), states: states, w: w}
}

type StartStreamRequest struct {
	StreamID     string `json:"stream_id"`
	URI          string `json:"uri"`
	Codec        string `json:"codec,omitempty"`
	Container    string `json:"container,omitempty"`
	LeaseTTLSecs int64  `json:"lease_ttl_secs,omitempty"`
}

func (o *StreamOrchestrator) StartStream(ctx context.Context, req StartStreamRequest) (StartOutcome, error) {
	if req.StreamID == "" {
		return StartOutcome{}, BadRequest("stream id required")
	}
	if req.URI == "" {
		return StartOutcome{}, BadRequest("stream uri required")
	}
	if req.Codec == "" {
		req.Codec = "h264"
	}
	if req.Container == "" {
		req.Container = "ts"
	}
	ttl := req.LeaseTTLSecs
	if ttl == 0 {
		ttl = leasestore.DefaultTTLSeconds
	}
	if ttl < leasestore.MinTTLSeconds {
		ttl = leasestore.MinTTLSeconds
	}

	existing, err := o.states.GetStream(ctx, req.StreamID)
	if err != nil {
		return StartOutcome{}, Internal("failed to read existing stream state", err)
	}

	return o.core.Start(ctx, req.StreamID, ttl, existing,
		func(leaseID string) statestore.StreamRecord {
			lid, node := leaseID, o.core.holderID
			return statestore.StreamRecord{
				StreamID: req.StreamID, URI: req.URI, Codec: req.Codec, Container: req.Container,
				State: statestore.StreamStarting, LeaseID: &lid, NodeID: &node,
			}
		},
		func(rec *statestore.StreamRecord) { rec.State = statestore.StreamRunning; rec.LastError = nil },
		func(rec *statestore.StreamRecord, message string) { rec.State = statestore.StreamError; rec.LastError = &message },
		func(ctx context.Context) (bool, string, error) {
			err := o.w.StartStream(ctx, req.StreamID, req.URI, req.Codec, req.Container)
			return err == nil, "", err
		},
		func(ctx context.Context) error {
			return o.w.StopStream(ctx, req.StreamID)
		},
	)
}

func (o *StreamOrchestrator) StopStream(ctx context.Context, streamID string) (StopOutcome, error) {
	existing, err := o.states.GetStream(ctx, streamID)
	if err != nil {
		return StopOutcome{}, Internal("failed to read existing stream state", err)
	}
	if existing == nil {
		return StopOutcome{}, NotFound("stream not found: " + streamID)
	}

	return o.core.Stop(ctx, streamID, *existing, func(ctx context.Context) error {
		return o.w.StopStream(ctx, streamID)
	})
}
