package orchestrator

import (
	"context"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/statestore"
	"github.com/technosupport/vms-coordinator/internal/worker"
)

type RecordingOrchestrator struct {
	core   *Orchestrator[statestore.RecordingRecord]
	states statestore.RecordingStore
	w      worker.RecorderWorker
}

func NewRecordingOrchestrator(states statestore.RecordingStore, leases leasestore.Store, w worker.RecorderWorker, holderID string, notifier Notifier) *RecordingOrchestrator {
	caps := Capabilities[statestore.RecordingRecord]{
		Kind:   leasestore.KindRecorder,
		Get:    states.GetRecording,
		Save:   states.SaveRecording,
		Delete: states.DeleteRecording,
		UpdateState: func(ctx context.Context, id string, state string, lastError *string) error {
			return states.UpdateRecordingState(ctx, id, statestore.RecordingState(state), lastError)
		},
		IsActive: func(rec statestore.RecordingRecord) bool { return rec.State.Active() },
		LeaseID:  func(rec statestore.RecordingRecord) *string { return rec.LeaseID },
	}
	return &RecordingOrchestrator{core: New(caps, leases, holderID, notifier), states: states, w: w}
}

type StartRecordingRequest struct {
	RecordingID  string           `json:"recording_id"`
	StreamID     string           `json:"stream_id"`
	Format       string           `json:"format,omitempty"`
	Output       statestore.Value `json:"output,omitempty"`
	LeaseTTLSecs int64            `json:"lease_ttl_secs,omitempty"`
}

func (o *RecordingOrchestrator) StartRecording(ctx context.Context, req StartRecordingRequest) (StartOutcome, error) {
	if req.RecordingID == "" {
		return StartOutcome{}, BadRequest("recording id required")
	}
	if req.StreamID == "" {
		return StartOutcome{}, BadRequest("source stream id required")
	}
	if req.Format == "" {
		req.Format = "mp4"
	}
	ttl := req.LeaseTTLSecs
	if ttl == 0 {
		ttl = leasestore.DefaultTTLSeconds
	}
	if ttl < leasestore.MinTTLSeconds {
		ttl = leasestore.MinTTLSeconds
	}

	existing, err := o.states.GetRecording(ctx, req.RecordingID)
	if err != nil {
		return StartOutcome{}, Internal("failed to read existing recording state", err)
	}

	return o.core.Start(ctx, req.RecordingID, ttl, existing,
		func(leaseID string) statestore.RecordingRecord {
			lid, node := leaseID, o.core.holderID
			return statestore.RecordingRecord{
				RecordingID: req.RecordingID, StreamID: req.StreamID, Format: req.Format, Output: req.Output,
				State: statestore.RecordingStarting, LeaseID: &lid, NodeID: &node,
			}
		},
		func(rec *statestore.RecordingRecord) {
			rec.State = statestore.RecordingRecording
			rec.LastError = nil
		},
		func(rec *statestore.RecordingRecord, message string) {
			rec.State = statestore.RecordingError
			rec.LastError = &message
		},
		func(ctx context.Context) (bool, string, error) {
			return o.w.StartRecording(ctx, req.RecordingID, req.StreamID, req.Format, req.Output)
		},
		func(ctx context.Context) error {
			return o.w.StopRecording(ctx, req.RecordingID)
		},
	)
}

func (o *RecordingOrchestrator) StopRecording(ctx context.Context, recordingID string) (StopOutcome, error) {
	existing, err := o.states.GetRecording(ctx, recordingID)
	if err != nil {
		return StopOutcome{}, Internal("failed to read existing recording state", err)
	}
	if existing == nil {
		return StopOutcome{}, NotFound("recording not found: " + recordingID)
	}

	return o.core.Stop(ctx, recordingID, *existing, func(ctx context.Context) error {
		return o.w.StopRecording(ctx, recordingID)
	})
}
