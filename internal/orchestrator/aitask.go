package orchestrator

import (
	"context"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/statestore"
	"github.com/technosupport/vms-coordinator/internal/worker"
)

type AiTaskOrchestrator struct {
	core   *Orchestrator[statestore.AiTaskRecord]
	states statestore.AiTaskStore
	w      worker.AiWorker
}

func NewAiTaskOrchestrator(states statestore.AiTaskStore, leases leasestore.Store, w worker.AiWorker, holderID string, notifier Notifier) *AiTaskOrchestrator {
	caps := Capabilities[statestore.AiTaskRecord]{
		Kind:   leasestore.KindAi,
		Get:    states.GetAiTask,
		Save:   states.SaveAiTask,
		Delete: states.DeleteAiTask,
		UpdateState: func(ctx context.Context, id string, state string, lastError *string) error {
			return states.UpdateAiTaskState(ctx, id, statestore.AiTaskState(state), lastError)
		},
		IsActive: func(rec statestore.AiTaskRecord) bool { return rec.State.Active() },
		LeaseID:  func(rec statestore.AiTaskRecord) *string { return rec.LeaseID },
	}
	return &AiTaskOrchestrator{core: New(caps, leases, holderID, notifier), states: states, w: w}
}

type StartAiTaskRequest struct {
	TaskID       string           `json:"task_id"`
	StreamID     string           `json:"stream_id"`
	ModelConfig  statestore.Value `json:"model_config,omitempty"`
	LeaseTTLSecs int64            `json:"lease_ttl_secs,omitempty"`
}

func (o *AiTaskOrchestrator) StartAiTask(ctx context.Context, req StartAiTaskRequest) (StartOutcome, error) {
	if req.TaskID == "" {
		return StartOutcome{}, BadRequest("ai task id required")
	}
	if req.StreamID == "" {
		return StartOutcome{}, BadRequest("source stream id required")
	}
	ttl := req.LeaseTTLSecs
	if ttl == 0 {
		ttl = leasestore.DefaultTTLSeconds
	}
	if ttl < leasestore.MinTTLSeconds {
		ttl = leasestore.MinTTLSeconds
	}

	existing, err := o.states.GetAiTask(ctx, req.TaskID)
	if err != nil {
		return StartOutcome{}, Internal("failed to read existing ai task state", err)
	}

	return o.core.Start(ctx, req.TaskID, ttl, existing,
		func(leaseID string) statestore.AiTaskRecord {
			lid, node := leaseID, o.core.holderID
			return statestore.AiTaskRecord{
				TaskID: req.TaskID, StreamID: req.StreamID, ModelConfig: req.ModelConfig,
				State: statestore.AiTaskInitializing, LeaseID: &lid, NodeID: &node,
			}
		},
		func(rec *statestore.AiTaskRecord) {
			rec.State = statestore.AiTaskProcessing
			rec.LastError = nil
		},
		func(rec *statestore.AiTaskRecord, message string) {
			rec.State = statestore.AiTaskError
			rec.LastError = &message
		},
		func(ctx context.Context) (bool, string, error) {
			return o.w.StartAiTask(ctx, req.TaskID, req.StreamID, req.ModelConfig)
		},
		func(ctx context.Context) error {
			return o.w.StopAiTask(ctx, req.TaskID)
		},
	)
}

func (o *AiTaskOrchestrator) StopAiTask(ctx context.Context, taskID string) (StopOutcome, error) {
	existing, err := o.states.GetAiTask(ctx, taskID)
	if err != nil {
		return StopOutcome{}, Internal("failed to read existing ai task state", err)
	}
	if existing == nil {
		return StopOutcome{}, NotFound("ai task not found: " + taskID)
	}

	return o.core.Stop(ctx, taskID, *existing, func(ctx context.Context) error {
		return o.w.StopAiTask(ctx, taskID)
	})
}

// UpdateStats applies a frame/detection counter delta reported by the AI
// worker exactly as given; it does not deduplicate. The gateway's stats
// handler filters redelivered updates through a dedup.FrameDedup check
// before calling it, so a worker-side retry does not double count there.
func (o *AiTaskOrchestrator) UpdateStats(ctx context.Context, taskID string, framesDelta, detectionsDelta, lastProcessedFrame int64) error {
	return o.states.UpdateAiTaskStats(ctx, taskID, framesDelta, detectionsDelta, lastProcessedFrame)
}
