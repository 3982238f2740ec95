// Package statestore implements the Persistent State Store — the
// authoritative record of stream/recording/ai_task configuration and
// lifecycle state, independent of lease liveness (spec.md §4.2).
package statestore

import "log"

// Value is an opaque, never-core-interpreted configuration blob — AI
// plugin model_config, recording output descriptors, ai_task frame-capture
// settings. It round-trips through JSON without the orchestrator ever
// inspecting its shape, matching spec.md §9's "Dynamic config objects"
// note.
type Value map[string]any

// StreamState mirrors the original's stream state machine (pending ->
// starting -> running -> stopping -> stopped, or -> error from any state).
type StreamState string

const (
	StreamPending  StreamState = "pending"
	StreamStarting StreamState = "starting"
	StreamRunning  StreamState = "running"
	StreamStopping StreamState = "stopping"
	StreamStopped  StreamState = "stopped"
	StreamError    StreamState = "error"
)

// ParseStreamState coerces an unrecognized state string to Error rather
// than failing the read — an unknown value most often means a newer
// coordinator wrote a state this binary predates, and treating the
// resource as broken (demoting it to Error) is safer than either crashing
// the read path or silently trusting an unrecognized value as active.
func ParseStreamState(s string) StreamState {
	switch StreamState(s) {
	case StreamPending, StreamStarting, StreamRunning, StreamStopping, StreamStopped, StreamError:
		return StreamState(s)
	default:
		log.Printf("statestore: unknown stream state %q, defaulting to error", s)
		return StreamError
	}
}

func (s StreamState) Active() bool {
	return s == StreamPending || s == StreamStarting || s == StreamRunning || s == StreamStopping
}

type RecordingState string

const (
	RecordingPending   RecordingState = "pending"
	RecordingStarting  RecordingState = "starting"
	RecordingRecording RecordingState = "recording"
	RecordingPaused    RecordingState = "paused"
	RecordingStopping  RecordingState = "stopping"
	RecordingStopped   RecordingState = "stopped"
	RecordingError     RecordingState = "error"
)

func ParseRecordingState(s string) RecordingState {
	switch RecordingState(s) {
	case RecordingPending, RecordingStarting, RecordingRecording, RecordingPaused, RecordingStopping, RecordingStopped, RecordingError:
		return RecordingState(s)
	default:
		log.Printf("statestore: unknown recording state %q, defaulting to error", s)
		return RecordingError
	}
}

func (s RecordingState) Active() bool {
	return s == RecordingPending || s == RecordingStarting || s == RecordingRecording || s == RecordingPaused || s == RecordingStopping
}

type AiTaskState string

const (
	AiTaskPending      AiTaskState = "pending"
	AiTaskInitializing AiTaskState = "initializing"
	AiTaskProcessing   AiTaskState = "processing"
	AiTaskPaused       AiTaskState = "paused"
	AiTaskStopping     AiTaskState = "stopping"
	AiTaskStopped      AiTaskState = "stopped"
	AiTaskError        AiTaskState = "error"
)

func ParseAiTaskState(s string) AiTaskState {
	switch AiTaskState(s) {
	case AiTaskPending, AiTaskInitializing, AiTaskProcessing, AiTaskPaused, AiTaskStopping, AiTaskStopped, AiTaskError:
		return AiTaskState(s)
	default:
		log.Printf("statestore: unknown ai task state %q, defaulting to error", s)
		return AiTaskError
	}
}

func (s AiTaskState) Active() bool {
	return s == AiTaskPending || s == AiTaskInitializing || s == AiTaskProcessing || s == AiTaskPaused || s == AiTaskStopping
}

type StreamRecord struct {
	StreamID  string      `json:"stream_id"`
	URI       string      `json:"uri"`
	Codec     string      `json:"codec"`
	Container string      `json:"container"`
	State     StreamState `json:"state"`
	NodeID    *string     `json:"node_id,omitempty"`
	LeaseID   *string     `json:"lease_id,omitempty"`
	OutputDir *string     `json:"output_dir,omitempty"`
	LastError *string     `json:"last_error,omitempty"`
	StartedAt *int64      `json:"started_at,omitempty"`
	StoppedAt *int64      `json:"stopped_at,omitempty"`
}

// Orphaned matches the original's orphan-detection predicate used during
// bootstrap: a lease reference with no corresponding active state.
func (s StreamRecord) Orphaned() bool {
	return s.LeaseID != nil && !s.State.Active()
}

type RecordingRecord struct {
	RecordingID string         `json:"recording_id"`
	StreamID    string         `json:"stream_id"`
	Format      string         `json:"format"`
	Output      Value          `json:"output,omitempty"`
	State       RecordingState `json:"state"`
	NodeID      *string        `json:"node_id,omitempty"`
	LeaseID     *string        `json:"lease_id,omitempty"`
	LastError   *string        `json:"last_error,omitempty"`
	StartedAt   *int64         `json:"started_at,omitempty"`
	StoppedAt   *int64         `json:"stopped_at,omitempty"`
}

func (r RecordingRecord) Orphaned() bool {
	return r.LeaseID != nil && !r.State.Active()
}

type AiTaskRecord struct {
	TaskID             string      `json:"task_id"`
	StreamID           string      `json:"stream_id"`
	ModelConfig        Value       `json:"model_config,omitempty"`
	State              AiTaskState `json:"state"`
	NodeID             *string     `json:"node_id,omitempty"`
	LeaseID            *string     `json:"lease_id,omitempty"`
	LastError          *string     `json:"last_error,omitempty"`
	FramesProcessed    int64       `json:"frames_processed"`
	DetectionsMade     int64       `json:"detections_made"`
	LastProcessedFrame int64       `json:"last_processed_frame"`
}

func (a AiTaskRecord) Orphaned() bool {
	return a.LeaseID != nil && !a.State.Active()
}
