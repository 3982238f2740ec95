package statestore

import "context"

// StreamStore, RecordingStore, and AiTaskStore are the per-kind halves of
// the StateStore contract (spec.md §4.2). They are kept as separate small
// interfaces rather than one God interface so a test double only needs to
// implement the kind it exercises, and so orchestrator.Orchestrator[K] can
// bind exactly the methods its K needs.
type StreamStore interface {
	SaveStream(ctx context.Context, rec StreamRecord) error
	GetStream(ctx context.Context, streamID string) (*StreamRecord, error)
	ListStreams(ctx context.Context, nodeID string) ([]StreamRecord, error)
	DeleteStream(ctx context.Context, streamID string) error
	UpdateStreamState(ctx context.Context, streamID string, state StreamState, lastError *string) error
}

type RecordingStore interface {
	SaveRecording(ctx context.Context, rec RecordingRecord) error
	GetRecording(ctx context.Context, recordingID string) (*RecordingRecord, error)
	ListRecordings(ctx context.Context, nodeID string) ([]RecordingRecord, error)
	DeleteRecording(ctx context.Context, recordingID string) error
	UpdateRecordingState(ctx context.Context, recordingID string, state RecordingState, lastError *string) error
}

type AiTaskStore interface {
	SaveAiTask(ctx context.Context, rec AiTaskRecord) error
	GetAiTask(ctx context.Context, taskID string) (*AiTaskRecord, error)
	ListAiTasks(ctx context.Context, nodeID string) ([]AiTaskRecord, error)
	DeleteAiTask(ctx context.Context, taskID string) error
	UpdateAiTaskState(ctx context.Context, taskID string, state AiTaskState, lastError *string) error
	UpdateAiTaskStats(ctx context.Context, taskID string, framesDelta, detectionsDelta int64, lastProcessedFrame int64) error
}

// Store is the full StateStore surface, implemented by both the Postgres
// binding and the in-memory test double.
type Store interface {
	StreamStore
	RecordingStore
	AiTaskStore
	HealthCheck(ctx context.Context) error
}
