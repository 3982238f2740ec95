package statestore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store used by orchestrator/gateway unit tests and
// by single-node deployments that don't need cross-node survivability.
type Memory struct {
	mu         sync.RWMutex
	streams    map[string]StreamRecord
	recordings map[string]RecordingRecord
	aiTasks    map[string]AiTaskRecord
}

func NewMemory() *Memory {
	return &Memory{
		streams:    make(map[string]StreamRecord),
		recordings: make(map[string]RecordingRecord),
		aiTasks:    make(map[string]AiTaskRecord),
	}
}

func (m *Memory) SaveStream(_ context.Context, rec StreamRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[rec.StreamID] = rec
	return nil
}

func (m *Memory) GetStream(_ context.Context, streamID string) (*StreamRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.streams[streamID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (m *Memory) ListStreams(_ context.Context, nodeID string) ([]StreamRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StreamRecord
	for _, rec := range m.streams {
		if nodeID != "" && (rec.NodeID == nil || *rec.NodeID != nodeID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) DeleteStream(_ context.Context, streamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, streamID)
	return nil
}

func (m *Memory) UpdateStreamState(_ context.Context, streamID string, state StreamState, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.streams[streamID]
	if !ok {
		return fmt.Errorf("statestore: stream %s not found", streamID)
	}
	rec.State = state
	rec.LastError = lastError
	m.streams[streamID] = rec
	return nil
}

func (m *Memory) SaveRecording(_ context.Context, rec RecordingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[rec.RecordingID] = rec
	return nil
}

func (m *Memory) GetRecording(_ context.Context, recordingID string) (*RecordingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recordings[recordingID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (m *Memory) ListRecordings(_ context.Context, nodeID string) ([]RecordingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordingRecord
	for _, rec := range m.recordings {
		if nodeID != "" && (rec.NodeID == nil || *rec.NodeID != nodeID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) DeleteRecording(_ context.Context, recordingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recordings, recordingID)
	return nil
}

func (m *Memory) UpdateRecordingState(_ context.Context, recordingID string, state RecordingState, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[recordingID]
	if !ok {
		return fmt.Errorf("statestore: recording %s not found", recordingID)
	}
	rec.State = state
	rec.LastError = lastError
	m.recordings[recordingID] = rec
	return nil
}

func (m *Memory) SaveAiTask(_ context.Context, rec AiTaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aiTasks[rec.TaskID] = rec
	return nil
}

func (m *Memory) GetAiTask(_ context.Context, taskID string) (*AiTaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.aiTasks[taskID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (m *Memory) ListAiTasks(_ context.Context, nodeID string) ([]AiTaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AiTaskRecord
	for _, rec := range m.aiTasks {
		if nodeID != "" && (rec.NodeID == nil || *rec.NodeID != nodeID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) DeleteAiTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.aiTasks, taskID)
	return nil
}

func (m *Memory) UpdateAiTaskState(_ context.Context, taskID string, state AiTaskState, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.aiTasks[taskID]
	if !ok {
		return fmt.Errorf("statestore: ai task %s not found", taskID)
	}
	rec.State = state
	rec.LastError = lastError
	m.aiTasks[taskID] = rec
	return nil
}

func (m *Memory) UpdateAiTaskStats(_ context.Context, taskID string, framesDelta, detectionsDelta int64, lastProcessedFrame int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.aiTasks[taskID]
	if !ok {
		return fmt.Errorf("statestore: ai task %s not found", taskID)
	}
	rec.FramesProcessed += framesDelta
	rec.DetectionsMade += detectionsDelta
	rec.LastProcessedFrame = lastProcessedFrame
	m.aiTasks[taskID] = rec
	return nil
}

func (m *Memory) HealthCheck(_ context.Context) error {
	return nil
}
