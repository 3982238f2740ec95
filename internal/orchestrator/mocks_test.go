package orchestrator_test

import (
	"context"

	"github.com/technosupport/vms-coordinator/internal/statestore"
)

type MockRecorderWorker struct {
	StartErr     error
	StartRefused bool
	StartMessage string
	StopErr      error
}

func (m *MockRecorderWorker) StartRecording(ctx context.Context, recordingID, streamID, format string, output statestore.Value) (bool, string, error) {
	if m.StartErr != nil {
		return false, "", m.StartErr
	}
	if m.StartRefused {
		return false, m.StartMessage, nil
	}
	return true, "", nil
}
func (m *MockRecorderWorker) StopRecording(ctx context.Context, recordingID string) error {
	return m.StopErr
}
func (m *MockRecorderWorker) HealthCheck(ctx context.Context) error { return nil }

type MockAiWorker struct {
	StartErr     error
	StartRefused bool
	StartMessage string
	StopErr      error
}

func (m *MockAiWorker) StartAiTask(ctx context.Context, taskID, streamID string, modelConfig statestore.Value) (bool, string, error) {
	if m.StartErr != nil {
		return false, "", m.StartErr
	}
	if m.StartRefused {
		return false, m.StartMessage, nil
	}
	return true, "", nil
}
func (m *MockAiWorker) StopAiTask(ctx context.Context, taskID string) error { return m.StopErr }
func (m *MockAiWorker) HealthCheck(ctx context.Context) error              { return nil }
