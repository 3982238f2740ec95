package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

// MockStreamWorker lets tests force worker start/stop outcomes.
type MockStreamWorker struct {
	StartErr error
	StopErr  error
	Started  []string
	Stopped  []string
}

func (m *MockStreamWorker) StartStream(ctx context.Context, streamID, uri, codec, container string) error {
	m.Started = append(m.Started, streamID)
	return m.StartErr
}
func (m *MockStreamWorker) StopStream(ctx context.Context, streamID string) error {
	m.Stopped = append(m.Stopped, streamID)
	return m.StopErr
}
func (m *MockStreamWorker) HealthCheck(ctx context.Context) error { return nil }

func TestStreamOrchestrator_StartAcceptsAndRuns(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	w := &MockStreamWorker{}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)

	outcome, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{
		StreamID: "s1", URI: "rtsp://cam", LeaseTTLSecs: 30,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.NotEmpty(t, outcome.LeaseID)
	assert.Equal(t, []string{"s1"}, w.Started)

	rec, err := states.GetStream(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, statestore.StreamRunning, rec.State)
}

func TestStreamOrchestrator_StartRefusedWhenAlreadyLeased(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	w := &MockStreamWorker{}

	_, err := leases.Acquire(context.Background(), leasestore.AcquireRequest{
		ResourceID: "s1", HolderID: "other-node", Kind: leasestore.KindStream, TTLSecs: 30,
	})
	require.NoError(t, err)

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)
	outcome, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{StreamID: "s1", URI: "rtsp://cam"})
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Empty(t, w.Started)
}

func TestStreamOrchestrator_StartCompensatesOnWorkerFailure(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	w := &MockStreamWorker{StartErr: errors.New("ingest refused")}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)
	_, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{StreamID: "s1", URI: "rtsp://cam"})
	require.Error(t, err)

	rec, err := states.GetStream(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, statestore.StreamError, rec.State)

	// lease must have been released, not leaked: another node can now acquire
	all, err := leases.List(context.Background(), leasestore.KindStream)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStreamOrchestrator_StopReleasesLeaseAndDeletesState(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	w := &MockStreamWorker{}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)
	_, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{StreamID: "s1", URI: "rtsp://cam"})
	require.NoError(t, err)

	outcome, err := o.StopStream(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, outcome.Stopped)

	rec, err := states.GetStream(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	all, err := leases.List(context.Background(), leasestore.KindStream)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStreamOrchestrator_StopUnknownStreamNotFound(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	w := &MockStreamWorker{}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)
	_, err := o.StopStream(context.Background(), "missing")
	require.Error(t, err)
}

// malformedAcquireStore always grants without a record, simulating a
// coordinator protocol violation (spec.md §4.3.1 step 3).
type malformedAcquireStore struct {
	leasestore.Store
}

func (malformedAcquireStore) Acquire(ctx context.Context, req leasestore.AcquireRequest) (leasestore.AcquireResponse, error) {
	return leasestore.AcquireResponse{Granted: true, Record: nil}, nil
}

func TestStreamOrchestrator_StartReturnsInternalErrorWhenGrantedWithNoRecord(t *testing.T) {
	states := statestore.NewMemory()
	leases := malformedAcquireStore{Store: leasestore.NewMemory(30, 120)}
	w := &MockStreamWorker{}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)
	_, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{StreamID: "s1", URI: "rtsp://cam"})
	require.Error(t, err)
	assert.Empty(t, w.Started, "worker must never be dispatched without a lease record")

	var orchErr *orchestrator.Error
	require.ErrorAs(t, err, &orchErr)
	assert.Equal(t, orchestrator.CodeInternal, orchErr.Code)
}

func TestStreamOrchestrator_StartValidatesRequiredFields(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	w := &MockStreamWorker{}
	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", nil)

	_, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{URI: "rtsp://cam"})
	assert.Error(t, err)

	_, err = o.StartStream(context.Background(), orchestrator.StartStreamRequest{StreamID: "s1"})
	assert.Error(t, err)
}
