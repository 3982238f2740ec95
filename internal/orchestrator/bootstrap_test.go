package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

func TestBootstrap_DemotesOrphanedStream(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	nodeID := "node-a"
	leaseID := "orphan-lease"

	require.NoError(t, states.SaveStream(context.Background(), statestore.StreamRecord{
		StreamID: "s1", NodeID: &nodeID, LeaseID: &leaseID, State: statestore.StreamError,
	}))

	streamOrch := orchestrator.NewStreamOrchestrator(states, leases, &MockStreamWorker{}, nodeID, nil)
	recOrch := orchestrator.NewRecordingOrchestrator(states, leases, &MockRecorderWorker{}, nodeID, nil)
	aiOrch := orchestrator.NewAiTaskOrchestrator(states, leases, &MockAiWorker{}, nodeID, nil)

	bootstrap := orchestrator.NewBootstrap(states, leases, nodeID, streamOrch, recOrch, aiOrch)
	result, err := bootstrap.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreamsOrphaned)
	assert.Equal(t, 0, result.StreamsRenewed)

	rec, err := states.GetStream(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, statestore.StreamError, rec.State)
	assert.Nil(t, rec.LeaseID, "orphan cleanup must clear lease_id, not just state")
	assert.Nil(t, rec.NodeID)
}

// A Stopping recording caught with a dangling lease at bootstrap has no
// worker ownership to contest, so it lands on Stopped rather than Error
// (spec.md scenario S6(c)).
func TestBootstrap_DemotesStoppingRecordingToStoppedNotError(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	nodeID := "node-a"
	leaseID := "orphan-lease"

	require.NoError(t, states.SaveRecording(context.Background(), statestore.RecordingRecord{
		RecordingID: "r1", NodeID: &nodeID, LeaseID: &leaseID, State: statestore.RecordingStopping,
	}))

	streamOrch := orchestrator.NewStreamOrchestrator(states, leases, &MockStreamWorker{}, nodeID, nil)
	recOrch := orchestrator.NewRecordingOrchestrator(states, leases, &MockRecorderWorker{}, nodeID, nil)
	aiOrch := orchestrator.NewAiTaskOrchestrator(states, leases, &MockAiWorker{}, nodeID, nil)

	bootstrap := orchestrator.NewBootstrap(states, leases, nodeID, streamOrch, recOrch, aiOrch)
	result, err := bootstrap.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordingsOrphaned)

	rec, err := states.GetRecording(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, statestore.RecordingStopped, rec.State)
	assert.Nil(t, rec.LeaseID)
}

func TestBootstrap_RenewsActiveStreamWithLiveLease(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(30, 120)
	nodeID := "node-a"

	acq, err := leases.Acquire(context.Background(), leasestore.AcquireRequest{
		ResourceID: "s1", HolderID: nodeID, Kind: leasestore.KindStream, TTLSecs: 30,
	})
	require.NoError(t, err)

	require.NoError(t, states.SaveStream(context.Background(), statestore.StreamRecord{
		StreamID: "s1", NodeID: &nodeID, LeaseID: &acq.Record.LeaseID, State: statestore.StreamRunning,
	}))

	streamOrch := orchestrator.NewStreamOrchestrator(states, leases, &MockStreamWorker{}, nodeID, nil)
	recOrch := orchestrator.NewRecordingOrchestrator(states, leases, &MockRecorderWorker{}, nodeID, nil)
	aiOrch := orchestrator.NewAiTaskOrchestrator(states, leases, &MockAiWorker{}, nodeID, nil)

	bootstrap := orchestrator.NewBootstrap(states, leases, nodeID, streamOrch, recOrch, aiOrch)
	result, err := bootstrap.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreamsRenewed)
	assert.Equal(t, 0, result.StreamsOrphaned)
}
