package statestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

func TestMemory_StreamSaveGetRoundTrip(t *testing.T) {
	store := statestore.NewMemory()
	ctx := context.Background()

	rec := statestore.StreamRecord{StreamID: "s1", URI: "rtsp://cam", State: statestore.StreamPending}
	require.NoError(t, store.SaveStream(ctx, rec))

	got, err := store.GetStream(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, statestore.StreamPending, got.State)
}

func TestMemory_GetStreamMissingReturnsNilNoError(t *testing.T) {
	store := statestore.NewMemory()
	got, err := store.GetStream(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_UpdateStreamStateRequiresExistingRow(t *testing.T) {
	store := statestore.NewMemory()
	err := store.UpdateStreamState(context.Background(), "missing", statestore.StreamError, nil)
	assert.Error(t, err)
}

func TestMemory_ListStreamsFiltersByNode(t *testing.T) {
	store := statestore.NewMemory()
	ctx := context.Background()

	nodeA := "node-a"
	nodeB := "node-b"
	require.NoError(t, store.SaveStream(ctx, statestore.StreamRecord{StreamID: "s1", NodeID: &nodeA}))
	require.NoError(t, store.SaveStream(ctx, statestore.StreamRecord{StreamID: "s2", NodeID: &nodeB}))

	got, err := store.ListStreams(ctx, "node-a")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].StreamID)
}

func TestMemory_AiTaskStatsAccumulate(t *testing.T) {
	store := statestore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveAiTask(ctx, statestore.AiTaskRecord{TaskID: "t1", State: statestore.AiTaskProcessing}))
	require.NoError(t, store.UpdateAiTaskStats(ctx, "t1", 10, 2, 100))
	require.NoError(t, store.UpdateAiTaskStats(ctx, "t1", 5, 1, 150))

	got, err := store.GetAiTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), got.FramesProcessed)
	assert.Equal(t, int64(3), got.DetectionsMade)
	assert.Equal(t, int64(150), got.LastProcessedFrame)
}

func TestParseStreamState_UnknownCoercesToError(t *testing.T) {
	assert.Equal(t, statestore.StreamError, statestore.ParseStreamState("bogus"))
	assert.Equal(t, statestore.StreamRunning, statestore.ParseStreamState("running"))
}

func TestStreamRecord_Orphaned(t *testing.T) {
	leaseID := "lease-1"
	orphan := statestore.StreamRecord{LeaseID: &leaseID, State: statestore.StreamStopped}
	assert.True(t, orphan.Orphaned())

	healthy := statestore.StreamRecord{LeaseID: &leaseID, State: statestore.StreamRunning}
	assert.False(t, healthy.Orphaned())

	noLease := statestore.StreamRecord{State: statestore.StreamStopped}
	assert.False(t, noLease.Orphaned())
}
