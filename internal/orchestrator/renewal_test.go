package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/orchestrator"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

// renewalTestNotifier records every event for assertions.
type renewalTestNotifier struct {
	events chan string
}

func (n *renewalTestNotifier) Notify(kind leasestore.Kind, resourceID, event string) {
	select {
	case n.events <- event:
	default:
	}
}

func TestStreamOrchestrator_RenewalKeepsLeaseAliveAcrossTTL(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(5, 120) // 5s floor keeps the renewal ticker fast in tests
	w := &MockStreamWorker{}
	notifier := &renewalTestNotifier{events: make(chan string, 8)}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", notifier)

	outcome, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{
		StreamID: "s1", URI: "rtsp://cam", LeaseTTLSecs: 7,
	})
	require.NoError(t, err)
	require.True(t, outcome.Accepted)

	select {
	case event := <-notifier.events:
		assert.Equal(t, "started", event)
	case <-time.After(time.Second):
		t.Fatal("expected a started notification")
	}

	// The first renewal runs on the 5s floor, before the 7s TTL runs out.
	// The lease must still be live (not reclaimable by another node) past
	// its original 7s TTL, proving the renewal loop is running.
	time.Sleep(8 * time.Second)

	resp, err := leases.Acquire(context.Background(), leasestore.AcquireRequest{
		ResourceID: "s1", HolderID: "node-b", Kind: leasestore.KindStream, TTLSecs: 5,
	})
	require.NoError(t, err)
	assert.False(t, resp.Granted, "lease should still be held by node-a thanks to renewal")
}

// After N=3 consecutive renewal failures the engine must dispatch
// worker.stop best-effort (spec.md §4.4 point 5, scenario S5), in addition
// to marking the resource Error. Forcing the lease out from under the
// renewal loop (by releasing it directly) makes every subsequent Renew
// call fail, driving the loop to declare loss.
func TestStreamOrchestrator_RenewalLossStopsWorker(t *testing.T) {
	states := statestore.NewMemory()
	leases := leasestore.NewMemory(5, 120)
	w := &MockStreamWorker{}
	notifier := &renewalTestNotifier{events: make(chan string, 8)}

	o := orchestrator.NewStreamOrchestrator(states, leases, w, "node-a", notifier)

	outcome, err := o.StartStream(context.Background(), orchestrator.StartStreamRequest{
		StreamID: "s1", URI: "rtsp://cam", LeaseTTLSecs: 5,
	})
	require.NoError(t, err)
	require.True(t, outcome.Accepted)

	select {
	case <-notifier.events: // drain "started"
	case <-time.After(time.Second):
		t.Fatal("expected a started notification")
	}

	_, err = leases.Release(context.Background(), leasestore.ReleaseRequest{LeaseID: outcome.LeaseID})
	require.NoError(t, err)

	// Renewal interval for a 5s TTL floors at 5s; 3 consecutive failures
	// takes ~15s to observe.
	select {
	case event := <-notifier.events:
		assert.Equal(t, "renewal_lost", event)
	case <-time.After(20 * time.Second):
		t.Fatal("expected a renewal_lost notification")
	}

	assert.Contains(t, w.Stopped, "s1", "worker.stop must be dispatched best-effort on renewal loss")

	rec, err := states.GetStream(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, statestore.StreamError, rec.State)
}
