package orchestrator

import (
	"context"
	"log"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/metrics"
	"github.com/technosupport/vms-coordinator/internal/statestore"
)

// Bootstrap runs the idempotent startup/reconciliation procedure from
// spec.md §4.5: list every record owned by node_id, renew the lease of
// each one whose state is still active (other than Stopping), and
// reconcile any record whose lease_id is set but whose state is not active
// (orphaned — the node crashed between acquiring a lease and finishing the
// transition, or a lease expired mid-flight and nothing reclaimed the state
// row), or which was caught mid-Stopping with its lease still set. Most
// orphans demote to Error; one caught mid-Stopping has its lease released
// and finishes as Stopped instead, since there is no worker ownership left
// to contest. It is safe
// to call repeatedly — reconciling an already-consistent node is a no-op.
type Bootstrap struct {
	states   statestore.Store
	leases   leasestore.Store
	holderID string
	streams  *StreamOrchestrator
	recs     *RecordingOrchestrator
	aiTasks  *AiTaskOrchestrator
}

func NewBootstrap(states statestore.Store, leases leasestore.Store, holderID string, streams *StreamOrchestrator, recs *RecordingOrchestrator, aiTasks *AiTaskOrchestrator) *Bootstrap {
	return &Bootstrap{states: states, leases: leases, holderID: holderID, streams: streams, recs: recs, aiTasks: aiTasks}
}

// Result summarizes what reconciliation did, for the operator-triggerable
// HTTP endpoint (SPEC_FULL.md §4.5 expansion) and for startup logging.
type Result struct {
	StreamsRenewed     int `json:"streams_renewed"`
	StreamsOrphaned    int `json:"streams_orphaned"`
	RecordingsRenewed  int `json:"recordings_renewed"`
	RecordingsOrphaned int `json:"recordings_orphaned"`
	AiTasksRenewed     int `json:"ai_tasks_renewed"`
	AiTasksOrphaned    int `json:"ai_tasks_orphaned"`
}

func (b *Bootstrap) Run(ctx context.Context) (Result, error) {
	var result Result

	streams, err := b.states.ListStreams(ctx, b.holderID)
	if err != nil {
		return result, DependencyUnavailable("failed to list streams for bootstrap", err)
	}
	for _, rec := range streams {
		if rec.Orphaned() || (rec.State == statestore.StreamStopping && rec.LeaseID != nil) {
			b.demoteStream(ctx, rec)
			result.StreamsOrphaned++
			continue
		}
		if rec.State.Active() && rec.LeaseID != nil {
			if b.renewLease(ctx, *rec.LeaseID, leasestore.KindStream) {
				leaseID := *rec.LeaseID
				b.streams.core.startRenewal(rec.StreamID, leaseID, leasestore.DefaultTTLSeconds, func(ctx context.Context) error {
					return b.streams.w.StopStream(ctx, rec.StreamID)
				})
				result.StreamsRenewed++
			} else {
				b.demoteRenewFailedStream(ctx, rec)
				result.StreamsOrphaned++
			}
		}
	}

	recordings, err := b.states.ListRecordings(ctx, b.holderID)
	if err != nil {
		return result, DependencyUnavailable("failed to list recordings for bootstrap", err)
	}
	for _, rec := range recordings {
		if rec.Orphaned() || (rec.State == statestore.RecordingStopping && rec.LeaseID != nil) {
			b.demoteRecording(ctx, rec)
			result.RecordingsOrphaned++
			continue
		}
		if rec.State.Active() && rec.LeaseID != nil {
			if b.renewLease(ctx, *rec.LeaseID, leasestore.KindRecorder) {
				leaseID := *rec.LeaseID
				b.recs.core.startRenewal(rec.RecordingID, leaseID, leasestore.DefaultTTLSeconds, func(ctx context.Context) error {
					return b.recs.w.StopRecording(ctx, rec.RecordingID)
				})
				result.RecordingsRenewed++
			} else {
				b.demoteRenewFailedRecording(ctx, rec)
				result.RecordingsOrphaned++
			}
		}
	}

	aiTasks, err := b.states.ListAiTasks(ctx, b.holderID)
	if err != nil {
		return result, DependencyUnavailable("failed to list ai tasks for bootstrap", err)
	}
	for _, rec := range aiTasks {
		if rec.Orphaned() || (rec.State == statestore.AiTaskStopping && rec.LeaseID != nil) {
			b.demoteAiTask(ctx, rec)
			result.AiTasksOrphaned++
			continue
		}
		if rec.State.Active() && rec.LeaseID != nil {
			if b.renewLease(ctx, *rec.LeaseID, leasestore.KindAi) {
				leaseID := *rec.LeaseID
				b.aiTasks.core.startRenewal(rec.TaskID, leaseID, leasestore.DefaultTTLSeconds, func(ctx context.Context) error {
					return b.aiTasks.w.StopAiTask(ctx, rec.TaskID)
				})
				result.AiTasksRenewed++
			} else {
				b.demoteRenewFailedAiTask(ctx, rec)
				result.AiTasksOrphaned++
			}
		}
	}

	log.Printf("bootstrap: node=%s streams(renewed=%d orphaned=%d) recordings(renewed=%d orphaned=%d) ai_tasks(renewed=%d orphaned=%d)",
		b.holderID, result.StreamsRenewed, result.StreamsOrphaned,
		result.RecordingsRenewed, result.RecordingsOrphaned, result.AiTasksRenewed, result.AiTasksOrphaned)

	return result, nil
}

func (b *Bootstrap) renewLease(ctx context.Context, leaseID string, kind leasestore.Kind) bool {
	resp, err := b.leases.Renew(ctx, leasestore.RenewRequest{LeaseID: leaseID, TTLSecs: leasestore.DefaultTTLSeconds})
	if err != nil {
		log.Printf("bootstrap: renew failed for lease %s (%s): %v", leaseID, kind, err)
		return false
	}
	return resp.Renewed
}

// demoteRenewFailedStream handles the "active but renew failed" orphan
// (spec.md §4.5 step 2, first bullet): promote to Error, persist, and do
// not touch the worker — bootstrap never had ownership confirmed by a
// live lease, so there is nothing to stop.
func (b *Bootstrap) demoteRenewFailedStream(ctx context.Context, rec statestore.StreamRecord) {
	msg := "orphaned at bootstrap: lease could not be renewed"
	if err := b.states.UpdateStreamState(ctx, rec.StreamID, statestore.StreamError, &msg); err != nil {
		log.Printf("bootstrap: failed to demote stream %s: %v", rec.StreamID, err)
	}
	metrics.BootstrapOrphansDemotedTotal.WithLabelValues(string(leasestore.KindStream)).Inc()
}

func (b *Bootstrap) demoteRenewFailedRecording(ctx context.Context, rec statestore.RecordingRecord) {
	msg := "orphaned at bootstrap: lease could not be renewed"
	if err := b.states.UpdateRecordingState(ctx, rec.RecordingID, statestore.RecordingError, &msg); err != nil {
		log.Printf("bootstrap: failed to demote recording %s: %v", rec.RecordingID, err)
	}
	metrics.BootstrapOrphansDemotedTotal.WithLabelValues(string(leasestore.KindRecorder)).Inc()
}

func (b *Bootstrap) demoteRenewFailedAiTask(ctx context.Context, rec statestore.AiTaskRecord) {
	msg := "orphaned at bootstrap: lease could not be renewed"
	if err := b.states.UpdateAiTaskState(ctx, rec.TaskID, statestore.AiTaskError, &msg); err != nil {
		log.Printf("bootstrap: failed to demote ai task %s: %v", rec.TaskID, err)
	}
	metrics.BootstrapOrphansDemotedTotal.WithLabelValues(string(leasestore.KindAi)).Inc()
}

// demoteStream cleans up an orphan (a lease reference with no
// corresponding active state): release the dangling lease, ignoring the
// result — it may already be expired or held by nobody — and persist the
// record with lease_id/node_id cleared (spec.md §4.5). A record caught
// mid-Stopping lands on Stopped, not Error: the stop was never completed
// locally but we have no worker ownership to contest, so there is nothing
// actually wrong with the resource (spec.md scenario S6(c)); any other
// non-active state reflects a start that never finished and is demoted to
// Error.
func (b *Bootstrap) demoteStream(ctx context.Context, rec statestore.StreamRecord) {
	if rec.LeaseID != nil {
		if _, err := b.leases.Release(ctx, leasestore.ReleaseRequest{LeaseID: *rec.LeaseID}); err != nil {
			log.Printf("bootstrap: lease release failed for orphaned stream %s: %v", rec.StreamID, err)
		}
	}
	if rec.State == statestore.StreamStopping {
		rec.State = statestore.StreamStopped
		rec.LastError = nil
	} else {
		msg := "orphaned at bootstrap: lease reference with inactive state"
		rec.State = statestore.StreamError
		rec.LastError = &msg
	}
	rec.LeaseID = nil
	rec.NodeID = nil
	if err := b.states.SaveStream(ctx, rec); err != nil {
		log.Printf("bootstrap: failed to demote stream %s: %v", rec.StreamID, err)
	}
	metrics.BootstrapOrphansDemotedTotal.WithLabelValues(string(leasestore.KindStream)).Inc()
}

func (b *Bootstrap) demoteRecording(ctx context.Context, rec statestore.RecordingRecord) {
	if rec.LeaseID != nil {
		if _, err := b.leases.Release(ctx, leasestore.ReleaseRequest{LeaseID: *rec.LeaseID}); err != nil {
			log.Printf("bootstrap: lease release failed for orphaned recording %s: %v", rec.RecordingID, err)
		}
	}
	if rec.State == statestore.RecordingStopping {
		rec.State = statestore.RecordingStopped
		rec.LastError = nil
	} else {
		msg := "orphaned at bootstrap: lease reference with inactive state"
		rec.State = statestore.RecordingError
		rec.LastError = &msg
	}
	rec.LeaseID = nil
	rec.NodeID = nil
	if err := b.states.SaveRecording(ctx, rec); err != nil {
		log.Printf("bootstrap: failed to demote recording %s: %v", rec.RecordingID, err)
	}
	metrics.BootstrapOrphansDemotedTotal.WithLabelValues(string(leasestore.KindRecorder)).Inc()
}

func (b *Bootstrap) demoteAiTask(ctx context.Context, rec statestore.AiTaskRecord) {
	if rec.LeaseID != nil {
		if _, err := b.leases.Release(ctx, leasestore.ReleaseRequest{LeaseID: *rec.LeaseID}); err != nil {
			log.Printf("bootstrap: lease release failed for orphaned ai task %s: %v", rec.TaskID, err)
		}
	}
	if rec.State == statestore.AiTaskStopping {
		rec.State = statestore.AiTaskStopped
		rec.LastError = nil
	} else {
		msg := "orphaned at bootstrap: lease reference with inactive state"
		rec.State = statestore.AiTaskError
		rec.LastError = &msg
	}
	rec.LeaseID = nil
	rec.NodeID = nil
	if err := b.states.SaveAiTask(ctx, rec); err != nil {
		log.Printf("bootstrap: failed to demote ai task %s: %v", rec.TaskID, err)
	}
	metrics.BootstrapOrphansDemotedTotal.WithLabelValues(string(leasestore.KindAi)).Inc()
}
