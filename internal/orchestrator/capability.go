package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/metrics"
)

// Capabilities binds the per-kind operations a generic Orchestrator[T]
// needs: persistence (Get/Save/Delete/UpdateState) and the active-state
// predicate, matching spec.md §9's "generic orchestrator parameterized by
// a capability set" design note. T is the kind's record type
// (statestore.StreamRecord, RecordingRecord, AiTaskRecord); Capabilities
// never need to know T's fields beyond what these functions close over.
type Capabilities[T any] struct {
	Kind leasestore.Kind

	Get         func(ctx context.Context, id string) (*T, error)
	Save        func(ctx context.Context, rec T) error
	Delete      func(ctx context.Context, id string) error
	UpdateState func(ctx context.Context, id string, state string, lastError *string) error
	IsActive    func(rec T) bool
	LeaseID     func(rec T) *string
}

// Notifier receives best-effort lifecycle observations. Implementations
// (websocket fan-out, NATS publish) must never block the caller and must
// never return an error that aborts the orchestrator operation — per
// spec.md's non-goal of guaranteed delivery, a Notifier failure is logged
// and swallowed by the orchestrator, not surfaced to the caller.
type Notifier interface {
	Notify(kind leasestore.Kind, resourceID, event string)
}

// NoopNotifier discards every event.
type NoopNotifier struct{}

func (NoopNotifier) Notify(leasestore.Kind, string, string) {}

// MultiNotifier fans out to every wrapped Notifier. A panicking or slow
// Notifier is each binding's own responsibility to guard against; MultiNotifier
// itself just calls each in turn.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(kind leasestore.Kind, resourceID, event string) {
	for _, n := range m {
		n.Notify(kind, resourceID, event)
	}
}

// Orchestrator drives the transactional lease-acquire -> worker-dispatch ->
// state-persist -> renewal-loop sequence (spec.md §4.3) for one resource
// kind T. It owns the renewal engine for its kind: one task per resource,
// keyed by resource id, with no back-pointer from task to orchestrator
// (spec.md §9's cyclic-ownership note).
type Orchestrator[T any] struct {
	caps     Capabilities[T]
	leases   leasestore.Store
	notifier Notifier
	holderID string

	mu       sync.Mutex
	renewals map[string]*renewalHandle
}

func New[T any](caps Capabilities[T], leases leasestore.Store, holderID string, notifier Notifier) *Orchestrator[T] {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Orchestrator[T]{
		caps:     caps,
		leases:   leases,
		notifier: notifier,
		holderID: holderID,
		renewals: make(map[string]*renewalHandle),
	}
}

// StartOutcome mirrors spec.md §4.3's accepted/lease_id/message response
// shape, kind-agnostically.
type StartOutcome struct {
	Accepted bool   `json:"accepted"`
	LeaseID  string `json:"lease_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Start runs the full start sequence for resource id: idempotency check via
// existing T (skipped if existing == nil, i.e. caller already confirmed no
// active record), lease acquire, Starting-state persist, startWorker
// dispatch, Running-state persist, renewal loop start. On any failure after
// a successful acquire, it always either leaves a live Running record with
// an active renewal (success path) or releases the lease before returning
// (failure path) — the compensation invariant from spec.md §4.3.4.
func (o *Orchestrator[T]) Start(
	ctx context.Context,
	resourceID string,
	ttlSecs int64,
	existing *T,
	buildStarting func(leaseID string) T,
	setRunning func(rec *T),
	setError func(rec *T, message string),
	startWorker func(ctx context.Context) (accepted bool, message string, err error),
	stopWorker func(ctx context.Context) error,
) (StartOutcome, error) {
	if existing != nil && o.caps.IsActive(*existing) {
		leaseID := ""
		if lid := o.caps.LeaseID(*existing); lid != nil {
			leaseID = *lid
		}
		metrics.OrchestratorStartTotal.WithLabelValues(string(o.caps.Kind), "refused").Inc()
		return StartOutcome{Accepted: false, LeaseID: leaseID, Message: fmt.Sprintf("%s already active", o.caps.Kind)}, nil
	}

	acquireResp, err := o.leases.Acquire(ctx, leasestore.AcquireRequest{
		ResourceID: resourceID, HolderID: o.holderID, Kind: o.caps.Kind, TTLSecs: ttlSecs,
	})
	if err != nil {
		return StartOutcome{}, DependencyUnavailable("lease coordinator unreachable", err)
	}
	if !acquireResp.Granted {
		leaseID := ""
		if acquireResp.Record != nil {
			leaseID = acquireResp.Record.LeaseID
		}
		metrics.LeaseAcquireTotal.WithLabelValues(string(o.caps.Kind), "denied").Inc()
		metrics.OrchestratorStartTotal.WithLabelValues(string(o.caps.Kind), "refused").Inc()
		return StartOutcome{Accepted: false, LeaseID: leaseID, Message: "resource already leased"}, nil
	}
	metrics.LeaseAcquireTotal.WithLabelValues(string(o.caps.Kind), "granted").Inc()

	if acquireResp.Record == nil {
		// A granted response with no record is a protocol violation by the
		// coordinator, not a caller error (spec.md §4.3.1 step 3).
		return StartOutcome{}, Internal("lease coordinator granted with no record", nil)
	}
	record := *acquireResp.Record
	startingRec := buildStarting(record.LeaseID)
	if err := o.caps.Save(ctx, startingRec); err != nil {
		o.releaseBestEffort(ctx, record.LeaseID)
		return StartOutcome{}, Internal("failed to persist starting state", err)
	}

	accepted, workerMsg, err := startWorker(ctx)
	if err != nil {
		errMsg := err.Error()
		_ = o.caps.UpdateState(ctx, resourceID, "error", &errMsg)
		o.releaseBestEffort(ctx, record.LeaseID)
		o.notifier.Notify(o.caps.Kind, resourceID, "start_failed")
		metrics.OrchestratorStartTotal.WithLabelValues(string(o.caps.Kind), "worker_failed").Inc()
		return StartOutcome{}, WorkerFailed("worker start failed", err)
	}
	if !accepted {
		// Domain-level refusal (capacity, configuration reject), not a
		// transport fault: mark Error, release the lease, and surface the
		// worker's message without a 5xx status (spec.md §4.3.3).
		_ = o.caps.UpdateState(ctx, resourceID, "error", &workerMsg)
		o.releaseBestEffort(ctx, record.LeaseID)
		o.notifier.Notify(o.caps.Kind, resourceID, "start_refused")
		metrics.OrchestratorStartTotal.WithLabelValues(string(o.caps.Kind), "refused").Inc()
		return StartOutcome{Accepted: false, Message: workerMsg}, nil
	}

	runningRec := startingRec
	setRunning(&runningRec)
	if err := o.caps.Save(ctx, runningRec); err != nil {
		// The worker believes it is running but we failed to persist that.
		// We do NOT release the lease here: an orphaned live worker with no
		// lease would be worse than a lease whose state record lags by one
		// write. The renewal loop still starts so the lease itself survives;
		// bootstrap reconciliation will reconcile the state row on restart.
		log.Printf("orchestrator: failed to persist running state for %s: %v", resourceID, err)
	}

	o.startRenewal(resourceID, record.LeaseID, ttlSecs, stopWorker)
	o.notifier.Notify(o.caps.Kind, resourceID, "started")
	metrics.OrchestratorStartTotal.WithLabelValues(string(o.caps.Kind), "accepted").Inc()

	return StartOutcome{Accepted: true, LeaseID: record.LeaseID}, nil
}

// StopOutcome mirrors spec.md §4.3's stopped/message response shape.
type StopOutcome struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

// Stop cancels the renewal task before dispatching to the worker (so a
// slow worker call never races a renewal firing against a lease about to
// be released), then releases the lease and deletes the state record.
// A resource whose existing record carries no lease_id is cleaned up
// locally without a coordinator round trip.
func (o *Orchestrator[T]) Stop(
	ctx context.Context,
	resourceID string,
	existing T,
	stopWorker func(ctx context.Context) error,
) (StopOutcome, error) {
	o.cancelRenewal(resourceID)

	_ = o.caps.UpdateState(ctx, resourceID, "stopping", nil)

	if err := stopWorker(ctx); err != nil {
		msg := err.Error()
		_ = o.caps.UpdateState(ctx, resourceID, "error", &msg)
		metrics.OrchestratorStopTotal.WithLabelValues(string(o.caps.Kind), "worker_failed").Inc()
		return StopOutcome{}, WorkerFailed("worker stop failed", err)
	}

	leaseID := o.caps.LeaseID(existing)
	if leaseID == nil || *leaseID == "" {
		_ = o.caps.Delete(ctx, resourceID)
		o.notifier.Notify(o.caps.Kind, resourceID, "stopped")
		metrics.OrchestratorStopTotal.WithLabelValues(string(o.caps.Kind), "accepted").Inc()
		return StopOutcome{Stopped: true, Message: "resource had no active lease; removed local state"}, nil
	}

	releaseResp, err := o.leases.Release(ctx, leasestore.ReleaseRequest{LeaseID: *leaseID})
	if err != nil {
		return StopOutcome{}, DependencyUnavailable("lease coordinator unreachable", err)
	}
	metrics.LeaseReleaseTotal.WithLabelValues(string(o.caps.Kind)).Inc()

	if err := o.caps.Delete(ctx, resourceID); err != nil {
		log.Printf("orchestrator: failed to delete state for %s after stop: %v", resourceID, err)
	}
	o.notifier.Notify(o.caps.Kind, resourceID, "stopped")
	metrics.OrchestratorStopTotal.WithLabelValues(string(o.caps.Kind), "accepted").Inc()

	msg := ""
	if !releaseResp.Released {
		msg = "lease already released or expired"
	}
	return StopOutcome{Stopped: true, Message: msg}, nil
}

func (o *Orchestrator[T]) releaseBestEffort(ctx context.Context, leaseID string) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := o.leases.Release(releaseCtx, leasestore.ReleaseRequest{LeaseID: leaseID}); err != nil {
		log.Printf("orchestrator: compensating release failed for lease %s: %v", leaseID, err)
	}
	_ = ctx
}
