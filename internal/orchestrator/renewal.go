package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/technosupport/vms-coordinator/internal/leasestore"
	"github.com/technosupport/vms-coordinator/internal/metrics"
)

// consecutiveFailureThreshold is N from spec.md §4.4: after this many
// consecutive renewal failures in a row, the engine declares "renewal
// loss" for the resource rather than continuing to retry indefinitely.
const consecutiveFailureThreshold = 3

// renewalHandle is an opaque, cancellable task keyed by resource id inside
// the orchestrator's renewals map. It holds no reference back to the
// Orchestrator — only a quit channel — per spec.md §9's cyclic-ownership
// note: the orchestrator owns the task, the task never owns the
// orchestrator.
type renewalHandle struct {
	quit chan struct{}
}

// startRenewal launches one goroutine per resource that renews its lease
// on a ticker at renewal_interval = max(ttl/3, 5s). Cancellation is
// one-way: the orchestrator closes quit and does not wait for the
// goroutine to acknowledge, matching spec.md §4.4's cancellation model.
func (o *Orchestrator[T]) startRenewal(resourceID, leaseID string, ttlSecs int64, stopWorker func(ctx context.Context) error) {
	o.mu.Lock()
	if existing, ok := o.renewals[resourceID]; ok {
		close(existing.quit)
	}
	handle := &renewalHandle{quit: make(chan struct{})}
	o.renewals[resourceID] = handle
	o.mu.Unlock()
	metrics.ActiveRenewals.WithLabelValues(string(o.caps.Kind)).Set(float64(o.renewalCount()))

	interval := time.Duration(ttlSecs/3) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}

	go o.runRenewal(resourceID, leaseID, ttlSecs, interval, handle, stopWorker)
}

func (o *Orchestrator[T]) runRenewal(resourceID, leaseID string, ttlSecs int64, interval time.Duration, handle *renewalHandle, stopWorker func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-handle.quit:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			resp, err := o.leases.Renew(ctx, leasestore.RenewRequest{LeaseID: leaseID, TTLSecs: ttlSecs})
			cancel()

			if err != nil || !resp.Renewed {
				failures++
				if err != nil {
					log.Printf("orchestrator: renewal transport failure for %s (attempt %d): %v", resourceID, failures, err)
				} else {
					log.Printf("orchestrator: renewal denied for %s (attempt %d)", resourceID, failures)
				}
				if failures >= consecutiveFailureThreshold {
					metrics.RenewalLossTotal.WithLabelValues(string(o.caps.Kind)).Inc()
					o.onRenewalLost(resourceID, stopWorker)
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// onRenewalLost demotes the resource to Error, dispatches a best-effort
// worker.stop (spec.md §4.4 point 5), and drops its renewal handle. It runs
// with a detached context since the originating HTTP request (if any) that
// triggered the start is long gone by the time renewal loss is declared.
func (o *Orchestrator[T]) onRenewalLost(resourceID string, stopWorker func(ctx context.Context) error) {
	o.mu.Lock()
	delete(o.renewals, resourceID)
	count := len(o.renewals)
	o.mu.Unlock()
	metrics.ActiveRenewals.WithLabelValues(string(o.caps.Kind)).Set(float64(count))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if stopWorker != nil {
		if err := stopWorker(ctx); err != nil {
			log.Printf("orchestrator: best-effort worker stop failed for %s after renewal loss: %v", resourceID, err)
		}
	}

	msg := "renewal lost: lease could not be renewed"
	if err := o.caps.UpdateState(ctx, resourceID, "error", &msg); err != nil {
		log.Printf("orchestrator: failed to persist renewal-lost state for %s: %v", resourceID, err)
	}
	o.notifier.Notify(o.caps.Kind, resourceID, "renewal_lost")
}

// cancelRenewal stops the resource's renewal task, if any. Safe to call
// when no task is running.
func (o *Orchestrator[T]) cancelRenewal(resourceID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if handle, ok := o.renewals[resourceID]; ok {
		close(handle.quit)
		delete(o.renewals, resourceID)
		metrics.ActiveRenewals.WithLabelValues(string(o.caps.Kind)).Set(float64(len(o.renewals)))
	}
}

func (o *Orchestrator[T]) renewalCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.renewals)
}
