package coordinator

import (
	"context"
	"time"

	"github.com/technosupport/vms-coordinator/internal/audit"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
)

// AuditNotifier durably records every lease lifecycle observation through
// audit.Service, giving operators a DB-backed (spool-on-failure) history
// independent of the Hub's in-memory fan-out and the NATSNotifier's
// best-effort pub/sub.
type AuditNotifier struct {
	service *audit.Service
	nodeID  string
}

func NewAuditNotifier(service *audit.Service, nodeID string) *AuditNotifier {
	return &AuditNotifier{service: service, nodeID: nodeID}
}

func (n *AuditNotifier) Notify(kind leasestore.Kind, resourceID, event string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = n.service.WriteEvent(ctx, audit.Event{
		NodeID:     n.nodeID,
		Kind:       string(kind),
		ResourceID: resourceID,
		Action:     "lease_" + event,
		CreatedAt:  time.Now(),
	})
}
