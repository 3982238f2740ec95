package coordinator

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/technosupport/vms-coordinator/internal/leasestore"
)

// NATSNotifier publishes lease lifecycle events to a NATS subject as a
// second, independent orchestrator.Notifier alongside the websocket Hub.
// Unlike the Hub (in-process, consumed by this same server), this lets
// other processes in the deployment observe lease lifecycle transitions.
// Publication is best-effort: spec.md carries no guaranteed-delivery
// requirement for these events, so a publish failure is logged and
// swallowed rather than propagated to the orchestrator caller.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

func NewNATSNotifier(conn *nats.Conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = "vms.leases.events"
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

type natsLeaseEvent struct {
	Kind       string    `json:"kind"`
	ResourceID string    `json:"resource_id"`
	Event      string    `json:"event"`
	ObservedAt time.Time `json:"observed_at"`
}

func (n *NATSNotifier) Notify(kind leasestore.Kind, resourceID, event string) {
	data, err := json.Marshal(natsLeaseEvent{
		Kind:       string(kind),
		ResourceID: resourceID,
		Event:      event,
		ObservedAt: time.Now(),
	})
	if err != nil {
		log.Printf("coordinator: failed to marshal lease event for nats: %v", err)
		return
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		log.Printf("coordinator: nats publish failed for %s/%s: %v", resourceID, event, err)
	}
}
