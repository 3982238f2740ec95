// Package audit durably records coordination-state events so operators have
// a history of lease activity independent of the state store's current
// snapshot. Its writer in this repo is coordinator.AuditNotifier, which
// records the coordinator's lease granted/renewed/released events;
// orchestrator state transitions and bootstrap outcomes are not recorded
// here. Adapted from the teacher's tenant/RBAC
// audit log: same DB-write/spool-failover/replay shape, repurposed from
// actor/tenant events to coordination-state events.
package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one durable record of a coordination-state transition.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	EventID    uuid.UUID       `json:"event_id"`
	NodeID     string          `json:"node_id"`
	Kind       string          `json:"kind"`
	ResourceID string          `json:"resource_id"`
	Action     string          `json:"action"`
	FromState  string          `json:"from_state,omitempty"`
	ToState    string          `json:"to_state,omitempty"`
	ReasonCode string          `json:"reason_code,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// spoolEnvelope wraps an Event for JSONL spooling so the file format can
// carry a spool-local timestamp independent of the event's own CreatedAt.
type spoolEnvelope struct {
	EventID   string    `json:"event_id"`
	Payload   Event     `json:"payload"`
	SpooledAt time.Time `json:"spooled_at"`
}

// Filter scopes QueryEvents by resource and/or node, with ID-based cursor
// pagination.
type Filter struct {
	NodeID     string
	ResourceID string
	Limit      int
	Cursor     string
}

// Service is the main entry point: DB-backed with local-disk failover.
type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}
