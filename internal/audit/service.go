package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
)

func (s *Service) WriteEvent(ctx context.Context, evt Event) error {
	if evt.EventID == uuid.Nil {
		evt.EventID = uuid.New()
	}

	query := `
		INSERT INTO coordination_audit_log (
			event_id, node_id, kind, resource_id, action,
			from_state, to_state, reason_code, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := s.DB.ExecContext(ctx, query,
		evt.EventID, evt.NodeID, evt.Kind, evt.ResourceID, evt.Action,
		evt.FromState, evt.ToState, evt.ReasonCode, evt.Metadata, evt.CreatedAt,
	)

	if err != nil {
		log.Printf("audit: db write failed: %v, spooling event %s", err, evt.EventID)
		if spoolErr := SpoolEvent(evt); spoolErr != nil {
			log.Printf("audit: CRITICAL spool failure for event %s: %v", evt.EventID, spoolErr)
			return fmt.Errorf("audit: critical failure: %v", spoolErr)
		}
		return nil
	}

	return nil
}

// Append-only enforcement: no Update or Delete methods exposed.

// QueryEvents implements filters and ID-based cursor pagination over the
// coordination audit log.
func (s *Service) QueryEvents(ctx context.Context, f Filter) ([]Event, string, error) {
	q := `SELECT id, event_id, node_id, kind, resource_id, action, from_state, to_state, reason_code, created_at, metadata
	      FROM coordination_audit_log
	      WHERE ($1 = '' OR node_id = $1) AND ($2 = '' OR resource_id = $2)`
	args := []interface{}{f.NodeID, f.ResourceID}
	idx := 3

	if f.Cursor != "" {
		q += fmt.Sprintf(" AND id < $%d", idx)
		args = append(args, f.Cursor)
		idx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var events []Event
	var lastID string

	for rows.Next() {
		var evt Event
		var meta []byte
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.NodeID, &evt.Kind, &evt.ResourceID, &evt.Action,
			&evt.FromState, &evt.ToState, &evt.ReasonCode, &evt.CreatedAt, &meta); err != nil {
			return nil, "", err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &evt.Metadata)
		}
		events = append(events, evt)
		lastID = evt.ID.String()
	}

	return events, lastID, nil
}
