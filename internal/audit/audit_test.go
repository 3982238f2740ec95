package audit_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/technosupport/vms-coordinator/internal/audit"
)

func TestWriteEvent_Success(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	s := audit.NewService(db)
	evt := audit.Event{EventID: uuid.New(), NodeID: "node-a", Kind: "stream", ResourceID: "stream-1", Action: "state_transition", ToState: "running", CreatedAt: time.Now()}

	mock.ExpectExec("INSERT INTO coordination_audit_log").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.WriteEvent(context.Background(), evt); err != nil {
		t.Errorf("WriteEvent failed: %v", err)
	}
}

func TestWriteEvent_Failover(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	tempDir, _ := os.MkdirTemp("", "audit_test")
	defer os.RemoveAll(tempDir)
	audit.ConfigureFailover(tempDir, 100)

	s := audit.NewService(db)
	evt := audit.Event{EventID: uuid.New(), NodeID: "node-a", Kind: "stream", ResourceID: "stream-1", Action: "state_transition", CreatedAt: time.Now()}

	mock.ExpectExec("INSERT INTO coordination_audit_log").WillReturnError(sql.ErrConnDone)

	if err := s.WriteEvent(context.Background(), evt); err != nil {
		t.Errorf("WriteEvent failed on failover: %v", err)
	}

	files, _ := os.ReadDir(tempDir)
	if len(files) == 0 {
		t.Error("no spool file created")
	}
}

func TestReplay_Idempotency(t *testing.T) {
	tempDir, _ := os.MkdirTemp("", "replay_test")
	defer os.RemoveAll(tempDir)
	audit.ConfigureFailover(tempDir, 100)

	evt := audit.Event{EventID: uuid.New(), NodeID: "node-a", Kind: "stream", ResourceID: "stream-1", Action: "state_transition"}
	audit.SpoolEvent(evt)

	db, mock, _ := sqlmock.New()
	defer db.Close()
	s := audit.NewService(db)

	mock.ExpectExec("INSERT INTO coordination_audit_log").WillReturnResult(sqlmock.NewResult(1, 1))

	s.ReplaySpool(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("replay didn't call DB: %s", err)
	}
}

func TestWriteEvent_GeneratesUUID(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	s := audit.NewService(db)
	evt := audit.Event{EventID: uuid.Nil, NodeID: "node-a", Kind: "stream", ResourceID: "stream-1", Action: "state_transition"}

	mock.ExpectExec("INSERT INTO coordination_audit_log").
		WithArgs(nonNilUUID{}, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.WriteEvent(context.Background(), evt); err != nil {
		t.Errorf("WriteEvent failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("insert was not made with a generated event_id: %s", err)
	}
}

// nonNilUUID matches an event_id argument holding a UUID other than uuid.Nil.
type nonNilUUID struct{}

func (nonNilUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && s != "" && s != uuid.Nil.String()
}

func TestFailover_Config(t *testing.T) {
	tmp := os.TempDir()
	audit.ConfigureFailover(tmp, 500)
	if audit.SpoolDir != tmp {
		t.Error("config failed")
	}
}

func TestQueryEvents_FiltersByResource(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	s := audit.NewService(db)

	rows := sqlmock.NewRows([]string{"id", "event_id", "node_id", "kind", "resource_id", "action", "from_state", "to_state", "reason_code", "created_at", "metadata"}).
		AddRow(uuid.New(), uuid.New(), "node-a", "stream", "stream-1", "state_transition", "starting", "running", "", time.Now(), []byte("{}"))

	mock.ExpectQuery("SELECT id, event_id").WillReturnRows(rows)

	events, _, err := s.QueryEvents(context.Background(), audit.Filter{ResourceID: "stream-1", Limit: 10})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}
