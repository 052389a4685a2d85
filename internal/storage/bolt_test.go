package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/polykernel/polykernel/internal/audit"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, 30)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_InitializesSchemaVersion(t *testing.T) {
	db := openTestDB(t)
	if err := db.checkSchemaVersion(); err != nil {
		t.Fatalf("expected schema version to be set, got %v", err)
	}
}

func TestBaseline_PutAndGet(t *testing.T) {
	db := openTestDB(t)

	rec := BaselineRecord{
		AgentID:          "agent-1",
		MeanVector:       []float64{0.1, 0.2, 0.3},
		CovarianceMatrix: [][]float64{{1, 0}, {0, 1}},
		BaselineEntropy:  1.5,
		SampleCount:      100,
	}
	if err := db.PutBaseline(rec); err != nil {
		t.Fatalf("PutBaseline: %v", err)
	}

	got, err := db.GetBaseline("agent-1")
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if got == nil {
		t.Fatal("expected baseline to be found")
	}
	if got.AgentID != "agent-1" || got.SampleCount != 100 {
		t.Errorf("unexpected baseline: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestBaseline_GetMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetBaseline("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing baseline, got %+v", got)
	}
}

func TestLedger_AppendAndRead(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := LedgerEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			AgentID:   "agent-1",
			StateFrom: 0,
			StateTo:   1,
			Suspicion: float64(i) * 0.1,
			NodeID:    "node-a",
		}
		if err := db.AppendLedger(entry); err != nil {
			t.Fatalf("AppendLedger(%d): %v", i, err)
		}
	}

	entries, err := db.ReadLedger()
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Error("expected entries in chronological order")
		}
	}
}

func TestLedger_PruneOldEntries(t *testing.T) {
	db := openTestDB(t)

	old := time.Now().UTC().AddDate(0, 0, -60)
	recent := time.Now().UTC()

	if err := db.AppendLedger(LedgerEntry{Timestamp: old, AgentID: "agent-old"}); err != nil {
		t.Fatalf("AppendLedger old: %v", err)
	}
	if err := db.AppendLedger(LedgerEntry{Timestamp: recent, AgentID: "agent-new"}); err != nil {
		t.Fatalf("AppendLedger recent: %v", err)
	}

	deleted, err := db.PruneOldLedgerEntries()
	if err != nil {
		t.Fatalf("PruneOldLedgerEntries: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted entry, got %d", deleted)
	}

	entries, err := db.ReadLedger()
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(entries) != 1 || entries[0].AgentID != "agent-new" {
		t.Fatalf("expected only agent-new to survive pruning, got %+v", entries)
	}
}

func TestAudit_AppendAndRead(t *testing.T) {
	db := openTestDB(t)

	log := audit.New(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev, err := log.Append(audit.Event{
			Timestamp:        base.Add(time.Duration(i) * time.Second),
			Layer:            "kernel",
			Kind:             "decision",
			StateDelta:       "healthy->monitoring",
			BoundaryDistance: float64(i) * 0.1,
		})
		if err != nil {
			t.Fatalf("audit.Append(%d): %v", i, err)
		}
		if err := db.AppendAuditEvent(uint64(i), ev); err != nil {
			t.Fatalf("AppendAuditEvent(%d): %v", i, err)
		}
	}

	events, err := db.ReadAuditEvents()
	if err != nil {
		t.Fatalf("ReadAuditEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 persisted audit events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].PrevHash != events[i-1].SelfHash {
			t.Errorf("event %d: persisted chain broken", i)
		}
	}
}
