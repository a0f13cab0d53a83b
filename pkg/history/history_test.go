package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_DisabledPath(t *testing.T) {
	if _, err := Open("disabled"); err == nil {
		t.Fatal("expected error opening disabled storage")
	}
	if _, err := Open(""); err == nil {
		t.Fatal("expected error opening empty path")
	}
}

func TestRecordAndRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := ConnectionRecord{
			Handle:          uint16(0x0040 + i),
			StartedAt:       base.Add(time.Duration(i) * time.Minute),
			Duration:        5 * time.Second,
			PeerAddress:     "11:22:33:44:55:66",
			FramesSimToHost: uint64(i),
			Reason:          TerminatedRemote,
		}
		if err := store.Record(rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, err := store.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	// newest first
	if recent[0].Handle != 0x0042 {
		t.Errorf("expected newest handle 0x0042 first, got %#04x", recent[0].Handle)
	}
}

func TestRecord_NilStoreIsNoOp(t *testing.T) {
	var store *Store
	if err := store.Record(ConnectionRecord{}); err != nil {
		t.Fatalf("expected nil-store record to be a no-op, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("expected nil-store close to be a no-op, got %v", err)
	}
}

func TestRecent_DefaultsLimitTo20(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	for i := 0; i < 25; i++ {
		if err := store.Record(ConnectionRecord{Handle: uint16(i)}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, err := store.Recent(0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 20 {
		t.Errorf("expected default limit of 20, got %d", len(recent))
	}
}
