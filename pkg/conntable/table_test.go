package conntable

import (
	"errors"
	"testing"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/conn"
)

func TestInsertLookupRemove(t *testing.T) {
	tbl := New()
	c := &conn.Connection{Handle: 0x0040, AccessAddr: 0x12345678}

	if err := tbl.Insert(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byHandle, ok := tbl.LookupByHandle(0x0040)
	if !ok || byHandle != c {
		t.Fatalf("lookup by handle failed")
	}
	byAA, ok := tbl.LookupByAA(0x12345678)
	if !ok || byAA != c {
		t.Fatalf("lookup by access address failed")
	}

	tbl.Remove(0x0040)

	if _, ok := tbl.LookupByHandle(0x0040); ok {
		t.Error("expected handle lookup to miss after removal")
	}
	if _, ok := tbl.LookupByAA(0x12345678); ok {
		t.Error("expected access address lookup to miss after removal")
	}
}

func TestInsert_DuplicateHandle(t *testing.T) {
	tbl := New()
	first := &conn.Connection{Handle: 0x0040, AccessAddr: 0x11111111}
	second := &conn.Connection{Handle: 0x0040, AccessAddr: 0x22222222}

	if err := tbl.Insert(first); err != nil {
		t.Fatalf("unexpected error inserting first: %v", err)
	}

	err := tbl.Insert(second)
	if err == nil {
		t.Fatal("expected DuplicateHandle error")
	}
	if !errors.Is(err, bridgeerr.New(bridgeerr.DuplicateHandle, "")) {
		t.Errorf("expected DuplicateHandle kind, got %v", err)
	}

	// The original entry must remain untouched.
	c, ok := tbl.LookupByHandle(0x0040)
	if !ok || c != first {
		t.Error("duplicate insert must not replace the existing entry")
	}
}

func TestRemove_Idempotent(t *testing.T) {
	tbl := New()
	tbl.Remove(0x9999) // removing an absent handle must not panic

	c := &conn.Connection{Handle: 0x0040, AccessAddr: 0x12345678}
	if err := tbl.Insert(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl.Remove(0x0040)
	tbl.Remove(0x0040) // second removal is a no-op

	if tbl.Len() != 0 {
		t.Errorf("expected empty table, got %d entries", tbl.Len())
	}
}

func TestConsistency_HandleAndAAAgree(t *testing.T) {
	tbl := New()
	connections := []*conn.Connection{
		{Handle: 0x0001, AccessAddr: 0xAAAAAAAA},
		{Handle: 0x0002, AccessAddr: 0xBBBBBBBB},
		{Handle: 0x0003, AccessAddr: 0xCCCCCCCC},
	}
	for _, c := range connections {
		if err := tbl.Insert(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tbl.Remove(0x0002)

	for _, c := range connections {
		byHandle, handleOK := tbl.LookupByHandle(c.Handle)
		byAA, aaOK := tbl.LookupByAA(c.AccessAddr)
		if handleOK != aaOK {
			t.Fatalf("handle/AA lookup disagree for %+v: handleOK=%v aaOK=%v", c, handleOK, aaOK)
		}
		if handleOK && (byHandle != c || byAA != c) {
			t.Fatalf("lookup returned wrong connection for %+v", c)
		}
	}

	if tbl.Len() != 2 {
		t.Errorf("expected 2 remaining connections, got %d", tbl.Len())
	}
}

func TestAll_ReturnsSnapshot(t *testing.T) {
	tbl := New()
	if len(tbl.All()) != 0 {
		t.Fatal("expected empty snapshot for empty table")
	}

	tbl.Insert(&conn.Connection{Handle: 1, AccessAddr: 0x1})
	tbl.Insert(&conn.Connection{Handle: 2, AccessAddr: 0x2})

	all := tbl.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(all))
	}
}
