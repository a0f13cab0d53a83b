// Package conntable holds the dual-indexed registry of active bridge
// connections, keyed by both host connection handle and LL access address.
package conntable

import (
	"sync"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/conn"
)

// Table is a dual-indexed registry over the same set of Connection
// records, behind a single mutex so both indexes are always mutated
// atomically (I1).
type Table struct {
	mu       sync.RWMutex
	byHandle map[uint16]*conn.Connection
	byAA     map[uint32]*conn.Connection
}

// New creates an empty connection table.
func New() *Table {
	return &Table{
		byHandle: make(map[uint16]*conn.Connection),
		byAA:     make(map[uint32]*conn.Connection),
	}
}

// Insert adds c under both indexes. Returns a DuplicateHandle BridgeError
// if the handle already names a live connection.
func (t *Table) Insert(c *conn.Connection) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byHandle[c.Handle]; exists {
		return bridgeerr.New(bridgeerr.DuplicateHandle, "connection handle %#04x already active", c.Handle)
	}

	t.byHandle[c.Handle] = c
	t.byAA[c.AccessAddr] = c
	return nil
}

// LookupByHandle returns the connection with the given handle, if any.
func (t *Table) LookupByHandle(handle uint16) (*conn.Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byHandle[handle]
	return c, ok
}

// LookupByAA returns the connection with the given access address, if any.
func (t *Table) LookupByAA(aa uint32) (*conn.Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byAA[aa]
	return c, ok
}

// Remove deletes the connection with the given handle from both indexes.
// Idempotent: removing an already-absent handle is a no-op.
func (t *Table) Remove(handle uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.byHandle[handle]
	if !ok {
		return
	}
	delete(t.byHandle, handle)
	delete(t.byAA, c.AccessAddr)
}

// Len reports the number of live connections.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byHandle)
}

// All returns a snapshot slice of every live connection, for status/monitor
// reporting. The slice is a copy of the pointer set; callers must not
// assume a stable order.
func (t *Table) All() []*conn.Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*conn.Connection, 0, len(t.byHandle))
	for _, c := range t.byHandle {
		out = append(out, c)
	}
	return out
}
