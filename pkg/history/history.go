// Package history persists a run-history ledger of completed bridge
// connections in BoltDB, the bridge's analogue of the teacher's
// simulation run-record store.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const connectionBucket = "connections"

// TerminationReason classifies why a connection record was closed.
type TerminationReason string

const (
	TerminatedLocal              TerminationReason = "local"
	TerminatedRemote             TerminationReason = "remote"
	TerminatedTimeoutUnsupported TerminationReason = "timeout_unsupported"
)

// ConnectionRecord captures one completed host<->simulator connection.
type ConnectionRecord struct {
	ID              uint64            `json:"id"`
	Handle          uint16            `json:"handle"`
	StartedAt       time.Time         `json:"started_at"`
	Duration        time.Duration     `json:"duration"`
	PeerAddress     string            `json:"peer_address"`
	FramesSimToHost uint64            `json:"frames_sim_to_host"`
	FramesHostToSim uint64            `json:"frames_host_to_sim"`
	BytesSimToHost  uint64            `json:"bytes_sim_to_host"`
	BytesHostToSim  uint64            `json:"bytes_host_to_sim"`
	Reason          TerminationReason `json:"reason"`
}

// Store wraps a BoltDB instance for persisting connection records.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the history database at path. A path of
// "disabled" (case-insensitive) or empty disables the store entirely.
func Open(path string) (*Store, error) {
	if strings.EqualFold(path, "disabled") || path == "" {
		return nil, errors.New("history storage disabled")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(connectionBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record persists one completed connection record. A no-op on a nil
// Store so callers can pass a disabled store unconditionally.
func (s *Store) Record(rec ConnectionRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(connectionBucket))
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

// Recent returns the most recently recorded connections, newest first, up
// to limit entries (defaulting to 20 when limit <= 0).
func (s *Store) Recent(limit int) ([]ConnectionRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history storage not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	records := make([]ConnectionRecord, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(connectionBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec ConnectionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

func itob(v uint64) []byte {
	var b [8]byte
	for i := uint(0); i < 8; i++ {
		b[7-i] = byte(v >> (i * 8))
	}
	return b[:]
}
