package bridge

import "sync"

// Statistics tracks frame and byte counts per direction, plus per-kind
// drop counts, the way the teacher's protocols.Statistics tracks per-
// protocol packet counts.
type Statistics struct {
	mu sync.RWMutex

	FramesSimToHost uint64
	FramesHostToSim uint64
	BytesSimToHost  uint64
	BytesHostToSim  uint64

	ConnectionsCreated    uint64
	ConnectionsTerminated uint64

	DroppedMalformed   uint64
	DroppedUnknownPeer uint64
	DroppedDuplicate   uint64
}

func (s *Statistics) recordSimToHost(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesSimToHost++
	s.BytesSimToHost += uint64(n)
}

func (s *Statistics) recordHostToSim(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesHostToSim++
	s.BytesHostToSim += uint64(n)
}

func (s *Statistics) recordConnectionCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConnectionsCreated++
}

func (s *Statistics) recordConnectionTerminated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConnectionsTerminated++
}

func (s *Statistics) recordDrop(malformed, unknownPeer, duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if malformed {
		s.DroppedMalformed++
	}
	if unknownPeer {
		s.DroppedUnknownPeer++
	}
	if duplicate {
		s.DroppedDuplicate++
	}
}

// Snapshot is a point-in-time copy of Statistics safe to read without
// holding the lock, for the status API and monitor dashboard.
type Snapshot struct {
	FramesSimToHost       uint64
	FramesHostToSim       uint64
	BytesSimToHost        uint64
	BytesHostToSim        uint64
	ConnectionsCreated    uint64
	ConnectionsTerminated uint64
	DroppedMalformed      uint64
	DroppedUnknownPeer    uint64
	DroppedDuplicate      uint64
}

// Snapshot returns a consistent copy of the current counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		FramesSimToHost:       s.FramesSimToHost,
		FramesHostToSim:       s.FramesHostToSim,
		BytesSimToHost:        s.BytesSimToHost,
		BytesHostToSim:        s.BytesHostToSim,
		ConnectionsCreated:    s.ConnectionsCreated,
		ConnectionsTerminated: s.ConnectionsTerminated,
		DroppedMalformed:      s.DroppedMalformed,
		DroppedUnknownPeer:    s.DroppedUnknownPeer,
		DroppedDuplicate:      s.DroppedDuplicate,
	}
}
