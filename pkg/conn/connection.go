// Package conn defines the per-connection state record the bridge tracks
// for each active host↔simulator link, along with the data-channel hop
// selection routine.
package conn

import "time"

// Connection is the per-connection record: identifiers, timing
// parameters, channel map, hop increment, sequence numbers, and the
// current data channel.
type Connection struct {
	Handle     uint16
	AccessAddr uint32
	CRCInit    uint32

	InitAddr     [6]byte
	InitAddrType byte
	AdvAddr      [6]byte
	AdvAddrType  byte

	Interval uint16
	Latency  uint16
	Timeout  uint16

	WinSize   byte
	WinOffset uint16

	ChannelMap   [5]byte
	HopIncrement byte

	UsedChannels []byte

	CurrentChannel byte
	EventCounter   uint32

	TxSN, TxNESN, RxSN bool

	IsConnected bool

	// StartedAt and the frame/byte counters below populate a
	// history.ConnectionRecord when the connection closes, and the frame
	// counters appear in the close log line; the hop and sequence-number
	// logic never reads them.
	StartedAt time.Time

	FramesSimToHost uint64
	FramesHostToSim uint64
	BytesSimToHost  uint64
	BytesHostToSim  uint64
}

// RebuildUsedChannels recomputes UsedChannels from ChannelMap, falling back
// to the full [0,37) range when the map is all-zero (invariant I2: the used
// channel set is never empty).
func (c *Connection) RebuildUsedChannels() {
	c.UsedChannels = c.UsedChannels[:0]
	for idx := 0; idx < 37; idx++ {
		byteIdx := idx / 8
		bitIdx := uint(idx % 8)
		if c.ChannelMap[byteIdx]&(1<<bitIdx) != 0 {
			c.UsedChannels = append(c.UsedChannels, byte(idx))
		}
	}
	if len(c.UsedChannels) == 0 {
		c.UsedChannels = make([]byte, 37)
		for idx := range c.UsedChannels {
			c.UsedChannels[idx] = byte(idx)
		}
	}
}

// NextChannel implements the single-hop BLE 4.x data-channel remapping
// rule: the candidate channel is current+hop_increment mod 37; if that
// index is itself a used channel it becomes the new current channel,
// otherwise it is remapped into the used set by taking the candidate
// modulo the used-channel count as an index. EventCounter is incremented
// on every call.
func (c *Connection) NextChannel() byte {
	candidate := byte((int(c.CurrentChannel) + int(c.HopIncrement)) % 37)

	next := candidate
	if !contains(c.UsedChannels, candidate) {
		next = c.UsedChannels[int(candidate)%len(c.UsedChannels)]
	}

	c.CurrentChannel = next
	c.EventCounter++
	return next
}

func contains(channels []byte, target byte) bool {
	for _, ch := range channels {
		if ch == target {
			return true
		}
	}
	return false
}

// DefaultChannelMap is the all-37-channels-usable default assigned to a
// newly created connection: 0xFF 0xFF 0xFF 0xFF 0x1F (37 bits set).
var DefaultChannelMap = [5]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x1F}
