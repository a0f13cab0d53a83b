// Package llframe encodes and decodes the UDP wire framing and the Link
// Layer PDU layouts the bridge translates between the simulator and the
// host stack.
package llframe

import (
	"encoding/binary"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
)

// Frame type bytes for the outer UDP wrapper.
const (
	TypeSimToBridge byte = 0x01
	TypeBridgeToSim byte = 0x02
)

// AdvertisingAccessAddress is the fixed access address that marks an
// advertising PDU rather than a data PDU.
const AdvertisingAccessAddress uint32 = 0x8E89BED6

// EncodeUDPFrame wraps payload in the `type:u8, channel:u8, length:u16-LE`
// header used on both the simulator-facing UDP sockets.
func EncodeUDPFrame(typ, channel byte, payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	out[0] = typ
	out[1] = channel
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(payload)))
	copy(out[4:], payload)
	return out
}

// DecodeUDPFrame parses the outer UDP wrapper, returning MalformedFrame if
// the buffer is too short for its header or its declared length.
func DecodeUDPFrame(frame []byte) (typ, channel byte, payload []byte, err error) {
	if len(frame) < 4 {
		return 0, 0, nil, bridgeerr.New(bridgeerr.MalformedFrame, "udp frame shorter than 4-byte header: %d bytes", len(frame))
	}
	typ = frame[0]
	channel = frame[1]
	length := binary.LittleEndian.Uint16(frame[2:4])
	if len(frame) < 4+int(length) {
		return 0, 0, nil, bridgeerr.New(bridgeerr.MalformedFrame, "udp frame declares length %d but has only %d payload bytes", length, len(frame)-4)
	}
	payload = frame[4 : 4+int(length)]
	return typ, channel, payload, nil
}
