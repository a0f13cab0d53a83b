package hcireactor

import (
	"encoding/binary"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
)

// Reactor demultiplexes a raw HCI packet (including its leading
// packet-type byte) into a typed Event. It holds no state of its own: all
// connection bookkeeping lives in the translation core.
type Reactor struct{}

// New creates a Reactor.
func New() *Reactor {
	return &Reactor{}
}

// Dispatch decodes one HCI packet. ok is false for packet types the
// reactor does not recognize (e.g. command or command-complete packets
// when running over a raw socket); such packets are not errors, just
// uninteresting to the bridge.
func (r *Reactor) Dispatch(packet []byte) (ev Event, ok bool, err error) {
	if len(packet) < 1 {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "empty hci packet")
	}

	switch packet[0] {
	case PacketTypeEvent:
		return r.dispatchEvent(packet[1:])
	case PacketTypeACLData:
		return r.dispatchACL(packet[1:])
	case PacketTypeObjectManagerEvent:
		return Event{Kind: KindObjectManagerEvent, ObjectManagerSignal: string(packet[1:])}, true, nil
	default:
		return Event{}, false, nil
	}
}

func (r *Reactor) dispatchEvent(body []byte) (Event, bool, error) {
	if len(body) < 2 {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "hci event shorter than 2-byte header")
	}
	code := body[0]
	params := body[2:] // body[1] is the parameter length, trusted via slice bounds below.

	switch code {
	case eventLEMeta:
		return r.dispatchLEMeta(params)
	case eventDisconnectionComplete:
		return r.dispatchDisconnectionComplete(params)
	default:
		return Event{}, false, nil
	}
}

func (r *Reactor) dispatchLEMeta(params []byte) (Event, bool, error) {
	if len(params) < 1 {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "le meta event missing subevent byte")
	}
	subevent := params[0]
	rest := params[1:]

	switch subevent {
	case subeventConnectionComplete:
		return r.dispatchConnectionComplete(rest, false)
	case subeventEnhancedConnectionComplete:
		return r.dispatchConnectionComplete(rest, true)
	default:
		return Event{}, false, nil
	}
}

func (r *Reactor) dispatchConnectionComplete(rest []byte, enhanced bool) (Event, bool, error) {
	minLen := 18
	const peerOffset = 4
	if enhanced {
		minLen = 30
	}
	if len(rest) < minLen {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "connection complete shorter than %d bytes", minLen)
	}

	status := rest[0]
	if status != 0 {
		return Event{Kind: KindIgnored}, true, nil
	}

	handle := binary.LittleEndian.Uint16(rest[1:3])
	role := rest[3]
	peerAddrType := rest[peerOffset]
	var peerAddr [6]byte
	copy(peerAddr[:], rest[peerOffset+1:peerOffset+7])

	// The enhanced variant inserts 12 bytes of resolvable-private-address
	// fields between the peer address and the timing parameters.
	timingOffset := peerOffset + 7
	if enhanced {
		timingOffset += 12
	}
	if len(rest) < timingOffset+6 {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "connection complete missing timing parameters")
	}

	interval := binary.LittleEndian.Uint16(rest[timingOffset : timingOffset+2])
	latency := binary.LittleEndian.Uint16(rest[timingOffset+2 : timingOffset+4])
	timeout := binary.LittleEndian.Uint16(rest[timingOffset+4 : timingOffset+6])

	return Event{
		Kind: KindConnectionComplete,
		ConnectionComplete: ConnectionComplete{
			Handle:       handle,
			Role:         role,
			PeerAddrType: peerAddrType,
			PeerAddr:     peerAddr,
			Interval:     interval,
			Latency:      latency,
			Timeout:      timeout,
			Enhanced:     enhanced,
		},
	}, true, nil
}

func (r *Reactor) dispatchDisconnectionComplete(params []byte) (Event, bool, error) {
	if len(params) < 4 {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "disconnection complete shorter than 4 bytes")
	}
	return Event{
		Kind: KindDisconnectionComplete,
		DisconnectionComplete: DisconnectionComplete{
			Handle: binary.LittleEndian.Uint16(params[1:3]),
			Reason: params[3],
		},
	}, true, nil
}

func (r *Reactor) dispatchACL(body []byte) (Event, bool, error) {
	if len(body) < 4 {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "acl packet shorter than 4-byte header")
	}
	handleFlags := binary.LittleEndian.Uint16(body[0:2])
	length := binary.LittleEndian.Uint16(body[2:4])
	if len(body) < 4+int(length) {
		return Event{}, false, bridgeerr.New(bridgeerr.MalformedFrame, "acl packet declares length %d but has only %d payload bytes", length, len(body)-4)
	}

	payload := make([]byte, length)
	copy(payload, body[4:4+int(length)])

	return Event{
		Kind: KindACLData,
		ACLData: ACLData{
			PBFlag:  byte((handleFlags >> 12) & 0x03),
			BCFlag:  byte((handleFlags >> 14) & 0x03),
			Handle:  handleFlags & 0x0FFF,
			Payload: payload,
		},
	}, true, nil
}
