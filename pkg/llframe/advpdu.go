package llframe

import (
	"encoding/binary"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
)

// errShortFrameFmt is the message format of the MalformedFrame errors the LL
// decoders return for an LL frame that declares more payload than the
// buffer actually holds; there is no separate short-frame error kind.
const errShortFrameFmt = "ll frame shorter than declared: %s"

// AdvPDU is a decoded LL advertising frame: access address, header fields,
// and payload.
type AdvPDU struct {
	AccessAddress uint32
	PDUType       byte
	TxAdd         bool
	RxAdd         bool
	Payload       []byte
}

// EncodeAdvPDU serializes an advertising frame per the access_address /
// pdu_header / pdu_length / payload / crc-placeholder layout.
func EncodeAdvPDU(aa uint32, pduType byte, txAdd, rxAdd bool, payload []byte) []byte {
	header := pduType & 0x0F
	if txAdd {
		header |= 1 << 6
	}
	if rxAdd {
		header |= 1 << 7
	}

	out := make([]byte, 4+1+1+len(payload)+3)
	binary.LittleEndian.PutUint32(out[0:4], aa)
	out[4] = header
	out[5] = byte(len(payload))
	copy(out[6:6+len(payload)], payload)
	// bytes [6+len(payload) : 6+len(payload)+3] stay zero: CRC placeholder.
	return out
}

// DecodeAdvPDU parses an advertising frame, returning a MalformedFrame-kind
// BridgeError (message format errShortFrameFmt) if the buffer is shorter
// than the 6 header bytes or the declared pdu_length would overrun it.
func DecodeAdvPDU(frame []byte) (AdvPDU, error) {
	if len(frame) < 6 {
		return AdvPDU{}, bridgeerr.New(bridgeerr.MalformedFrame, errShortFrameFmt, "fewer than 6 header bytes")
	}
	aa := binary.LittleEndian.Uint32(frame[0:4])
	header := frame[4]
	pduLength := int(frame[5])

	if pduLength+6 > len(frame) {
		return AdvPDU{}, bridgeerr.New(bridgeerr.MalformedFrame, errShortFrameFmt, "pdu_length overruns buffer")
	}

	payload := make([]byte, pduLength)
	copy(payload, frame[6:6+pduLength])

	return AdvPDU{
		AccessAddress: aa,
		PDUType:       header & 0x0F,
		TxAdd:         header&(1<<6) != 0,
		RxAdd:         header&(1<<7) != 0,
		Payload:       payload,
	}, nil
}
