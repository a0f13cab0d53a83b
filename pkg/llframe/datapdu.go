package llframe

import (
	"encoding/binary"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
)

// LLID values for the data-header LLID field.
const (
	LLIDContinuation byte = 0x01
	LLIDStart        byte = 0x02
	LLIDControl      byte = 0x03
)

// DataPDU is a decoded LL data frame.
type DataPDU struct {
	AccessAddress uint32
	LLID          byte
	NESN          bool
	SN            bool
	MD            bool
	Payload       []byte
}

// EncodeDataPDU serializes a data frame: access_address, data_header,
// payload, and a three-byte CRC placeholder.
func EncodeDataPDU(aa uint32, llid byte, nesn, sn, md bool, payload []byte) []byte {
	header := uint16(llid & 0x03)
	if nesn {
		header |= 1 << 2
	}
	if sn {
		header |= 1 << 3
	}
	if md {
		header |= 1 << 4
	}
	header |= uint16(len(payload)) << 8

	out := make([]byte, 4+2+len(payload)+3)
	binary.LittleEndian.PutUint32(out[0:4], aa)
	binary.LittleEndian.PutUint16(out[4:6], header)
	copy(out[6:6+len(payload)], payload)
	return out
}

// DecodeDataPDU parses a data frame, returning MalformedFrame if the
// header's length field overruns the buffer.
func DecodeDataPDU(frame []byte) (DataPDU, error) {
	if len(frame) < 6 {
		return DataPDU{}, bridgeerr.New(bridgeerr.MalformedFrame, errShortFrameFmt, "fewer than 6 header bytes")
	}
	aa := binary.LittleEndian.Uint32(frame[0:4])
	header := binary.LittleEndian.Uint16(frame[4:6])
	length := int(header >> 8)

	if 6+length > len(frame) {
		return DataPDU{}, bridgeerr.New(bridgeerr.MalformedFrame, errShortFrameFmt, "data length overruns buffer")
	}

	payload := make([]byte, length)
	copy(payload, frame[6:6+length])

	return DataPDU{
		AccessAddress: aa,
		LLID:          byte(header & 0x03),
		NESN:          header&(1<<2) != 0,
		SN:            header&(1<<3) != 0,
		MD:            header&(1<<4) != 0,
		Payload:       payload,
	}, nil
}
