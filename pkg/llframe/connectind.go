package llframe

import (
	"encoding/binary"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
)

// ConnectIndLength is the fixed size of a CONNECT_IND LLData block.
const ConnectIndLength = 34

// ConnectIndFields holds the decoded/encoded contents of a CONNECT_IND
// LLData block.
type ConnectIndFields struct {
	InitAddr     [6]byte
	AdvAddr      [6]byte
	AccessAddr   uint32
	CRCInit      uint32 // only the low 24 bits are meaningful
	WinSize      byte
	WinOffset    uint16
	Interval     uint16
	Latency      uint16
	Timeout      uint16
	ChannelMap   [5]byte
	HopIncrement byte // low 5 bits of hop_sca
	SCA          byte // high 3 bits of hop_sca
}

// EncodeConnectInd serializes the 34-byte CONNECT_IND LLData block.
func EncodeConnectInd(f ConnectIndFields) []byte {
	out := make([]byte, ConnectIndLength)
	copy(out[0:6], f.InitAddr[:])
	copy(out[6:12], f.AdvAddr[:])
	binary.LittleEndian.PutUint32(out[12:16], f.AccessAddr)
	out[16] = byte(f.CRCInit)
	out[17] = byte(f.CRCInit >> 8)
	out[18] = byte(f.CRCInit >> 16)
	out[19] = f.WinSize
	binary.LittleEndian.PutUint16(out[20:22], f.WinOffset)
	binary.LittleEndian.PutUint16(out[22:24], f.Interval)
	binary.LittleEndian.PutUint16(out[24:26], f.Latency)
	binary.LittleEndian.PutUint16(out[26:28], f.Timeout)
	copy(out[28:33], f.ChannelMap[:])
	out[33] = (f.HopIncrement & 0x1F) | (f.SCA << 5)
	return out
}

// DecodeConnectInd parses a 34-byte CONNECT_IND LLData block.
func DecodeConnectInd(data []byte) (ConnectIndFields, error) {
	if len(data) < ConnectIndLength {
		return ConnectIndFields{}, bridgeerr.New(bridgeerr.MalformedFrame, "connect_ind payload shorter than %d bytes: %d", ConnectIndLength, len(data))
	}

	var f ConnectIndFields
	copy(f.InitAddr[:], data[0:6])
	copy(f.AdvAddr[:], data[6:12])
	f.AccessAddr = binary.LittleEndian.Uint32(data[12:16])
	f.CRCInit = uint32(data[16]) | uint32(data[17])<<8 | uint32(data[18])<<16
	f.WinSize = data[19]
	f.WinOffset = binary.LittleEndian.Uint16(data[20:22])
	f.Interval = binary.LittleEndian.Uint16(data[22:24])
	f.Latency = binary.LittleEndian.Uint16(data[24:26])
	f.Timeout = binary.LittleEndian.Uint16(data[26:28])
	copy(f.ChannelMap[:], data[28:33])
	hopSCA := data[33]
	f.HopIncrement = hopSCA & 0x1F
	f.SCA = hopSCA >> 5

	return f, nil
}
