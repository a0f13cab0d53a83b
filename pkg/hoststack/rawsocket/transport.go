// Package rawsocket implements the host-stack transport over a raw
// AF_BLUETOOTH HCI user-channel socket, bypassing BlueZ's management
// daemon entirely.
package rawsocket

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/krisarmstrong/blebridge/pkg/advertising"
	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/logging"
)

// HCI packet type bytes. Inbound event packets keep their own type byte
// (pkg/hcireactor.PacketTypeEvent) since this transport hands raw bytes
// to the reactor rather than filtering by type itself.
const (
	packetTypeCommand byte = 0x01
	packetTypeACLData byte = 0x02
)

// OGF/OCF pairs for the LE advertising commands this transport issues.
const (
	ogfLEController = 0x08

	ocfLESetAdvertisingParameters = 0x0006
	ocfLESetAdvertisingData       = 0x0008
	ocfLESetScanResponseData      = 0x0009
	ocfLESetAdvertiseEnable       = 0x000A
)

// Advertising parameter defaults per the high-level host-stack interface.
var (
	defaultAdvIntervalMin uint16 = 0x0100
	defaultAdvIntervalMax uint16 = 0x0100
)

// hciSocket is the seam between this transport's command/ACL encoding
// logic and the real AF_BLUETOOTH socket syscalls. Production code talks
// to the adapter through fdSocket; tests talk to a fake that records
// writes, so the encoding logic is exercised without a live adapter.
type hciSocket interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// fdSocket implements hciSocket over a raw file descriptor via
// unix.Write/Read/Close.
type fdSocket int

func (s fdSocket) Write(p []byte) (int, error) { return unix.Write(int(s), p) }
func (s fdSocket) Read(p []byte) (int, error)  { return unix.Read(int(s), p) }
func (s fdSocket) Close() error                { return unix.Close(int(s)) }

// Transport implements hoststack.HostTransport over a raw HCI socket.
type Transport struct {
	conn   hciSocket
	events chan []byte
	stop   chan struct{}
}

// Open creates and configures a raw HCI user-channel socket on the given
// adapter index, issues the LE Set Advertising Parameters command with
// the published defaults (ADV_IND, public addressing, all channels, no
// filter), and enables advertising.
func Open(adapterIndex int) (*Transport, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.FatalInitError, err, "opening AF_BLUETOOTH raw socket")
	}

	sa := &unix.SockaddrHCI{Dev: uint16(adapterIndex), Channel: unix.HCI_CHANNEL_USER}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, bridgeerr.Wrap(bridgeerr.FatalInitError, err, "binding hci user channel on adapter %d", adapterIndex)
	}

	return newTransport(fdSocket(fd))
}

// newTransport configures advertising parameters and enables advertising
// over an already-open hciSocket, then starts the read loop. Factored out
// of Open so tests can inject a fake hciSocket without a live adapter.
func newTransport(conn hciSocket) (*Transport, error) {
	t := &Transport{
		conn:   conn,
		events: make(chan []byte, 64),
		stop:   make(chan struct{}),
	}

	if err := t.sendCommand(ogfLEController, ocfLESetAdvertisingParameters, advertisingParametersPayload()); err != nil {
		t.Shutdown()
		return nil, bridgeerr.Wrap(bridgeerr.CollaboratorError, err, "setting advertising parameters")
	}

	if err := t.sendCommand(ogfLEController, ocfLESetAdvertiseEnable, []byte{0x01}); err != nil {
		t.Shutdown()
		return nil, bridgeerr.Wrap(bridgeerr.CollaboratorError, err, "enabling advertising")
	}

	go t.readLoop()

	return t, nil
}

// advertisingParametersPayload builds the LE Set Advertising Parameters
// command payload with the defaults: intervals 0x0100/0x0100, ADV_IND,
// public own/peer address types, all three advertising channels, no
// filter.
func advertisingParametersPayload() []byte {
	b := make([]byte, 15)
	binary.LittleEndian.PutUint16(b[0:2], defaultAdvIntervalMin)
	binary.LittleEndian.PutUint16(b[2:4], defaultAdvIntervalMax)
	b[4] = 0x00 // ADV_IND
	b[5] = 0x00 // own address type: public
	b[6] = 0x00 // peer address type: public
	// b[7:13] peer address, unused for undirected advertising, left zero.
	b[13] = 0x07 // advertising channel map: all three channels
	b[14] = 0x00 // filter policy: no filter
	return b
}

// SetAdvertisingData implements advertising.HostAdvertisingSink: it
// re-issues LE Set Advertising Data and LE Set Scan Response Data with
// the 31-byte fixed block the HCI command expects. Advertising is already
// enabled by Open, so changing the data in place is sufficient — no
// disable/enable cycle is needed.
func (t *Transport) SetAdvertisingData(desc advertising.Descriptor) error {
	encoded := encodeAdvertisingData(desc)
	if err := t.sendCommand(ogfLEController, ocfLESetAdvertisingData, adLengthPrefixedBlock(encoded)); err != nil {
		return bridgeerr.Wrap(bridgeerr.CollaboratorError, err, "setting advertising data")
	}
	if err := t.sendCommand(ogfLEController, ocfLESetScanResponseData, adLengthPrefixedBlock(nil)); err != nil {
		return bridgeerr.Wrap(bridgeerr.CollaboratorError, err, "setting scan response data")
	}
	return nil
}

// adLengthPrefixedBlock packs data into the 32-byte parameter block
// `length:u8 || data[31]` the LE Set Advertising/Scan Response Data
// commands require.
func adLengthPrefixedBlock(data []byte) []byte {
	if len(data) > 31 {
		data = data[:31]
	}
	out := make([]byte, 32)
	out[0] = byte(len(data))
	copy(out[1:], data)
	return out
}

// encodeAdvertisingData re-serializes a descriptor back into AD
// structures for outbound advertising. Only the local name (as a complete
// local name) and 16-bit service UUIDs are encoded; 128-bit UUIDs,
// manufacturer data and service data are not.
func encodeAdvertisingData(desc advertising.Descriptor) []byte {
	var out []byte
	if desc.LocalName != "" {
		nameBytes := []byte(desc.LocalName)
		out = append(out, byte(len(nameBytes)+1), 0x09)
		out = append(out, nameBytes...)
	}
	for _, uuid := range desc.ServiceUUIDs {
		if len(uuid) == 4 {
			var hi, lo byte
			fmt.Sscanf(uuid, "%02x%02x", &hi, &lo)
			out = append(out, 0x03, 0x03, lo, hi)
		}
	}
	return out
}

// SendACL writes one HCI ACL data packet.
func (t *Transport) SendACL(handle uint16, pbFlag byte, payload []byte) error {
	handleFlags := (handle & 0x0FFF) | (uint16(pbFlag) << 12)
	body := make([]byte, 1+2+2+len(payload))
	body[0] = packetTypeACLData
	binary.LittleEndian.PutUint16(body[1:3], handleFlags)
	binary.LittleEndian.PutUint16(body[3:5], uint16(len(payload)))
	copy(body[5:], payload)

	if _, err := t.conn.Write(body); err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "writing acl data")
	}
	return nil
}

// ReceiveEventStream returns the channel fed by the background read loop.
func (t *Transport) ReceiveEventStream() <-chan []byte {
	return t.events
}

// Shutdown disables advertising, stops the read loop, and closes the
// socket. Safe to call more than once.
func (t *Transport) Shutdown() error {
	select {
	case <-t.stop:
		return nil
	default:
		close(t.stop)
	}

	if err := t.sendCommand(ogfLEController, ocfLESetAdvertiseEnable, []byte{0x00}); err != nil {
		logging.Warning("rawsocket: disabling advertising on shutdown: %v", err)
	}
	return t.conn.Close()
}

func (t *Transport) sendCommand(ogf uint16, ocf uint16, params []byte) error {
	opcode := ogf<<10 | ocf
	body := make([]byte, 1+2+1+len(params))
	body[0] = packetTypeCommand
	body[1] = byte(opcode & 0xFF)
	body[2] = byte(opcode >> 8)
	body[3] = byte(len(params))
	copy(body[4:], params)

	_, err := t.conn.Write(body)
	return err
}

func (t *Transport) readLoop() {
	defer close(t.events)
	buf := make([]byte, 2048)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.conn.Read(buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logging.Warning("rawsocket: read: %v", err)
			return
		}
		if n <= 0 {
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])

		select {
		case t.events <- packet:
		case <-t.stop:
			return
		}
	}
}
