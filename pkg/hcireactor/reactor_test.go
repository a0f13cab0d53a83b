package hcireactor

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestDispatch_S2ConnectionComplete mirrors the connection-establishment
// scenario: status=0, handle=0x0040, role=1, peer 11:22:33:44:55:66,
// interval=0x0018, latency=0, timeout=0x00C8.
func TestDispatch_S2ConnectionComplete(t *testing.T) {
	params := make([]byte, 18)
	params[0] = 0x00 // status
	binary.LittleEndian.PutUint16(params[1:3], 0x0040)
	params[3] = 0x01                                          // role
	params[4] = 0x00                                          // peer_addr_type
	copy(params[5:11], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}) // peer addr
	binary.LittleEndian.PutUint16(params[11:13], 0x0018)       // interval
	binary.LittleEndian.PutUint16(params[13:15], 0x0000)       // latency
	binary.LittleEndian.PutUint16(params[15:17], 0x00C8)       // timeout

	packet := buildEventPacket(eventLEMeta, append([]byte{subeventConnectionComplete}, params...))

	r := New()
	ev, ok, err := r.Dispatch(packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || ev.Kind != KindConnectionComplete {
		t.Fatalf("expected connection complete event, got kind=%d ok=%v", ev.Kind, ok)
	}

	cc := ev.ConnectionComplete
	if cc.Handle != 0x0040 {
		t.Errorf("handle mismatch: %#x", cc.Handle)
	}
	if cc.Role != 1 {
		t.Errorf("role mismatch: %d", cc.Role)
	}
	if !bytes.Equal(cc.PeerAddr[:], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}) {
		t.Errorf("peer address mismatch: %x", cc.PeerAddr)
	}
	if cc.Interval != 0x0018 || cc.Latency != 0 || cc.Timeout != 0x00C8 {
		t.Errorf("timing mismatch: interval=%#x latency=%#x timeout=%#x", cc.Interval, cc.Latency, cc.Timeout)
	}
	if cc.Enhanced {
		t.Error("expected non-enhanced connection complete")
	}
}

func TestDispatch_ConnectionCompleteFailedStatusIsIgnored(t *testing.T) {
	params := make([]byte, 18)
	params[0] = 0x0E // some failure status

	packet := buildEventPacket(eventLEMeta, append([]byte{subeventConnectionComplete}, params...))

	r := New()
	ev, ok, err := r.Dispatch(packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || ev.Kind != KindIgnored {
		t.Fatalf("expected ignored event for failed status, got kind=%d ok=%v", ev.Kind, ok)
	}
}

func TestDispatch_EnhancedConnectionComplete(t *testing.T) {
	params := make([]byte, 30)
	params[0] = 0x00
	binary.LittleEndian.PutUint16(params[1:3], 0x0041)
	params[3] = 0x01
	params[4] = 0x00
	copy(params[5:11], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	// bytes [11:23) are the 12-byte resolvable-private-address block, left zero.
	binary.LittleEndian.PutUint16(params[23:25], 0x0020)
	binary.LittleEndian.PutUint16(params[25:27], 0x0001)
	binary.LittleEndian.PutUint16(params[27:29], 0x00C8)

	packet := buildEventPacket(eventLEMeta, append([]byte{subeventEnhancedConnectionComplete}, params...))

	r := New()
	ev, ok, err := r.Dispatch(packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !ev.ConnectionComplete.Enhanced {
		t.Fatalf("expected enhanced connection complete")
	}
	if ev.ConnectionComplete.Interval != 0x0020 {
		t.Errorf("interval mismatch: %#x", ev.ConnectionComplete.Interval)
	}
}

func TestDispatch_DisconnectionComplete(t *testing.T) {
	params := []byte{0x00, 0x40, 0x00, 0x13} // status, handle lo/hi, reason
	packet := buildEventPacket(eventDisconnectionComplete, params)

	r := New()
	ev, ok, err := r.Dispatch(packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || ev.Kind != KindDisconnectionComplete {
		t.Fatalf("expected disconnection complete event")
	}
	if ev.DisconnectionComplete.Handle != 0x0040 {
		t.Errorf("handle mismatch: %#x", ev.DisconnectionComplete.Handle)
	}
	if ev.DisconnectionComplete.Reason != 0x13 {
		t.Errorf("reason mismatch: %#x", ev.DisconnectionComplete.Reason)
	}
}

// TestDispatch_S4ACLData mirrors the sim->host data-forward scenario's
// resulting ACL packet: handle_flags=0x2040, payload 01 02 03.
func TestDispatch_S4ACLData(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	body := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint16(body[0:2], 0x2040)
	binary.LittleEndian.PutUint16(body[2:4], uint16(len(payload)))
	copy(body[4:], payload)

	packet := append([]byte{PacketTypeACLData}, body...)

	r := New()
	ev, ok, err := r.Dispatch(packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || ev.Kind != KindACLData {
		t.Fatalf("expected acl data event")
	}
	if ev.ACLData.Handle != 0x0040 {
		t.Errorf("handle mismatch: %#x", ev.ACLData.Handle)
	}
	if ev.ACLData.PBFlag != 0x02 {
		t.Errorf("pb_flag mismatch: %#x", ev.ACLData.PBFlag)
	}
	if !bytes.Equal(ev.ACLData.Payload, payload) {
		t.Errorf("payload mismatch: %x", ev.ACLData.Payload)
	}
}

func TestDispatch_UnknownPacketType(t *testing.T) {
	r := New()
	_, ok, err := r.Dispatch([]byte{0x01, 0x00, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected unrecognized packet type to be reported as not-ok, not an error")
	}
}

func TestDispatch_ObjectManagerEvent(t *testing.T) {
	r := New()
	signal := []byte("InterfacesAdded [/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF map[...]]")
	packet := append([]byte{PacketTypeObjectManagerEvent}, signal...)

	ev, ok, err := r.Dispatch(packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected object-manager-tagged packet to be recognized")
	}
	if ev.Kind != KindObjectManagerEvent {
		t.Errorf("expected KindObjectManagerEvent, got %v", ev.Kind)
	}
	if ev.ObjectManagerSignal != string(signal) {
		t.Errorf("signal body mismatch: got %q", ev.ObjectManagerSignal)
	}
}

func TestDispatch_EmptyPacket(t *testing.T) {
	r := New()
	_, _, err := r.Dispatch(nil)
	if err == nil {
		t.Fatal("expected error for empty packet")
	}
}

func buildEventPacket(code byte, params []byte) []byte {
	body := append([]byte{code, byte(len(params))}, params...)
	return append([]byte{PacketTypeEvent}, body...)
}
