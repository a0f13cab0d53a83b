// Package hcireactor demultiplexes inbound HCI packets into the typed
// events the translation core acts on: LE connection completion,
// disconnection, and ACL data.
package hcireactor

// Packet type bytes, the first byte of any inbound HCI stream element.
// PacketTypeObjectManagerEvent is not a real HCI packet type byte; it is
// the tag pkg/hoststack/objectmanager.encodeSignal prefixes onto a
// flattened D-Bus signal so it can travel over the same event channel as
// genuine HCI packets without colliding with the real packet-type space
// (0x01-0x04).
const (
	PacketTypeACLData            byte = 0x02
	PacketTypeEvent              byte = 0x04
	PacketTypeObjectManagerEvent byte = 0xFF
)

// Event codes.
const (
	eventLEMeta                byte = 0x3E
	eventDisconnectionComplete byte = 0x05
)

// LE Meta subevent codes.
const (
	subeventConnectionComplete         byte = 0x01
	subeventEnhancedConnectionComplete byte = 0x0A
)

// Kind tags the variant an Event holds.
type Kind int

const (
	// KindConnectionComplete carries a ConnectionComplete payload.
	KindConnectionComplete Kind = iota
	// KindDisconnectionComplete carries a DisconnectionComplete payload.
	KindDisconnectionComplete
	// KindACLData carries an ACLData payload.
	KindACLData
	// KindIgnored marks a recognized-but-inert packet (e.g. failed status).
	KindIgnored
	// KindObjectManagerEvent carries a flattened BlueZ D-Bus object-manager
	// signal. BlueZ's high-level Device1/ObjectManager interfaces expose no
	// HCI connection handle or access address, so this kind cannot be
	// correlated to a conntable.Table entry the way KindConnectionComplete
	// can; it exists so the object-manager transport's connection-lifecycle
	// signals are observable rather than silently dropped.
	KindObjectManagerEvent
)

// ConnectionComplete is the decoded LE (Enhanced) Connection Complete
// subevent.
type ConnectionComplete struct {
	Handle       uint16
	Role         byte
	PeerAddrType byte
	PeerAddr     [6]byte
	Interval     uint16
	Latency      uint16
	Timeout      uint16
	Enhanced     bool
}

// DisconnectionComplete is the decoded Disconnection Complete event.
type DisconnectionComplete struct {
	Handle uint16
	Reason byte
}

// ACLData is the decoded HCI ACL data packet.
type ACLData struct {
	PBFlag  byte
	BCFlag  byte
	Handle  uint16
	Payload []byte
}

// Event is a tagged union over the event kinds the bridge acts on.
type Event struct {
	Kind                  Kind
	ConnectionComplete    ConnectionComplete
	DisconnectionComplete DisconnectionComplete
	ACLData               ACLData
	ObjectManagerSignal   string
}
