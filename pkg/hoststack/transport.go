// Package hoststack defines the capability set the host-stack collaborator
// must expose to the translation core and event loop, independent of
// whether it is backed by a raw HCI socket or BlueZ's object-manager bus.
package hoststack

import "github.com/krisarmstrong/blebridge/pkg/advertising"

// HostTransport is the capability set {set_advertising_data, send_acl,
// receive_event_stream, shutdown} the core depends on. Both the raw-socket
// and object-manager transports implement it.
type HostTransport interface {
	advertising.HostAdvertisingSink

	// SendACL writes one HCI ACL data packet: pbFlag distinguishes a
	// start fragment (0x00 or 0x02) from a continuation (0x01).
	SendACL(handle uint16, pbFlag byte, payload []byte) error

	// ReceiveEventStream returns a channel of raw inbound HCI packets
	// (events and ACL data), each still carrying its leading
	// packet-type byte. The channel is closed when the transport stops.
	ReceiveEventStream() <-chan []byte

	// Shutdown deregisters advertising and releases the transport's
	// resources. Safe to call more than once.
	Shutdown() error
}
