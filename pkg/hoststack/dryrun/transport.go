// Package dryrun implements a no-op host-stack transport used when
// blebridge runs with --dry-run or falls back after a failed host
// transport initialization: it logs what would have been sent instead of
// touching the host Bluetooth controller.
package dryrun

import (
	"github.com/krisarmstrong/blebridge/pkg/advertising"
	"github.com/krisarmstrong/blebridge/pkg/logging"
)

// Transport implements hoststack.HostTransport by discarding every
// outbound call and never producing inbound events.
type Transport struct {
	events chan []byte
}

// New creates a dry-run transport. Its event stream never yields anything;
// the host side of the bridge is effectively absent.
func New() *Transport {
	return &Transport{events: make(chan []byte)}
}

// SetAdvertisingData logs the descriptor it would have pushed to the host
// controller.
func (t *Transport) SetAdvertisingData(desc advertising.Descriptor) error {
	logging.Info("dryrun: would set advertising data: local_name=%q", desc.LocalName)
	return nil
}

// SendACL logs the ACL fragment it would have sent to the host controller.
func (t *Transport) SendACL(handle uint16, pbFlag byte, payload []byte) error {
	logging.Info("dryrun: would send acl: handle=%#04x pb=%#02x len=%d", handle, pbFlag, len(payload))
	return nil
}

// ReceiveEventStream returns a channel that never yields, since there is
// no host controller to generate events.
func (t *Transport) ReceiveEventStream() <-chan []byte {
	return t.events
}

// Shutdown is a no-op; it never errors.
func (t *Transport) Shutdown() error {
	return nil
}
