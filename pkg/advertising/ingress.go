package advertising

import "bytes"

// HostAdvertisingSink is the capability the host-stack collaborator
// exposes for pushing a freshly parsed advertisement descriptor. Concrete
// transports implement this alongside the rest of their capability set.
type HostAdvertisingSink interface {
	SetAdvertisingData(Descriptor) error
}

// Ingress tracks the last-seen raw AD bytes per advertising PDU type so
// identical advertising data is a no-op (O3): it pushes to the sink only
// when the raw bytes actually change.
type Ingress struct {
	sink     HostAdvertisingSink
	lastSeen map[byte][]byte
}

// NewIngress creates an Ingress that pushes change events to sink.
func NewIngress(sink HostAdvertisingSink) *Ingress {
	return &Ingress{
		sink:     sink,
		lastSeen: make(map[byte][]byte),
	}
}

// Observe parses rawAD for the given PDU type and, if it differs from the
// last raw bytes seen for that type, pushes the resulting descriptor to
// the sink. Returns whether a push occurred.
func (ig *Ingress) Observe(pduType byte, rawAD []byte) (bool, error) {
	if prev, ok := ig.lastSeen[pduType]; ok && bytes.Equal(prev, rawAD) {
		return false, nil
	}

	seen := make([]byte, len(rawAD))
	copy(seen, rawAD)
	ig.lastSeen[pduType] = seen

	desc := Parse(rawAD)
	if err := ig.sink.SetAdvertisingData(desc); err != nil {
		return false, err
	}
	return true, nil
}
