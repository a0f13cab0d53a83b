// Package eventloop implements the cooperative single-threaded multiplexer
// over the simulator UDP socket and the host transport's event stream.
package eventloop

import (
	"context"
	"net"
	"time"

	"github.com/krisarmstrong/blebridge/pkg/advertising"
	"github.com/krisarmstrong/blebridge/pkg/bridge"
	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/hcireactor"
	"github.com/krisarmstrong/blebridge/pkg/hoststack"
	"github.com/krisarmstrong/blebridge/pkg/llframe"
	"github.com/krisarmstrong/blebridge/pkg/logging"
)

// pollTimeout is the software poll interval arm, matching the 100ms poll
// timeout.
const pollTimeout = 100 * time.Millisecond

// Loop owns the simulator UDP socket and the host transport, dispatching
// inbound traffic to the translation core. All state mutation happens on
// the goroutine that calls Run.
type Loop struct {
	core     *bridge.Core
	host     hoststack.HostTransport
	reactor  *hcireactor.Reactor
	ingress  *advertising.Ingress
	rxConn   *net.UDPConn
	txAddr   *net.UDPAddr
	txSocket *net.UDPConn

	// Debug carries per-subsystem verbosity overrides for the frame/hci/
	// advertising trace logging below. Left nil by default, which
	// silences it.
	Debug *logging.DebugConfig
}

// debugf logs a subsystem-tagged trace line, gated by the subsystem's
// configured level. A no-op when Debug is nil.
func (l *Loop) debugf(subsystem string, minLevel int, format string, args ...interface{}) {
	if l.Debug == nil {
		return
	}
	logging.SubsystemDebug(subsystem, l.Debug.GetSubsystemLevel(subsystem), minLevel, format, args...)
}

// New creates a Loop bound to rxConn (the simulator-facing receive
// socket), reading/writing UDP frames and dispatching host transport
// events through core.
func New(core *bridge.Core, host hoststack.HostTransport, rxConn, txSocket *net.UDPConn, txAddr *net.UDPAddr) *Loop {
	return &Loop{
		core:     core,
		host:     host,
		reactor:  hcireactor.New(),
		ingress:  advertising.NewIngress(host),
		rxConn:   rxConn,
		txAddr:   txAddr,
		txSocket: txSocket,
	}
}

// SendToSim implements bridge.SimSender by writing an unconnected
// datagram to the configured simulator address.
func (l *Loop) SendToSim(frame []byte) error {
	_, err := l.txSocket.WriteToUDP(frame, l.txAddr)
	return err
}

// UDPSimSender implements bridge.SimSender directly over a UDP socket,
// letting callers construct a bridge.Core before the Loop exists (the Loop
// itself needs the already-constructed Core). Run's actual transmission
// path is functionally identical to Loop.SendToSim, just without requiring
// the Loop to exist yet.
type UDPSimSender struct {
	Conn *net.UDPConn
	Addr *net.UDPAddr
}

// SendToSim implements bridge.SimSender.
func (s *UDPSimSender) SendToSim(frame []byte) error {
	_, err := s.Conn.WriteToUDP(frame, s.Addr)
	return err
}

// Run multiplexes the UDP socket and the host transport's event stream
// until ctx is cancelled. On return it instructs the host-stack
// collaborator to deregister advertising.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.host.Shutdown(); err != nil {
			logging.Warning("eventloop: host shutdown: %v", err)
		}
	}()

	udpPackets := l.readUDPLoop(ctx)
	hostEvents := l.host.ReceiveEventStream()

	for {
		select {
		case <-ctx.Done():
			return nil

		case datagram, ok := <-udpPackets:
			if !ok {
				udpPackets = nil
				continue
			}
			l.handleSimDatagram(datagram)

		case packet, ok := <-hostEvents:
			if !ok {
				hostEvents = nil
				continue
			}
			l.handleHostPacket(packet)

		case <-time.After(pollTimeout):
			// Periodic wakeup; nothing to do absent a readable transport.
		}
	}
}

// readUDPLoop feeds raw UDP payloads (the receive socket's datagrams) to a
// channel on an auxiliary goroutine, since net.UDPConn.Read is blocking
// and the loop itself must stay select-driven.
func (l *Loop) readUDPLoop(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		buf := make([]byte, 2048)
		for {
			l.rxConn.SetReadDeadline(time.Now().Add(pollTimeout))
			n, _, err := l.rxConn.ReadFromUDP(buf)
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				logging.Warning("eventloop: udp read: %v", err)
				continue
			}
			datagram := make([]byte, n)
			copy(datagram, buf[:n])
			select {
			case out <- datagram:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (l *Loop) handleSimDatagram(datagram []byte) {
	typ, channel, payload, err := llframe.DecodeUDPFrame(datagram)
	if err != nil {
		logging.Error("eventloop: malformed udp frame: %v", err)
		return
	}
	if typ != llframe.TypeSimToBridge {
		return
	}

	if channel >= 37 {
		l.handleAdvertisingPayload(channel, payload)
		return
	}

	aa, err := accessAddressOf(payload)
	if err != nil {
		logging.Error("eventloop: %v", err)
		return
	}
	l.debugf(logging.SubsystemFrame, 2, "sim datagram channel=%d access_addr=%#08x bytes=%d", channel, aa, len(payload))
	if err := l.core.OnSimDataPDU(aa, payload); err != nil {
		logSimError(err)
	}
}

func (l *Loop) handleAdvertisingPayload(channel byte, payload []byte) {
	adv, err := llframe.DecodeAdvPDU(payload)
	if err != nil {
		logging.Error("eventloop: malformed advertising pdu: %v", err)
		return
	}

	var advAddr [6]byte
	if len(adv.Payload) >= 6 {
		copy(advAddr[:], adv.Payload[0:6])
	}
	addrType := byte(0)
	if adv.TxAdd {
		addrType = 1
	}
	l.core.NoteAdvertiserAddress(advAddr, addrType)

	adData := adv.Payload
	if len(adv.Payload) >= 6 {
		adData = adv.Payload[6:]
	}
	pushed, err := l.ingress.Observe(adv.PDUType, adData)
	if err != nil {
		logging.Warning("eventloop: advertising ingress: %v", err)
		return
	}
	if pushed {
		l.debugf(logging.SubsystemAdvertising, 1, "pdu_type=%#02x bytes=%d pushed to host", adv.PDUType, len(adData))
	}
}

func (l *Loop) handleHostPacket(packet []byte) {
	ev, ok, err := l.reactor.Dispatch(packet)
	if err != nil {
		logging.Error("eventloop: hci dispatch: %v", err)
		return
	}
	if !ok {
		return
	}
	l.debugf(logging.SubsystemHCI, 2, "dispatched event kind=%d", ev.Kind)

	switch ev.Kind {
	case hcireactor.KindConnectionComplete:
		if err := l.core.OnConnectionComplete(ev.ConnectionComplete); err != nil {
			logSimError(err)
		}
	case hcireactor.KindDisconnectionComplete:
		if err := l.core.OnTerminate(ev.DisconnectionComplete.Handle); err != nil {
			logSimError(err)
		}
	case hcireactor.KindACLData:
		if err := l.core.OnHostACLData(ev.ACLData.Handle, ev.ACLData.PBFlag, ev.ACLData.Payload); err != nil {
			logSimError(err)
		}
	case hcireactor.KindObjectManagerEvent:
		// BlueZ's object-manager signals carry a device path, not an HCI
		// handle or access address, so they cannot drive
		// OnConnectionComplete/OnTerminate the way real HCI events do.
		// They are logged unconditionally at info level, independent of the
		// hci debug subsystem; the
		// object-manager transport's SendACL already refuses ACL data, so
		// there is no connection state here to lose.
		logging.Info("eventloop: bluez object-manager signal: %s", ev.ObjectManagerSignal)
	}
}

func accessAddressOf(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, bridgeerr.New(bridgeerr.MalformedFrame, "data frame shorter than access-address field")
	}
	return uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24, nil
}

func logSimError(err error) {
	kind, ok := bridgeerr.KindOf(err)
	if !ok {
		logging.Error("eventloop: %v", err)
		return
	}
	switch kind {
	case bridgeerr.UnknownPeer, bridgeerr.MalformedFrame:
		logging.Warning("eventloop: %v", err)
	default:
		logging.Error("eventloop: %v", err)
	}
}
