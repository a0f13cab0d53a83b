// Package bridge implements the central switchboard that translates
// between LL PDUs on the simulator's UDP transport and HCI ACL/event
// traffic on the host transport.
package bridge

import (
	"fmt"
	"io"
	"time"

	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/conn"
	"github.com/krisarmstrong/blebridge/pkg/conntable"
	"github.com/krisarmstrong/blebridge/pkg/hcireactor"
	"github.com/krisarmstrong/blebridge/pkg/hoststack"
	"github.com/krisarmstrong/blebridge/pkg/llframe"
	"github.com/krisarmstrong/blebridge/pkg/logging"
)

// terminateReasonRemoteUser is the LL_TERMINATE_IND error code the bridge
// always sends: remote-user-terminated.
const terminateReasonRemoteUser = 0x13

const llControlOpcodeTerminate = 0x02

// SimSender is the minimal capability the core needs from the simulator
// UDP transport: write one already-framed outbound UDP datagram.
type SimSender interface {
	SendToSim(frame []byte) error
}

// Core owns the connection table and statistics, and implements the four
// translation procedures from the translation-core design.
type Core struct {
	Table *conntable.Table
	Stats *Statistics

	host hoststack.HostTransport
	sim  SimSender
	rand io.Reader

	lastAdvAddr     [6]byte
	lastAdvAddrType byte

	// OnConnectionClosed, if set, is invoked with a snapshot of a
	// connection's final state right before it is removed from the table.
	// Left nil by default so that Core carries no dependency on anything
	// that records connection history.
	OnConnectionClosed func(conn.Connection)

	// Debug carries per-subsystem verbosity overrides for the hop/frame
	// trace logging below. Left nil by default, which silences it.
	Debug *logging.DebugConfig
}

// debugf logs a subsystem-tagged trace line, gated by the subsystem's
// configured level. A no-op when Debug is nil.
func (c *Core) debugf(subsystem string, minLevel int, format string, args ...interface{}) {
	if c.Debug == nil {
		return
	}
	logging.SubsystemDebug(subsystem, c.Debug.GetSubsystemLevel(subsystem), minLevel, format, args...)
}

// NoteAdvertiserAddress records the local address last seen on
// advertising ingress, so a subsequent OnConnectionComplete can populate
// the new connection's adv_addr field (spec: "last-seen advertiser
// address").
func (c *Core) NoteAdvertiserAddress(addr [6]byte, addrType byte) {
	c.lastAdvAddr = addr
	c.lastAdvAddrType = addrType
}

// New creates a Core wired to the given host and simulator transports.
// rand supplies randomness for access-address/CRC-init/hop-increment
// generation; pass nil to use llframe.DefaultRand.
func New(host hoststack.HostTransport, sim SimSender, rand io.Reader) *Core {
	if rand == nil {
		rand = llframe.DefaultRand
	}
	return &Core{
		Table: conntable.New(),
		Stats: &Statistics{},
		host:  host,
		sim:   sim,
		rand:  rand,
	}
}

// OnConnectionComplete implements the host→sim connection-creation
// procedure: generate link parameters, insert the new connection, and
// emit a CONNECT_IND to the simulator.
func (c *Core) OnConnectionComplete(cc hcireactor.ConnectionComplete) error {
	aa, err := llframe.GenerateAccessAddress(c.rand)
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "generating access address")
	}
	crcInit, err := llframe.GenerateCRCInit(c.rand)
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "generating crc init")
	}
	hopIncrement, err := randomHopIncrement(c.rand)
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "drawing hop increment")
	}

	newConn := &conn.Connection{
		Handle:         cc.Handle,
		AccessAddr:     aa,
		CRCInit:        crcInit,
		InitAddr:       cc.PeerAddr,
		InitAddrType:   cc.PeerAddrType,
		AdvAddr:        c.lastAdvAddr,
		AdvAddrType:    c.lastAdvAddrType,
		Interval:       cc.Interval,
		Latency:        cc.Latency,
		Timeout:        cc.Timeout,
		WinSize:        1,
		WinOffset:      0,
		ChannelMap:     conn.DefaultChannelMap,
		HopIncrement:   hopIncrement,
		CurrentChannel: 0,
		IsConnected:    true,
		StartedAt:      time.Now(),
	}
	newConn.RebuildUsedChannels()

	if err := c.Table.Insert(newConn); err != nil {
		if kind, ok := bridgeerr.KindOf(err); ok && kind == bridgeerr.DuplicateHandle {
			c.Stats.recordDrop(false, false, true)
			if stale, ok := c.Table.LookupByHandle(cc.Handle); ok {
				logging.Conn(fmt.Sprintf("%#04x", stale.Handle), "connection evicted by duplicate handle frames_sim_to_host=%d frames_host_to_sim=%d", stale.FramesSimToHost, stale.FramesHostToSim)
				if c.OnConnectionClosed != nil {
					c.OnConnectionClosed(*stale)
				}
			}
			c.Table.Remove(cc.Handle)
			if err := c.Table.Insert(newConn); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	c.Stats.recordConnectionCreated()

	connectInd := llframe.EncodeConnectInd(llframe.ConnectIndFields{
		InitAddr:     newConn.InitAddr,
		AdvAddr:      newConn.AdvAddr,
		AccessAddr:   newConn.AccessAddr,
		CRCInit:      newConn.CRCInit,
		WinSize:      newConn.WinSize,
		WinOffset:    newConn.WinOffset,
		Interval:     newConn.Interval,
		Latency:      newConn.Latency,
		Timeout:      newConn.Timeout,
		ChannelMap:   newConn.ChannelMap,
		HopIncrement: newConn.HopIncrement,
		SCA:          0,
	})
	advPDU := llframe.EncodeAdvPDU(llframe.AdvertisingAccessAddress, 0x05 /* CONNECT_IND */, false, false, connectInd)
	frame := llframe.EncodeUDPFrame(llframe.TypeBridgeToSim, 37, advPDU)

	if err := c.sim.SendToSim(frame); err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "sending connect_ind")
	}
	c.Stats.recordHostToSim(len(frame))

	logging.Conn(fmt.Sprintf("%#04x", newConn.Handle), "connection established access_addr=%#08x interval=%d", newConn.AccessAddr, newConn.Interval)
	c.debugf(logging.SubsystemHop, 1, "handle=%#04x hop_increment=%d channel_map=%x win_size=%d win_offset=%d",
		newConn.Handle, newConn.HopIncrement, newConn.ChannelMap, newConn.WinSize, newConn.WinOffset)
	return nil
}

// OnSimDataPDU implements the sim→host procedure: look up by access
// address, update sequence numbers, and either forward to the host as ACL
// data or act on an LL_TERMINATE_IND control PDU.
func (c *Core) OnSimDataPDU(aa uint32, frame []byte) error {
	pdu, err := llframe.DecodeDataPDU(frame)
	if err != nil {
		c.Stats.recordDrop(true, false, false)
		return err
	}

	connection, ok := c.Table.LookupByAA(aa)
	if !ok {
		c.Stats.recordDrop(false, true, false)
		return bridgeerr.New(bridgeerr.UnknownPeer, "data pdu from unknown access address %#08x", aa)
	}

	connection.RxSN = pdu.SN
	connection.TxNESN = !pdu.SN

	switch pdu.LLID {
	case llframe.LLIDControl:
		if len(pdu.Payload) >= 1 && pdu.Payload[0] == llControlOpcodeTerminate {
			return c.OnTerminate(connection.Handle)
		}
		return nil

	case llframe.LLIDStart, llframe.LLIDContinuation:
		pbFlag := byte(0x01)
		if pdu.LLID == llframe.LLIDStart {
			pbFlag = 0x02
		}
		if err := c.host.SendACL(connection.Handle, pbFlag, pdu.Payload); err != nil {
			return bridgeerr.Wrap(bridgeerr.TransportError, err, "forwarding acl to host")
		}
		c.Stats.recordSimToHost(len(pdu.Payload))
		connection.FramesSimToHost++
		connection.BytesSimToHost += uint64(len(pdu.Payload))
		c.debugf(logging.SubsystemFrame, 2, "handle=%#04x sim->host llid=%d bytes=%d", connection.Handle, pdu.LLID, len(pdu.Payload))
		return nil

	default:
		return nil
	}
}

// OnHostACLData implements the host→sim procedure: compose a data frame
// from the host ACL payload, capture the connection's current channel,
// advance the hop, and transmit on the captured channel.
func (c *Core) OnHostACLData(handle uint16, pbFlag byte, payload []byte) error {
	connection, ok := c.Table.LookupByHandle(handle)
	if !ok {
		c.Stats.recordDrop(false, true, false)
		return bridgeerr.New(bridgeerr.UnknownPeer, "acl data for unknown handle %#04x", handle)
	}

	llid := llframe.LLIDContinuation
	if pbFlag == 0x00 || pbFlag == 0x02 {
		llid = llframe.LLIDStart
	}

	dataFrame := llframe.EncodeDataPDU(connection.AccessAddr, llid, connection.TxNESN, connection.TxSN, false, payload)

	channel := connection.CurrentChannel
	connection.NextChannel()
	c.debugf(logging.SubsystemHop, 2, "handle=%#04x channel %d -> %d", handle, channel, connection.CurrentChannel)

	frame := llframe.EncodeUDPFrame(llframe.TypeBridgeToSim, channel, dataFrame)
	if err := c.sim.SendToSim(frame); err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "forwarding acl to simulator")
	}
	c.Stats.recordHostToSim(len(payload))
	connection.FramesHostToSim++
	connection.BytesHostToSim += uint64(len(payload))

	connection.TxSN = !connection.TxSN
	return nil
}

// OnTerminate implements the termination procedure: send LL_TERMINATE_IND
// to the simulator, then remove both index entries. Idempotent.
func (c *Core) OnTerminate(handle uint16) error {
	connection, ok := c.Table.LookupByHandle(handle)
	if !ok {
		return nil
	}

	controlPayload := []byte{llControlOpcodeTerminate, terminateReasonRemoteUser}
	dataFrame := llframe.EncodeDataPDU(connection.AccessAddr, llframe.LLIDControl, connection.TxNESN, connection.TxSN, false, controlPayload)
	frame := llframe.EncodeUDPFrame(llframe.TypeBridgeToSim, connection.CurrentChannel, dataFrame)

	err := c.sim.SendToSim(frame)

	logging.Conn(fmt.Sprintf("%#04x", handle), "connection terminated frames_sim_to_host=%d frames_host_to_sim=%d", connection.FramesSimToHost, connection.FramesHostToSim)

	if c.OnConnectionClosed != nil {
		c.OnConnectionClosed(*connection)
	}
	c.Table.Remove(handle)
	c.Stats.recordConnectionTerminated()

	if err != nil {
		return bridgeerr.Wrap(bridgeerr.TransportError, err, "sending ll_terminate_ind")
	}
	c.Stats.recordHostToSim(len(frame))
	return nil
}

func randomHopIncrement(r io.Reader) (byte, error) {
	var buf [1]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		// 252 = 21*12: bytes at or above it are redrawn so every residue
		// mod 12 is equally likely.
		if buf[0] < 252 {
			return 5 + (buf[0] % 12), nil // uniform over [5, 16]
		}
	}
}
