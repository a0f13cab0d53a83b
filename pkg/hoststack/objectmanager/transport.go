// Package objectmanager implements the host-stack transport over BlueZ's
// D-Bus object-manager API, registering an LEAdvertisement1 object instead
// of opening a raw HCI socket. Grounded on the original Renode
// ble_bridge_dbus.py collaborator and BlueZ's org.bluez D-Bus interface.
package objectmanager

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/krisarmstrong/blebridge/pkg/advertising"
	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/logging"
)

const (
	bluezBusName              = "org.bluez"
	leAdvertisingManagerIface = "org.bluez.LEAdvertisingManager1"
	leAdvertisement1Iface     = "org.bluez.LEAdvertisement1"
	objectManagerIface        = "org.freedesktop.DBus.ObjectManager"
	advertisementObjectPath   = "/org/blebridge/advertisement0"
)

// Transport implements hoststack.HostTransport by registering a
// LEAdvertisement1 object over the system D-Bus and observing BlueZ's
// connection lifecycle via InterfacesAdded/InterfacesRemoved signals.
type Transport struct {
	conn       *dbus.Conn
	adapterObj dbus.ObjectPath

	mu        sync.Mutex
	descriptor advertising.Descriptor
	registered bool

	events chan []byte
	stop   chan struct{}
}

// Open connects to the system bus, locates the adapter object at the given
// index, and prepares (but does not yet register) the advertisement
// object.
func Open(adapterIndex int) (*Transport, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.FatalInitError, err, "connecting to system bus")
	}

	t := &Transport{
		conn:       conn,
		adapterObj: dbus.ObjectPath(fmt.Sprintf("/org/bluez/hci%d", adapterIndex)),
		events:     make(chan []byte, 64),
		stop:       make(chan struct{}),
	}

	if err := conn.Export(t, advertisementObjectPath, leAdvertisement1Iface); err != nil {
		conn.Close()
		return nil, bridgeerr.Wrap(bridgeerr.FatalInitError, err, "exporting advertisement object")
	}

	go t.watchInterfaces()

	return t, nil
}

// Release implements the org.bluez.LEAdvertisement1.Release method BlueZ
// calls when it deregisters the advertisement.
func (t *Transport) Release() *dbus.Error {
	t.mu.Lock()
	t.registered = false
	t.mu.Unlock()
	return nil
}

// SetAdvertisingData implements advertising.HostAdvertisingSink. BlueZ's
// LEAdvertisement1 properties are immutable once registered, so a data
// change requires unregister-then-reregister, per spec.md §6.
//
// The descriptor is only stored on the Transport: the exported object
// implements just the Release method, publishes none of the descriptor's
// fields as D-Bus properties, and RegisterAdvertisement is called with an
// empty options map.
func (t *Transport) SetAdvertisingData(desc advertising.Descriptor) error {
	t.mu.Lock()
	t.descriptor = desc
	wasRegistered := t.registered
	t.mu.Unlock()

	if wasRegistered {
		if err := t.unregister(); err != nil {
			logging.Warning("objectmanager: unregistering previous advertisement: %v", err)
		}
	}
	return t.register()
}

func (t *Transport) register() error {
	manager := t.conn.Object(bluezBusName, t.adapterObj)
	call := manager.Call(leAdvertisingManagerIface+".RegisterAdvertisement", 0, dbus.ObjectPath(advertisementObjectPath), map[string]dbus.Variant{})
	if call.Err != nil {
		return bridgeerr.Wrap(bridgeerr.CollaboratorError, call.Err, "registering advertisement")
	}
	t.mu.Lock()
	t.registered = true
	t.mu.Unlock()
	return nil
}

func (t *Transport) unregister() error {
	manager := t.conn.Object(bluezBusName, t.adapterObj)
	call := manager.Call(leAdvertisingManagerIface+".UnregisterAdvertisement", 0, dbus.ObjectPath(advertisementObjectPath))
	t.mu.Lock()
	t.registered = false
	t.mu.Unlock()
	if call.Err != nil {
		return bridgeerr.Wrap(bridgeerr.CollaboratorError, call.Err, "unregistering advertisement")
	}
	return nil
}

// SendACL always returns a CollaboratorError and carries no ACL data: the
// object-manager path exposes advertising only, mirroring BlueZ's GATT-server-centric model
// where connection data flows through a separate profile, out of scope
// here (spec.md Non-goals).
func (t *Transport) SendACL(handle uint16, pbFlag byte, payload []byte) error {
	return bridgeerr.New(bridgeerr.CollaboratorError, "objectmanager transport does not carry ACL data")
}

// ReceiveEventStream returns the channel fed by the D-Bus signal watcher.
func (t *Transport) ReceiveEventStream() <-chan []byte {
	return t.events
}

// Shutdown unregisters the advertisement and closes the bus connection.
func (t *Transport) Shutdown() error {
	select {
	case <-t.stop:
		return nil
	default:
		close(t.stop)
	}

	t.mu.Lock()
	registered := t.registered
	t.mu.Unlock()
	if registered {
		if err := t.unregister(); err != nil {
			logging.Warning("objectmanager: unregister on shutdown: %v", err)
		}
	}
	return t.conn.Close()
}

// watchInterfaces runs on an auxiliary goroutine, subscribing to BlueZ's
// InterfacesAdded/InterfacesRemoved signals (device connect/disconnect)
// and marshaling them onto the events channel as raw signal bodies for
// pkg/eventloop to interpret. State never mutates conntable.Table directly
// from this goroutine.
func (t *Transport) watchInterfaces() {
	defer close(t.events)

	if err := t.conn.AddMatchSignal(
		dbus.WithMatchInterface(objectManagerIface),
	); err != nil {
		logging.Error("objectmanager: subscribing to object-manager signals: %v", err)
		return
	}

	signals := make(chan *dbus.Signal, 32)
	t.conn.Signal(signals)

	for {
		select {
		case <-t.stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			encoded := encodeSignal(sig)
			select {
			case t.events <- encoded:
			case <-t.stop:
				return
			}
		}
	}
}

// encodeSignal flattens a D-Bus signal into an opaque byte payload the
// event loop can hand to the same dispatch path as HCI packets; the first
// byte tags it as a non-HCI object-manager event so pkg/hcireactor can
// special-case it rather than silently misparse it.
func encodeSignal(sig *dbus.Signal) []byte {
	body := fmt.Sprintf("%s %v", sig.Name, sig.Body)
	return append([]byte{0xFF}, []byte(body)...)
}
