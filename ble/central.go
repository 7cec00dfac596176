package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/pose"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// DefaultDeviceName is the advertised name of the pose sensor.
const DefaultDeviceName = "PoseSensor"

// Standard big-endian UUID strings as BlueZ returns them in GetManagedObjects.
const (
	serviceUUIDStr  = "00002a10-0000-1000-8000-00805f9b34fb"
	landmarkUUIDStr = "00002a11-0000-1000-8000-00805f9b34fb"
)

const servicesResolvedTimeout = 15 * time.Second

var ErrDeviceNotFound = errors.New("pose sensor not found")

// FrameHandler is called for every landmark packet. frame is nil when the
// sensor reports nobody in view.
type FrameHandler func(frame *pose.LandmarkFrame)

// DisconnectHandler is called when the sensor drops the connection.
type DisconnectHandler func(deviceName string)

// SensorConnection represents the connected pose sensor.
type SensorConnection struct {
	Device       *bluetooth.Device
	Address      bluetooth.Address
	LandmarkChar *gatt.GattCharacteristic1
	PropCh       chan *bluez.PropertyChanged
	ConnectedAt  time.Time

	base   time.Time
	seq    seqTracker
	cancel context.CancelFunc
}

// Stats summarizes the link quality of the current connection.
type Stats struct {
	Connected   bool    `json:"connected"`
	Address     string  `json:"address,omitempty"`
	Packets     uint64  `json:"packets"`
	Lost        uint64  `json:"lost"`
	PacketLoss  float64 `json:"packet_loss"`
	LastSeq     uint16  `json:"last_seq"`
	ConnectedAt string  `json:"connected_at,omitempty"`
}

// Central manages the BLE connection to one pose sensor.
type Central struct {
	adapter    *bluetooth.Adapter
	deviceName string
	mu         sync.RWMutex

	conn *SensorConnection

	onFrame      FrameHandler
	onDisconnect DisconnectHandler
	scanning     bool
}

// NewCentral creates a Central looking for deviceName
// (DefaultDeviceName when empty).
func NewCentral(deviceName string) *Central {
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}
	return &Central{
		adapter:    bluetooth.DefaultAdapter,
		deviceName: deviceName,
	}
}

// DeviceName returns the advertised name the central connects to.
func (c *Central) DeviceName() string {
	return c.deviceName
}

// SetFrameHandler sets the callback for incoming landmark frames.
func (c *Central) SetFrameHandler(handler FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = handler
}

// SetDisconnectHandler sets the callback fired when the sensor disconnects.
func (c *Central) SetDisconnectHandler(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = handler
}

// Enable initializes the BLE adapter.
func (c *Central) Enable() error {
	log.Debug("BLE: enabling adapter")
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w", err)
	}
	log.Info("BLE: adapter enabled")
	return nil
}

// IsConnected returns true if the sensor is connected.
func (c *Central) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Stats returns link statistics for the current connection.
func (c *Central) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return Stats{}
	}
	return Stats{
		Connected:   true,
		Address:     c.conn.Address.String(),
		Packets:     c.conn.seq.received,
		Lost:        c.conn.seq.lost,
		PacketLoss:  c.conn.seq.lossPercent(),
		LastSeq:     c.conn.seq.last,
		ConnectedAt: c.conn.ConnectedAt.Format(time.RFC3339),
	}
}

// handleNotification decodes one GATT notification and forwards the frame.
func (c *Central) handleNotification(data []byte) {
	packet, err := ParsePacket(data)
	if err != nil {
		log.WithError(err).Debug("BLE: failed to parse packet")
		return
	}

	c.mu.Lock()
	sc := c.conn
	if sc == nil {
		c.mu.Unlock()
		return
	}
	if sc.base.IsZero() {
		// First packet anchors device uptime to wall time.
		sc.base = time.Now().Add(-time.Duration(packet.Timestamp) * time.Millisecond)
	}
	if missed := sc.seq.observe(packet.Sequence); missed > 0 {
		log.WithField("missed", missed).Trace("BLE: packet loss")
	}
	base := sc.base
	handler := c.onFrame
	c.mu.Unlock()

	if packet.LowBattery() {
		log.Debug("BLE: sensor battery low")
	}
	if handler != nil {
		handler(packet.Frame(base))
	}
}

// devicePath derives the BlueZ D-Bus object path from the MAC address,
// e.g. "D4:E9:F4:E2:B5:8A" -> "/org/bluez/hci0/dev_D4_E9_F4_E2_B5_8A".
func devicePath(addr bluetooth.Address) dbus.ObjectPath {
	mac := strings.ToUpper(addr.String())
	return dbus.ObjectPath("/org/bluez/hci0/dev_" + strings.ReplaceAll(mac, ":", "_"))
}

// waitForDeviceBool blocks until the Device1 boolean property prop of addr
// equals want, or ctx is done.
//
// BlueZ resolves GATT services asynchronously after the ACL connection is up;
// ServicesResolved flips to true once the profile is usable. Connected flips
// to false when the link drops.
func waitForDeviceBool(ctx context.Context, addr bluetooth.Address, prop string, want bool) error {
	devPath := devicePath(addr)

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("dbus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(devPath),
	); err != nil {
		return fmt.Errorf("dbus match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	// Fast path: already in the wanted state (e.g. reconnect after a prior session).
	v, err := conn.Object("org.bluez", devPath).GetProperty("org.bluez.Device1." + prop)
	if err == nil {
		if got, ok := v.Value().(bool); ok && got == want {
			return nil
		}
	}

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("dbus signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			iface, ok := sig.Body[0].(string)
			if !ok || iface != "org.bluez.Device1" {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed[prop]; ok {
				if got, ok := v.Value().(bool); ok && got == want {
					return nil
				}
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s=%t: %w", prop, want, ctx.Err())
		}
	}
}

// discoverGATT opens a fresh D-Bus connection and calls GetManagedObjects
// directly on org.bluez, bypassing the go-bluetooth singleton ObjectManager
// which can return a stale view of the GATT object tree.
func discoverGATT(addr bluetooth.Address, serviceUUID, charUUID string) (*gatt.GattCharacteristic1, error) {
	devPath := string(devicePath(addr))

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := conn.Object("org.bluez", "/")
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&managed); err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", err)
	}
	log.Tracef("BLE: GetManagedObjects returned %d objects", len(managed))

	servicePath := findChild(managed, devPath, "service", "org.bluez.GattService1", serviceUUID)
	if servicePath == "" {
		return nil, fmt.Errorf("service %s not found on %s", serviceUUID, devPath)
	}
	charPath := findChild(managed, servicePath, "char", "org.bluez.GattCharacteristic1", charUUID)
	if charPath == "" {
		return nil, fmt.Errorf("characteristic %s not found under %s", charUUID, servicePath)
	}

	char, err := gatt.NewGattCharacteristic1(dbus.ObjectPath(charPath))
	if err != nil {
		return nil, fmt.Errorf("NewGattCharacteristic1(%s): %w", charPath, err)
	}
	return char, nil
}

// findChild returns the object exactly one level below parent, named
// parent/<kind>XXXX, exposing iface with the given UUID.
func findChild(managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant, parent, kind, iface, uuid string) string {
	uuid = strings.ToLower(uuid)
	prefix := parent + "/" + kind
	for path, ifaces := range managed {
		p := string(path)
		if !strings.HasPrefix(p, prefix) || strings.Contains(p[len(parent)+1:], "/") {
			continue
		}
		props, ok := ifaces[iface]
		if !ok {
			continue
		}
		v, ok := props["UUID"]
		if !ok {
			continue
		}
		if s, ok := v.Value().(string); ok && strings.ToLower(s) == uuid {
			log.Debugf("BLE: matched %s at %s", kind, p)
			return p
		}
	}
	return ""
}

// Scan looks for the sensor until it is found or ctx is done.
func (c *Central) Scan(ctx context.Context) (bluetooth.ScanResult, error) {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return bluetooth.ScanResult{}, errors.New("scan already in progress")
	}
	c.scanning = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.scanning = false
		c.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { _ = c.adapter.StopScan() })
	defer stop()

	log.WithField("device", c.deviceName).Debug("BLE: scanning")
	var found *bluetooth.ScanResult
	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if result.LocalName() != c.deviceName {
			return
		}
		r := result
		found = &r
		_ = adapter.StopScan()
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	}
	if found == nil {
		if ctx.Err() != nil {
			return bluetooth.ScanResult{}, fmt.Errorf("%w: %w", ErrDeviceNotFound, ctx.Err())
		}
		return bluetooth.ScanResult{}, ErrDeviceNotFound
	}
	log.Infof("BLE: found %s at %s", c.deviceName, found.Address.String())
	return *found, nil
}

// Connect establishes a connection to a discovered sensor and starts
// streaming notifications to the frame handler.
func (c *Central) Connect(ctx context.Context, result bluetooth.ScanResult) error {
	name := result.LocalName()
	log.Infof("BLE: connecting to %s (%s)", name, result.Address.String())

	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	resolveCtx, cancel := context.WithTimeout(ctx, servicesResolvedTimeout)
	err = waitForDeviceBool(resolveCtx, result.Address, "ServicesResolved", true)
	cancel()
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("GATT not resolved on %s: %w", name, err)
	}

	landmarkChar, err := discoverGATT(result.Address, serviceUUIDStr, landmarkUUIDStr)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("GATT discovery failed on %s: %w", name, err)
	}

	// Subscribe to PropertiesChanged before asking BlueZ to start notifying.
	propCh, err := landmarkChar.WatchProperties()
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("WatchProperties failed: %w", err)
	}
	if err := landmarkChar.StartNotify(); err != nil {
		_ = landmarkChar.UnwatchProperties(propCh)
		device.Disconnect()
		return fmt.Errorf("StartNotify failed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	sc := &SensorConnection{
		Device:       device,
		Address:      result.Address,
		LandmarkChar: landmarkChar,
		PropCh:       propCh,
		ConnectedAt:  time.Now(),
		cancel:       connCancel,
	}

	c.mu.Lock()
	c.conn = sc
	c.mu.Unlock()

	go func() {
		for update := range propCh {
			if update == nil {
				continue
			}
			if update.Interface == "org.bluez.GattCharacteristic1" && update.Name == "Value" {
				if data, ok := update.Value.([]byte); ok {
					c.handleNotification(data)
				}
			}
		}
	}()
	go c.watchLink(connCtx, sc)

	log.Infof("BLE: %s connected and streaming", name)
	return nil
}

// watchLink waits for BlueZ to report the link down and fires the
// disconnect handler.
func (c *Central) watchLink(ctx context.Context, sc *SensorConnection) {
	err := waitForDeviceBool(ctx, sc.Address, "Connected", false)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.WithError(err).Warn("BLE: link watch failed")
	}

	c.mu.Lock()
	if c.conn != sc {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	handler := c.onDisconnect
	c.mu.Unlock()

	c.release(sc)
	log.Warnf("BLE: %s disconnected", c.deviceName)
	if handler != nil {
		handler(c.deviceName)
	}
}

// release stops notifications and cleans up the D-Bus signal subscription.
func (c *Central) release(sc *SensorConnection) {
	sc.cancel()
	if sc.LandmarkChar != nil {
		_ = sc.LandmarkChar.StopNotify()
		if sc.PropCh != nil {
			_ = sc.LandmarkChar.UnwatchProperties(sc.PropCh)
		}
	}
}

// Disconnect drops the sensor connection, if any.
func (c *Central) Disconnect() error {
	c.mu.Lock()
	sc := c.conn
	c.conn = nil
	c.mu.Unlock()

	if sc == nil {
		return nil
	}
	c.release(sc)
	if err := sc.Device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", c.deviceName, err)
	}
	log.Infof("BLE: %s disconnected", c.deviceName)
	return nil
}

// ScanAndConnect scans for the sensor and connects to it.
func (c *Central) ScanAndConnect(ctx context.Context) error {
	result, err := c.Scan(ctx)
	if err != nil {
		return err
	}
	return c.Connect(ctx, result)
}
