//go:build linux

package ble

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

const (
	bluezBusName        = "org.bluez"
	bluezDeviceIface    = "org.bluez.Device1"
	bluezServiceIface   = "org.bluez.GattService1"
	bluezCharIface      = "org.bluez.GattCharacteristic1"
	objectManagerMethod = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

// bluezObjects is the reply of BlueZ's ObjectManager: object path to
// interface name to properties.
type bluezObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

func managedObjects(conn *dbus.Conn) (bluezObjects, error) {
	var objs bluezObjects
	err := conn.Object(bluezBusName, "/").Call(objectManagerMethod, 0).Store(&objs)
	if err != nil {
		return nil, fmt.Errorf("ble: list bluez objects: %w", err)
	}
	return objs, nil
}

// writeWithResponse issues a GATT write request through BlueZ. tinygo only
// offers write commands on Linux, and the Alert Level write must be
// acknowledged by the peripheral.
func writeWithResponse(c *tinygoCharacteristic, _ *bluetooth.DeviceCharacteristic, data []byte) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("ble: system bus: %w", err)
	}
	objs, err := managedObjects(conn)
	if err != nil {
		return err
	}
	path, err := objs.characteristicPath(c.peripheral.address, c.serviceUUID.String(), c.charUUID.String())
	if err != nil {
		return err
	}
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
	return conn.Object(bluezBusName, path).Call(bluezCharIface+".WriteValue", 0, data, opts).Err
}

func platformName(address string) string {
	conn, err := dbus.SystemBus()
	if err != nil {
		return ""
	}
	objs, err := managedObjects(conn)
	if err != nil {
		return ""
	}
	return objs.deviceName(address)
}

func (o bluezObjects) devicePath(address string) (dbus.ObjectPath, bool) {
	for path, ifaces := range o {
		props, ok := ifaces[bluezDeviceIface]
		if !ok {
			continue
		}
		if addr, ok := props["Address"].Value().(string); ok && strings.EqualFold(addr, address) {
			return path, true
		}
	}
	return "", false
}

// deviceName prefers the user-facing alias over the advertised name.
func (o bluezObjects) deviceName(address string) string {
	path, ok := o.devicePath(address)
	if !ok {
		return ""
	}
	props := o[path][bluezDeviceIface]
	for _, key := range []string{"Alias", "Name"} {
		if name, ok := props[key].Value().(string); ok && name != "" {
			return name
		}
	}
	return ""
}

// characteristicPath finds the object path of charUUID inside serviceUUID on
// the device. Alert Level lives in more than one service, so the service
// must match too.
func (o bluezObjects) characteristicPath(address, serviceUUID, charUUID string) (dbus.ObjectPath, error) {
	dev, ok := o.devicePath(address)
	if !ok {
		return "", fmt.Errorf("ble: %s unknown to bluez: %w", address, ErrNotConnected)
	}
	prefix := string(dev) + "/"
	for path, ifaces := range o {
		props, ok := ifaces[bluezCharIface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		if uuid, _ := props["UUID"].Value().(string); !strings.EqualFold(uuid, charUUID) {
			continue
		}
		svc, _ := props["Service"].Value().(dbus.ObjectPath)
		if uuid, _ := o[svc][bluezServiceIface]["UUID"].Value().(string); strings.EqualFold(uuid, serviceUUID) {
			return path, nil
		}
	}
	return "", &NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, charUUID}}
}
