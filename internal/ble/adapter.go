// Package ble provides the BLE abstractions used to drive a CannyBot racer
// and to configure link-loss alerting on paired peripherals.
package ble

import "context"

// CannyBot BLE UUIDs
const (
	RacerServiceUUID    = "7e400001-b5a3-f393-e0a9-e50e24dcca9e"
	RacerNotifyCharUUID = "7e400002-b5a3-f393-e0a9-e50e24dcca9e"
	RacerWriteCharUUID  = "7e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Standard Bluetooth SIG UUIDs for the Link Loss profile.
const (
	LinkLossServiceUUID = "00001803-0000-1000-8000-00805f9b34fb"
	AlertLevelCharUUID  = "00002a06-0000-1000-8000-00805f9b34fb"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data and waits for the peripheral's acknowledgment.
	Write(data []byte) error
	// WriteWithoutResponse sends data without waiting for acknowledgment.
	WriteWithoutResponse(data []byte) error
}

// Peripheral is a handle to a paired BLE peripheral. The handle is owned by
// the host and stays valid across reconnects.
type Peripheral interface {
	// Name returns the device name, or "" where the platform does not
	// expose one. Callers fall back to the address.
	Name() string
	// Address returns the hardware address as reported by the platform.
	Address() string
	// IsConnected reports the live connection state.
	IsConnected() bool
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	// Returns a *NotFoundError when either is absent.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// OnDisconnect registers a callback invoked when the connection drops.
	// The returned function removes the callback.
	OnDisconnect(callback func()) (cancel func())
	// Reconnect re-establishes a dropped connection.
	Reconnect(ctx context.Context) error
	// Disconnect terminates the connection.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Peripheral, error)
}
