package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth. On macOS the address is a
// CoreBluetooth UUID rather than a MAC; AddressID rejects those, so racers
// must be addressed by MAC on Linux and Windows hosts.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the peripherals map.
	mu          sync.Mutex
	peripherals map[string]*tinygoPeripheral // keyed by lowercase address
}

// NewTinyGoAdapter creates a new BLE adapter using the platform default.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		peripherals: make(map[string]*tinygoPeripheral),
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// tinygo/bluetooth reports link changes at the adapter level only, so
	// fan them out to the peripheral handle that owns the address.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		key := strings.ToLower(device.Address.String())
		a.mu.Lock()
		p, ok := a.peripherals[key]
		a.mu.Unlock()
		if !ok {
			return
		}
		if connected {
			p.connected.Store(true)
			return
		}
		p.markDisconnected()
	})

	return nil
}

func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Peripheral, error) {
	// tinygo silently ignores MACs it cannot parse, and it only parses the
	// uppercase colon form.
	if id, err := AddressID(address); err == nil {
		address = MACString(id)
	}
	key := strings.ToLower(address)

	a.mu.Lock()
	p, ok := a.peripherals[key]
	if !ok {
		p = &tinygoPeripheral{
			adapter: a.adapter,
			address: address,
			subs:    make(map[uint64]func()),
		}
		a.peripherals[key] = p
	}
	a.mu.Unlock()

	if err := p.Reconnect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinygoPeripheral struct {
	adapter *bluetooth.Adapter
	address string

	mu         sync.Mutex
	device     *bluetooth.Device
	name       string
	generation uint64 // bumped on every successful connect
	subs       map[uint64]func()
	nextSub    uint64

	connected atomic.Bool
}

// Name returns the name BlueZ knows the peripheral by. tinygo does not
// expose it on macOS or Windows, so there it is always "".
func (p *tinygoPeripheral) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *tinygoPeripheral) Address() string { return p.address }

func (p *tinygoPeripheral) IsConnected() bool { return p.connected.Load() }

func (p *tinygoPeripheral) Reconnect(ctx context.Context) error {
	var addr bluetooth.Address
	addr.Set(p.address)

	device, err := connectWithContext(ctx,
		func() (bluetooth.Device, error) {
			return p.adapter.Connect(addr, bluetooth.ConnectionParams{})
		},
		func(d bluetooth.Device) { _ = d.Disconnect() },
	)
	if err != nil {
		return fmt.Errorf("ble: connect to %s: %w", p.address, err)
	}

	name := platformName(p.address)
	p.mu.Lock()
	p.device = &device
	if name != "" {
		p.name = name
	}
	p.generation++
	p.mu.Unlock()
	p.connected.Store(true)
	return nil
}

// connectWithContext runs a blocking connect so that ctx can abandon it.
// A connection that completes after the caller gave up is handed to
// abandon instead of being leaked.
func connectWithContext[T any](ctx context.Context, connect func() (T, error), abandon func(T)) (T, error) {
	type connectResult struct {
		device T
		err    error
	}
	ch := make(chan connectResult)
	go func() {
		device, err := connect()
		select {
		case ch <- connectResult{device, err}:
		case <-ctx.Done():
			if err == nil {
				abandon(device)
			}
		}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case result := <-ch:
		return result.device, result.err
	}
}

func (p *tinygoPeripheral) Disconnect() error {
	p.mu.Lock()
	device := p.device
	p.mu.Unlock()
	if device == nil {
		return nil
	}
	p.connected.Store(false)
	return device.Disconnect()
}

func (p *tinygoPeripheral) OnDisconnect(cb func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = cb
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// markDisconnected records the drop and fires subscribers outside the lock.
func (p *tinygoPeripheral) markDisconnected() {
	if !p.connected.Swap(false) {
		return
	}
	p.mu.Lock()
	cbs := make([]func(), 0, len(p.subs))
	for _, cb := range p.subs {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (p *tinygoPeripheral) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}
	c := &tinygoCharacteristic{
		peripheral:  p,
		serviceUUID: svcUUID,
		charUUID:    charUUIDParsed,
		label:       charUUID,
	}
	if _, err := c.resolve(); err != nil {
		return nil, err
	}
	return c, nil
}

// discoveryError classifies the outcome of a tinygo discovery call. An absent
// attribute comes back as an empty result on some platforms and as a plain
// error ("could not find some services", "service not found") on others.
func discoveryError(resource string, uuids []string, found int, err error) error {
	if err == nil && found > 0 {
		return nil
	}
	if err == nil || isMissingAttribute(err) {
		return &NotFoundError{Resource: resource, UUIDs: uuids}
	}
	return fmt.Errorf("ble: discover %s: %w", resource, err)
}

func isMissingAttribute(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "could not find") || strings.Contains(msg, "not found")
}

// tinygoCharacteristic re-discovers its handle after a reconnect, since
// tinygo handles do not survive the underlying device being replaced.
type tinygoCharacteristic struct {
	peripheral  *tinygoPeripheral
	serviceUUID bluetooth.UUID
	charUUID    bluetooth.UUID
	label       string

	mu         sync.Mutex
	char       *bluetooth.DeviceCharacteristic
	generation uint64
}

func (c *tinygoCharacteristic) resolve() (*bluetooth.DeviceCharacteristic, error) {
	p := c.peripheral
	p.mu.Lock()
	device, gen := p.device, p.generation
	p.mu.Unlock()
	if device == nil {
		return nil, ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.char != nil && c.generation == gen {
		return c.char, nil
	}

	svcLabel := c.serviceUUID.String()
	svcs, err := device.DiscoverServices([]bluetooth.UUID{c.serviceUUID})
	if err := discoveryError("service", []string{svcLabel}, len(svcs), err); err != nil {
		return nil, err
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{c.charUUID})
	if err := discoveryError("characteristic", []string{svcLabel, c.label}, len(chars), err); err != nil {
		return nil, err
	}

	c.char = &chars[0]
	c.generation = gen
	return c.char, nil
}

func (c *tinygoCharacteristic) Write(data []byte) error {
	char, err := c.resolve()
	if err != nil {
		return &TransportError{Op: "write", UUID: c.label, Err: err}
	}
	if err := writeWithResponse(c, char, data); err != nil {
		return &TransportError{Op: "write", UUID: c.label, Err: err}
	}
	return nil
}

func (c *tinygoCharacteristic) WriteWithoutResponse(data []byte) error {
	char, err := c.resolve()
	if err != nil {
		return &TransportError{Op: "write-without-response", UUID: c.label, Err: err}
	}
	if _, err := char.WriteWithoutResponse(data); err != nil {
		return &TransportError{Op: "write-without-response", UUID: c.label, Err: err}
	}
	return nil
}
