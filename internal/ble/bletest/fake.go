// Package bletest provides in-memory fakes of the ble interfaces for tests.
package bletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaz8081/botracer/internal/ble"
)

// Write is one recorded characteristic write.
type Write struct {
	Data         []byte
	WithResponse bool
}

// Characteristic records writes. Set Err to make every write fail.
type Characteristic struct {
	mu     sync.Mutex
	writes []Write
	err    error
	notify chan struct{}
}

func newCharacteristic() *Characteristic {
	return &Characteristic{notify: make(chan struct{}, 64)}
}

func (c *Characteristic) Write(data []byte) error {
	return c.record(data, true)
}

func (c *Characteristic) WriteWithoutResponse(data []byte) error {
	return c.record(data, false)
}

func (c *Characteristic) record(data []byte, withResponse bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, Write{Data: cp, WithResponse: withResponse})
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// FailWith makes subsequent writes return err (nil restores success).
func (c *Characteristic) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Writes returns a copy of the recorded writes.
func (c *Characteristic) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Write, len(c.writes))
	copy(out, c.writes)
	return out
}

// Written is signalled after each successful write.
func (c *Characteristic) Written() <-chan struct{} { return c.notify }

type charKey struct{ service, char string }

// Peripheral is a fake ble.Peripheral. It starts connected.
type Peripheral struct {
	name    string
	address string

	mu           sync.Mutex
	connected    bool
	chars        map[charKey]*Characteristic
	subs         map[int]func()
	nextSub      int
	reconnects   int
	reconnectErr error
}

var _ ble.Peripheral = (*Peripheral)(nil)

// NewPeripheral creates a connected fake peripheral with no services.
func NewPeripheral(name, address string) *Peripheral {
	return &Peripheral{
		name:      name,
		address:   address,
		connected: true,
		chars:     make(map[charKey]*Characteristic),
		subs:      make(map[int]func()),
	}
}

// NewRacer creates a fake racer exposing the vendor write characteristic
// and, when linkLoss is true, the Link Loss Alert-Level characteristic.
func NewRacer(address string, linkLoss bool) *Peripheral {
	p := NewPeripheral("CannyBot", address)
	p.AddCharacteristic(ble.RacerServiceUUID, ble.RacerWriteCharUUID)
	if linkLoss {
		p.AddCharacteristic(ble.LinkLossServiceUUID, ble.AlertLevelCharUUID)
	}
	return p
}

// AddCharacteristic exposes a characteristic and returns it for assertions.
func (p *Peripheral) AddCharacteristic(serviceUUID, charUUID string) *Characteristic {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := newCharacteristic()
	p.chars[charKey{serviceUUID, charUUID}] = c
	return c
}

// Characteristic returns a previously added characteristic, or nil.
func (p *Peripheral) Characteristic(serviceUUID, charUUID string) *Characteristic {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chars[charKey{serviceUUID, charUUID}]
}

func (p *Peripheral) Name() string    { return p.name }
func (p *Peripheral) Address() string { return p.address }

func (p *Peripheral) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// SetConnected changes the reported state without firing callbacks.
func (p *Peripheral) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
}

func (p *Peripheral) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.chars[charKey{serviceUUID, charUUID}]; ok {
		return c, nil
	}
	for k := range p.chars {
		if k.service == serviceUUID {
			return nil, &ble.NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, charUUID}}
		}
	}
	return nil, &ble.NotFoundError{Resource: "service", UUIDs: []string{serviceUUID}}
}

func (p *Peripheral) OnDisconnect(cb func()) func() {
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

// Subscribers returns the number of registered disconnect callbacks.
func (p *Peripheral) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// SimulateDisconnect drops the link and fires the disconnect callbacks.
func (p *Peripheral) SimulateDisconnect() {
	p.mu.Lock()
	p.connected = false
	cbs := make([]func(), 0, len(p.subs))
	for _, cb := range p.subs {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// FailReconnects makes Reconnect return err (nil restores success).
func (p *Peripheral) FailReconnects(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconnectErr = err
}

func (p *Peripheral) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconnects++
	if p.reconnectErr != nil {
		return p.reconnectErr
	}
	p.connected = true
	return nil
}

// Reconnects returns how many times Reconnect was called.
func (p *Peripheral) Reconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconnects
}

func (p *Peripheral) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// Adapter is a fake ble.Adapter serving a fixed set of peripherals.
type Adapter struct {
	mu          sync.Mutex
	peripherals map[string]*Peripheral
}

var _ ble.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter that knows the given peripherals.
func NewAdapter(peripherals ...*Peripheral) *Adapter {
	a := &Adapter{peripherals: make(map[string]*Peripheral)}
	for _, p := range peripherals {
		a.peripherals[p.Address()] = p
	}
	return a
}

func (a *Adapter) Enable() error { return nil }

func (a *Adapter) Connect(ctx context.Context, address string) (ble.Peripheral, error) {
	a.mu.Lock()
	p, ok := a.peripherals[address]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("bletest: unknown peripheral %s", address)
	}
	if err := p.Reconnect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
