// Package racer controls a paired CannyBot: motion commands over the vendor
// characteristic, and persisted link-loss alert preferences kept in step
// with a disconnection watcher.
package racer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/alert"
	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

// Deps are the collaborators a Controller is built with.
type Deps struct {
	Store     store.KeyValueStore
	Registrar watch.Registrar
	Pool      *dispatch.Pool
	Logger    logrus.FieldLogger

	// MaintainConnection asks the watcher to reconnect after a disconnection.
	MaintainConnection bool
}

func (d Deps) validate() error {
	switch {
	case d.Store == nil:
		return errors.New("racer: store is required")
	case d.Registrar == nil:
		return errors.New("racer: registrar is required")
	case d.Pool == nil:
		return errors.New("racer: dispatch pool is required")
	}
	return nil
}

// Controller drives one paired peripheral. Setters and motion commands
// return immediately; their device I/O completes on the dispatch pool and
// is reported through the returned Result, which callers may ignore.
type Controller struct {
	peripheral ble.Peripheral
	addressID  string
	linkLoss   ble.Characteristic // nil when the peripheral has no Link Loss service

	store     store.KeyValueStore
	registrar watch.Registrar
	pool      *dispatch.Pool
	logger    logrus.FieldLogger
	keepAlive bool

	mu           sync.Mutex
	settings     protocol.AlertSettings
	motion       protocol.MotionFrame
	motionChar   ble.Characteristic
	registration watch.Registration

	reconcileMu sync.Mutex // one reconciliation at a time
}

// New builds a controller for a connected peripheral, loading any settings
// previously persisted for its address.
func New(p ble.Peripheral, deps Deps) (*Controller, error) {
	if p == nil {
		return nil, errors.New("racer: peripheral is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	id, err := ble.AddressID(p.Address())
	if err != nil {
		return nil, fmt.Errorf("racer: %w", err)
	}

	c := &Controller{
		peripheral: p,
		addressID:  id,
		store:      deps.Store,
		registrar:  deps.Registrar,
		pool:       deps.Pool,
		logger:     deps.Logger.WithField("address", id),
		keepAlive:  deps.MaintainConnection,
		motion:     protocol.DefaultMotionFrame(),
	}

	// Absence of Link Loss is expected: we can still alert on the phone,
	// but cannot ask the device to alert.
	char, err := p.DiscoverCharacteristic(ble.LinkLossServiceUUID, ble.AlertLevelCharUUID)
	switch {
	case err == nil:
		c.linkLoss = char
	case ble.IsNotFound(err):
		c.logger.Debug("[RACER] no link loss service")
	default:
		c.logger.WithError(err).Warn("[RACER] link loss discovery failed, device alerts disabled")
	}

	record, ok, err := c.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("racer: load settings for %s: %w", id, err)
	}
	if ok {
		settings, err := protocol.UnmarshalRecord(record)
		if err != nil {
			return nil, fmt.Errorf("racer: settings for %s: %w", id, err)
		}
		c.settings = settings
	}

	return c, nil
}

// Name returns the peripheral's advertised name.
func (c *Controller) Name() string { return c.peripheral.Name() }

// AddressID returns the 12-hex-digit identity used as the persistence key.
func (c *Controller) AddressID() string { return c.addressID }

// TaskName returns the name of this controller's disconnection watcher.
func (c *Controller) TaskName() string { return c.addressID }

// HasLinkLossService reports whether the peripheral can alert on its own.
func (c *Controller) HasLinkLossService() bool { return c.linkLoss != nil }

func (c *Controller) String() string {
	if name := c.peripheral.Name(); name != "" {
		return name
	}
	return c.addressID
}

// Settings returns the current alert settings.
func (c *Controller) Settings() protocol.AlertSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) AlertOnPhone() bool { return c.Settings().AlertOnPhone }

func (c *Controller) AlertOnDevice() bool { return c.Settings().AlertOnDevice }

func (c *Controller) AlertLevel() protocol.AlertLevel { return c.Settings().Level }

// Motion returns the current motion state.
func (c *Controller) Motion() protocol.MotionFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motion
}

// Registration returns the disconnection watcher, or nil when none is armed.
func (c *Controller) Registration() watch.Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registration
}

// AttachRegistration adopts a watcher registered earlier under TaskName.
func (c *Controller) AttachRegistration(reg watch.Registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registration = reg
}

// Forget tears down the watcher when the peripheral is unpaired.
func (c *Controller) Forget() error {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()
	c.mu.Lock()
	reg := c.registration
	c.registration = nil
	c.mu.Unlock()
	if reg == nil {
		return nil
	}
	return reg.Unregister(false)
}

// SetAlertOnPhone sets whether the phone alerts when the peripheral disconnects.
func (c *Controller) SetAlertOnPhone(v bool) *dispatch.Result {
	return c.update(func(s *protocol.AlertSettings) { s.AlertOnPhone = v })
}

// SetAlertOnDevice sets whether the peripheral alerts on link loss.
func (c *Controller) SetAlertOnDevice(v bool) *dispatch.Result {
	return c.update(func(s *protocol.AlertSettings) { s.AlertOnDevice = v })
}

// SetAlertLevel sets the level the peripheral alerts at on link loss.
func (c *Controller) SetAlertLevel(l protocol.AlertLevel) *dispatch.Result {
	if !l.Valid() {
		return dispatch.Resolved(fmt.Errorf("%w: %d", protocol.ErrInvalidAlertLevel, uint8(l)))
	}
	return c.update(func(s *protocol.AlertSettings) { s.Level = l })
}

// SaveSettings persists the current settings and reconciles the device and
// the watcher with them.
func (c *Controller) SaveSettings() *dispatch.Result {
	return c.update(func(*protocol.AlertSettings) {})
}

// update mutates the settings and persists them before any device I/O, so
// the durable state always reflects what was last requested. Values equal
// to the current ones are persisted too.
func (c *Controller) update(mutate func(*protocol.AlertSettings)) *dispatch.Result {
	c.mu.Lock()
	mutate(&c.settings)
	record := c.settings.MarshalRecord()
	persistErr := c.store.Set(c.addressID, record)
	c.mu.Unlock()

	if persistErr != nil {
		persistErr = fmt.Errorf("racer: persist settings for %s: %w", c.addressID, persistErr)
		c.logger.WithError(persistErr).Error("[RACER] failed to persist settings")
	}

	return c.pool.Submit("reconcile:"+c.addressID, func(ctx context.Context) error {
		return errors.Join(persistErr, c.reconcile(ctx))
	})
}

// reconcile pushes the alert level to a connected device and arms or
// disarms the disconnection watcher to match the current flags.
func (c *Controller) reconcile(ctx context.Context) error {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	c.mu.Lock()
	s := c.settings
	reg := c.registration
	c.mu.Unlock()

	if s.AlertOnDevice && c.linkLoss != nil && c.peripheral.IsConnected() {
		// Best effort: the device may drop between the check and the write.
		if err := c.writeAlertLevel(ctx, s.Level); err != nil {
			c.logger.WithError(err).Debug("[RACER] alert level write failed")
		}
	}

	switch {
	case reg == nil && s.WantsWatcher():
		reg, err := c.registrar.Register(watch.TaskSpec{
			Name:               c.TaskName(),
			EntryPoint:         alert.EntryPoint,
			Peripheral:         c.peripheral,
			MaintainConnection: c.keepAlive,
		})
		if err != nil {
			return fmt.Errorf("racer: register watcher %s: %w", c.TaskName(), err)
		}
		c.mu.Lock()
		c.registration = reg
		c.mu.Unlock()

	case reg != nil && !s.WantsWatcher():
		if err := reg.Unregister(false); err != nil {
			return fmt.Errorf("racer: unregister watcher %s: %w", c.TaskName(), err)
		}
		c.mu.Lock()
		c.registration = nil
		c.mu.Unlock()
	}
	return nil
}

// SetAlertLevelCharacteristic writes the current alert level to the
// peripheral's Link Loss Alert-Level characteristic with acknowledgment.
func (c *Controller) SetAlertLevelCharacteristic(ctx context.Context) error {
	return c.writeAlertLevel(ctx, c.AlertLevel())
}

func (c *Controller) writeAlertLevel(ctx context.Context, level protocol.AlertLevel) error {
	if c.linkLoss == nil {
		return &ble.NotFoundError{Resource: "service", UUIDs: []string{ble.LinkLossServiceUUID}}
	}
	data, err := protocol.MarshalAlertLevel(level)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.linkLoss.Write(data); err != nil {
		return err
	}
	c.logger.WithField("level", level).Debug("[RACER] alert level written")
	return nil
}
