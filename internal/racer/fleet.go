package racer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/ble"
)

// Fleet holds one controller per paired peripheral and keeps watcher
// registrations in step with the set of peripherals.
type Fleet struct {
	deps        Deps
	logger      logrus.FieldLogger
	controllers *hashmap.Map[string, *Controller]
}

// NewFleet creates an empty fleet.
func NewFleet(deps Deps) (*Fleet, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &Fleet{
		deps:        deps,
		logger:      deps.Logger,
		controllers: hashmap.New[string, *Controller](),
	}, nil
}

// Sync rebuilds the fleet from the currently paired peripherals. Each
// controller adopts the watcher already registered under its task name;
// watchers left over for peripherals that are no longer paired are
// unregistered. Peripherals whose controller cannot be built are skipped
// and reported in the returned error.
func (f *Fleet) Sync(ctx context.Context, peripherals []ble.Peripheral) ([]*Controller, error) {
	existing := f.deps.Registrar.All()
	seen := make(map[string]bool, len(peripherals))
	var errs []error
	var out []*Controller

	for _, p := range peripherals {
		id, err := ble.AddressID(p.Address())
		if err != nil {
			errs = append(errs, fmt.Errorf("racer: skipping %s: %w", p.Address(), err))
			continue
		}
		seen[id] = true

		c, err := New(p, f.deps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if reg, ok := existing[c.TaskName()]; ok {
			c.AttachRegistration(reg)
			delete(existing, c.TaskName())
		}

		// A watcher that outlived its settings, or settings whose watcher
		// was lost, are put right before the controller is handed out.
		if (c.Registration() != nil) != c.Settings().WantsWatcher() {
			if err := c.SaveSettings().Wait(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		f.controllers.Set(id, c)
		out = append(out, c)
	}

	for name, reg := range existing {
		if seen[name] {
			continue
		}
		if err := reg.Unregister(false); err != nil {
			errs = append(errs, fmt.Errorf("racer: unregister orphan %s: %w", name, err))
			continue
		}
		f.logger.WithField("task", name).Info("[FLEET] unregistered watcher for unpaired peripheral")
	}

	var stale []string
	f.controllers.Range(func(id string, _ *Controller) bool {
		if !seen[id] {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		f.controllers.Del(id)
	}

	f.logger.WithField("count", len(out)).Info("[FLEET] synced")
	return out, errors.Join(errs...)
}

// Get returns the controller for an address id.
func (f *Fleet) Get(addressID string) (*Controller, bool) {
	return f.controllers.Get(addressID)
}

// Controllers returns all controllers ordered by address id.
func (f *Fleet) Controllers() []*Controller {
	out := make([]*Controller, 0, f.controllers.Len())
	f.controllers.Range(func(_ string, c *Controller) bool {
		out = append(out, c)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AddressID() < out[j].AddressID() })
	return out
}

// Forget drops an unpaired peripheral's controller and its watcher.
func (f *Fleet) Forget(addressID string) error {
	c, ok := f.controllers.Get(addressID)
	if !ok {
		return nil
	}
	f.controllers.Del(addressID)
	return c.Forget()
}
