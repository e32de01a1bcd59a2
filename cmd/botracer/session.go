package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chaz8081/botracer/internal/alert"
	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/config"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/racer"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

// newAdapter is replaced in tests.
var newAdapter = func() ble.Adapter { return ble.NewTinyGoAdapter() }

// loadConfig loads the config from the --config path, or falls back to
// the default config path, or uses built-in defaults. --log-level wins
// over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.Load(path)
	default:
		defaultPath := config.DefaultConfigPath()
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			cfg, err = config.Load(defaultPath)
			if err != nil {
				err = fmt.Errorf("loading %s: %w", defaultPath, err)
			}
		} else {
			cfg = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Device.Address = addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// session is everything a command needs to talk to one racer.
type session struct {
	cfg     *config.Config
	logger  *logrus.Logger
	store   *store.FileStore
	pool    *dispatch.Pool
	manager *watch.Manager
	fleet   *racer.Fleet

	peripheral ble.Peripheral
}

// openSession wires the store, worker pool, watcher manager and fleet. A
// nil notifier reports disconnections through the logger.
func openSession(cmd *cobra.Command, notifier alert.Notifier) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())

	st, err := store.OpenFileStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	pool := dispatch.NewPool(cfg.DispatchOptions(), logger)
	manager := watch.NewManager(pool, cfg.WatchOptions(), logger)
	if notifier == nil {
		notifier = alert.LogNotifier{Logger: logger}
	}
	manager.Handle(alert.EntryPoint, alert.NewTask(st, notifier, logger))

	fleet, err := racer.NewFleet(racer.Deps{
		Store:              st,
		Registrar:          manager,
		Pool:               pool,
		Logger:             logger,
		MaintainConnection: cfg.Watch.MaintainConnection,
	})
	if err != nil {
		manager.Close()
		pool.Close()
		return nil, err
	}

	return &session{cfg: cfg, logger: logger, store: st, pool: pool, manager: manager, fleet: fleet}, nil
}

// connect connects to the configured racer and returns its controller.
func (s *session) connect(ctx context.Context) (*racer.Controller, error) {
	if s.cfg.Device.Address == "" {
		return nil, errors.New("no racer address: pass --address or set device.address in the config file")
	}

	adapter := newAdapter()
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.Connect.Timeout)
	defer cancel()
	s.logger.WithField("address", s.cfg.Device.Address).Info("[RACER] connecting")
	p, err := adapter.Connect(connectCtx, s.cfg.Device.Address)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.cfg.Device.Address, err)
	}
	s.peripheral = p

	controllers, err := s.fleet.Sync(ctx, []ble.Peripheral{p})
	if len(controllers) == 0 {
		return nil, err
	}
	if err != nil {
		s.logger.WithError(err).Warn("[RACER] settings reconciled with errors")
	}
	return controllers[0], nil
}

// Close stops watchers, drains queued device writes and then drops the
// link, so leaving does not count as a disconnection.
func (s *session) Close() {
	s.manager.Close()
	s.pool.Close()
	if s.peripheral != nil {
		if err := s.peripheral.Disconnect(); err != nil {
			s.logger.WithError(err).Debug("[RACER] disconnect failed")
		}
	}
}
