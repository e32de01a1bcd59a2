package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/dispatch"
)

// Options configures the Manager.
type Options struct {
	ReconnectMax   int           // max reconnect backoff in seconds
	ConnectTimeout time.Duration // per reconnect attempt
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ReconnectMax:   30,
		ConnectTimeout: 10 * time.Second,
	}
}

// Manager is an in-process Registrar. Task runs are submitted to the
// dispatch pool; keep-alive reconnect loops run on their own goroutines.
type Manager struct {
	pool   *dispatch.Pool
	logger logrus.FieldLogger
	opts   Options

	mu       sync.RWMutex
	handlers map[string]Handler

	registrations *hashmap.Map[string, *registration]
}

var _ Registrar = (*Manager)(nil)

// NewManager creates a Manager. A nil logger gets a default logrus logger.
func NewManager(pool *dispatch.Pool, opts Options, logger logrus.FieldLogger) *Manager {
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		pool:          pool,
		logger:        logger,
		opts:          opts,
		handlers:      make(map[string]Handler),
		registrations: hashmap.New[string, *registration](),
	}
}

// Handle binds an entry point name to its handler.
func (m *Manager) Handle(entryPoint string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[entryPoint] = h
}

func (m *Manager) handler(entryPoint string) (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[entryPoint]
	return h, ok
}

// Register arms a task on the peripheral's disconnection.
func (m *Manager) Register(spec TaskSpec) (Registration, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("watch: task name must not be empty")
	}
	if spec.Peripheral == nil {
		return nil, fmt.Errorf("watch: task %s has no peripheral", spec.Name)
	}
	h, ok := m.handler(spec.EntryPoint)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryPoint, spec.EntryPoint)
	}

	armCtx, armCancel := context.WithCancel(context.Background())
	taskCtx, taskCancel := context.WithCancel(context.Background())
	reg := &registration{
		manager:    m,
		spec:       spec,
		handler:    h,
		armCtx:     armCtx,
		armCancel:  armCancel,
		taskCtx:    taskCtx,
		taskCancel: taskCancel,
	}
	if !m.registrations.Insert(spec.Name, reg) {
		armCancel()
		taskCancel()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, spec.Name)
	}
	reg.armed.Store(true)
	reg.stop = spec.Peripheral.OnDisconnect(reg.fire)

	m.logger.WithFields(logrus.Fields{
		"task":      spec.Name,
		"address":   spec.Peripheral.Address(),
		"keepalive": spec.MaintainConnection,
	}).Info("[WATCH] task registered")
	return reg, nil
}

// Lookup returns the registration with the given name.
func (m *Manager) Lookup(name string) (Registration, bool) {
	reg, ok := m.registrations.Get(name)
	if !ok {
		return nil, false
	}
	return reg, true
}

// All returns a snapshot of the registrations keyed by task name.
func (m *Manager) All() map[string]Registration {
	out := make(map[string]Registration, m.registrations.Len())
	m.registrations.Range(func(name string, reg *registration) bool {
		out[name] = reg
		return true
	})
	return out
}

// Close unregisters every task and cancels in-flight runs.
func (m *Manager) Close() {
	for _, reg := range m.All() {
		_ = reg.Unregister(true)
	}
}

type registration struct {
	manager *Manager
	spec    TaskSpec
	handler Handler

	armed        atomic.Bool
	reconnecting atomic.Bool
	stop         func()

	armCtx     context.Context // cancelled on any Unregister
	armCancel  context.CancelFunc
	taskCtx    context.Context // cancelled only by Unregister(true)
	taskCancel context.CancelFunc
}

func (r *registration) Name() string { return r.spec.Name }

func (r *registration) Unregister(cancelTask bool) error {
	if !r.armed.CompareAndSwap(true, false) {
		return nil
	}
	if r.stop != nil {
		r.stop()
	}
	r.armCancel()
	if cancelTask {
		r.taskCancel()
	}
	r.manager.registrations.Del(r.spec.Name)
	r.manager.logger.WithField("task", r.spec.Name).Info("[WATCH] task unregistered")
	return nil
}

// fire is the peripheral's disconnect callback.
func (r *registration) fire() {
	if !r.armed.Load() {
		return
	}
	m := r.manager
	event := Event{
		TaskName: r.spec.Name,
		Address:  r.spec.Peripheral.Address(),
		Time:     time.Now(),
	}
	m.logger.WithField("task", r.spec.Name).Warn("[WATCH] peripheral disconnected, running task")

	m.pool.Submit("watch:"+r.spec.Name, func(context.Context) error {
		if err := r.handler.Run(r.taskCtx, event); err != nil {
			m.logger.WithError(err).WithField("task", r.spec.Name).Error("[WATCH] task failed")
			return err
		}
		return nil
	})

	if r.spec.MaintainConnection && r.reconnecting.CompareAndSwap(false, true) {
		go r.reconnectLoop()
	}
}

// reconnectLoop attempts to reconnect with exponential backoff until it
// succeeds or the registration is disarmed.
func (r *registration) reconnectLoop() {
	defer r.reconnecting.Store(false)
	m := r.manager
	log := m.logger.WithField("task", r.spec.Name)

	for attempt := 0; ; attempt++ {
		// On the first attempt, try immediately; subsequent attempts use backoff.
		if attempt > 0 {
			delay := backoffDelay(attempt-1, m.opts.ReconnectMax)
			log.WithFields(logrus.Fields{"attempt": attempt + 1, "delay": delay}).Info("[WATCH] reconnect backoff")
			select {
			case <-time.After(delay):
			case <-r.armCtx.Done():
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.armCtx, m.opts.ConnectTimeout)
		err := r.spec.Peripheral.Reconnect(ctx)
		cancel()
		if r.armCtx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).WithField("attempt", attempt+1).Warn("[WATCH] reconnect failed")
			continue
		}

		log.Info("[WATCH] reconnected")
		return
	}
}
