// Package watch registers named background tasks that fire when a BLE
// peripheral disconnects. It stands in for a platform background-task
// scheduler: a registration is armed until it is unregistered, and while
// armed it may keep the link alive by reconnecting with backoff.
package watch

import (
	"context"
	"errors"
	"time"

	"github.com/chaz8081/botracer/internal/ble"
)

var (
	// ErrAlreadyRegistered is returned when a task name is taken.
	ErrAlreadyRegistered = errors.New("watch: task already registered")
	// ErrUnknownEntryPoint is returned when no handler serves the entry point.
	ErrUnknownEntryPoint = errors.New("watch: unknown entry point")
)

// Event describes one trigger of a registered task.
type Event struct {
	TaskName string
	Address  string
	Time     time.Time
}

// Handler is the body of a background task.
type Handler interface {
	Run(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Run(ctx context.Context, event Event) error { return f(ctx, event) }

// TaskSpec describes a disconnection-triggered task.
type TaskSpec struct {
	Name               string
	EntryPoint         string
	Peripheral         ble.Peripheral
	MaintainConnection bool // reconnect after each disconnect while armed
}

// Registration is a live task registration.
type Registration interface {
	Name() string
	// Unregister disarms the trigger. In-flight runs are cancelled only
	// when cancelTask is true.
	Unregister(cancelTask bool) error
}

// Registrar creates and enumerates task registrations.
type Registrar interface {
	Register(spec TaskSpec) (Registration, error)
	Lookup(name string) (Registration, bool)
	All() map[string]Registration
}

// backoffDelay returns the reconnection delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	max := time.Duration(maxSeconds) * time.Second
	if attempt >= 30 {
		return max
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > max {
		return max
	}
	return delay
}
