package ble

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation needs a live connection.
var ErrNotConnected = errors.New("ble: peripheral not connected")

// NotFoundError represents an error when a BLE resource is not found.
type NotFoundError struct {
	Resource string   // "service" or "characteristic"
	UUIDs    []string // [serviceUUID] or [serviceUUID, charUUID]
}

func (e *NotFoundError) Error() string {
	switch len(e.UUIDs) {
	case 0:
		return fmt.Sprintf("ble: %s not found", e.Resource)
	case 1:
		return fmt.Sprintf("ble: %s %q not found", e.Resource, e.UUIDs[0])
	default:
		return fmt.Sprintf("ble: %s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
	}
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// TransportError is a failed read or write on an existing characteristic,
// typically caused by the peripheral dropping the link mid-operation.
type TransportError struct {
	Op   string // "write" or "write-without-response"
	UUID string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ble: %s %s: %v", e.Op, e.UUID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
