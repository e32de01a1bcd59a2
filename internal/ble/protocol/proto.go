// Package protocol implements the CannyBot motion frame, the Link Loss
// alert-level frame and the persisted alert settings record.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidValue is returned for NaN or infinite motion inputs.
	ErrInvalidValue = errors.New("protocol: motion value must be finite")
	// ErrInvalidAlertLevel is returned for unknown alert-level ordinals or names.
	ErrInvalidAlertLevel = errors.New("protocol: invalid alert level")
)

// MotionFrameSize is the length of the vendor control frame.
const MotionFrameSize = 4

// MotionFrame is the CannyBot control frame.
//
//	byte 0: x  (255 - steer)
//	byte 1: y  (steer)
//	byte 2: b  (buttons, not driven by the controller)
//	byte 3: z  (255 - speed)
type MotionFrame struct {
	X, Y, B, Z byte
}

// DefaultMotionFrame is the state of a freshly constructed controller:
// centred, stopped.
func DefaultMotionFrame() MotionFrame {
	return MotionFrame{X: 0, Y: 0, B: 0, Z: 255}
}

// Marshal encodes the frame as [x, y, b, z].
func (f MotionFrame) Marshal() []byte {
	return []byte{f.X, f.Y, f.B, f.Z}
}

// UnmarshalMotionFrame decodes a 4-byte control frame.
func UnmarshalMotionFrame(data []byte) (MotionFrame, error) {
	if len(data) != MotionFrameSize {
		return MotionFrame{}, fmt.Errorf("protocol: motion frame must be %d bytes, got %d", MotionFrameSize, len(data))
	}
	return MotionFrame{X: data[0], Y: data[1], B: data[2], Z: data[3]}, nil
}

// WithSteer returns a copy with x = 255 - round(v) and y = round(v).
func (f MotionFrame) WithSteer(v float64) (MotionFrame, error) {
	b, err := WrapByte(v)
	if err != nil {
		return f, err
	}
	f.X = 255 - b
	f.Y = b
	return f, nil
}

// WithSpeed returns a copy with z = 255 - round(v).
func (f MotionFrame) WithSpeed(v float64) (MotionFrame, error) {
	b, err := WrapByte(v)
	if err != nil {
		return f, err
	}
	f.Z = 255 - b
	return f, nil
}

func (f MotionFrame) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", f.X, f.Y, f.B, f.Z)
}

// WrapByte rounds v to the nearest integer and wraps it modulo 256, so -1
// encodes as 255 and 256 as 0.
func WrapByte(v float64) (byte, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidValue
	}
	m := math.Mod(math.Round(v), 256)
	if m < 0 {
		m += 256
	}
	return byte(m), nil
}

// AlertLevel is the Link Loss alert level (Bluetooth SIG 0x2A06).
type AlertLevel uint8

const (
	AlertLevelNone AlertLevel = 0
	AlertLevelMild AlertLevel = 1
	AlertLevelHigh AlertLevel = 2
)

var alertLevelNames = [...]string{"None", "Mild", "High"}

// Valid reports whether l is a defined level.
func (l AlertLevel) Valid() bool {
	return int(l) < len(alertLevelNames)
}

func (l AlertLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("AlertLevel(%d)", uint8(l))
	}
	return alertLevelNames[l]
}

// ParseAlertLevel parses a level name, case-insensitively.
func ParseAlertLevel(s string) (AlertLevel, error) {
	for i, name := range alertLevelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return AlertLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAlertLevel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (l AlertLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlertLevel, uint8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *AlertLevel) UnmarshalText(text []byte) error {
	v, err := ParseAlertLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalAlertLevel encodes the 1-byte Alert-Level frame.
func MarshalAlertLevel(l AlertLevel) ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlertLevel, uint8(l))
	}
	return []byte{byte(l)}, nil
}

// UnmarshalAlertLevel decodes a 1-byte Alert-Level frame, rejecting
// ordinals outside the defined range.
func UnmarshalAlertLevel(data []byte) (AlertLevel, error) {
	if len(data) != 1 {
		return 0, fmt.Errorf("protocol: alert level frame must be 1 byte, got %d", len(data))
	}
	l := AlertLevel(data[0])
	if !l.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAlertLevel, data[0])
	}
	return l, nil
}
