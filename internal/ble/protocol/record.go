package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRecord is returned when a persisted settings record cannot be parsed.
var ErrMalformedRecord = errors.New("protocol: malformed settings record")

// AlertSettings are the per-peripheral alert preferences.
type AlertSettings struct {
	AlertOnPhone  bool
	AlertOnDevice bool
	Level         AlertLevel
}

// WantsWatcher reports whether a disconnection watcher should be armed.
func (s AlertSettings) WantsWatcher() bool {
	return s.AlertOnPhone || s.AlertOnDevice
}

// MarshalRecord encodes the settings as "alertOnPhone,alertOnDevice,Level".
func (s AlertSettings) MarshalRecord() string {
	return strings.Join([]string{
		strconv.FormatBool(s.AlertOnPhone),
		strconv.FormatBool(s.AlertOnDevice),
		s.Level.String(),
	}, ",")
}

// UnmarshalRecord decodes a persisted record. Booleans are matched
// case-insensitively so records written as "True,False,High" load too.
func UnmarshalRecord(record string) (AlertSettings, error) {
	fields := strings.Split(record, ",")
	if len(fields) != 3 {
		return AlertSettings{}, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrMalformedRecord, len(fields), record)
	}

	onPhone, err := parseBool(fields[0])
	if err != nil {
		return AlertSettings{}, fmt.Errorf("%w: alertOnPhone: %v", ErrMalformedRecord, err)
	}
	onDevice, err := parseBool(fields[1])
	if err != nil {
		return AlertSettings{}, fmt.Errorf("%w: alertOnDevice: %v", ErrMalformedRecord, err)
	}
	level, err := ParseAlertLevel(fields[2])
	if err != nil {
		return AlertSettings{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	return AlertSettings{AlertOnPhone: onPhone, AlertOnDevice: onDevice, Level: level}, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
