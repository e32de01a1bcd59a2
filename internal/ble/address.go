package ble

import (
	"fmt"
	"strconv"
	"strings"
)

// AddressID derives the stable 12-hex-digit identity of a peripheral from
// its hardware address. Colon- or dash-separated MAC strings with six octets
// (each one or two hex digits) and bare 12-digit hex strings are accepted;
// the result is lowercase.
func AddressID(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("ble: empty address")
	}

	if !strings.ContainsAny(address, ":-") {
		if len(address) != 12 {
			return "", fmt.Errorf("ble: address %q is not a 48-bit hardware address", address)
		}
		if _, err := strconv.ParseUint(address, 16, 64); err != nil {
			return "", fmt.Errorf("ble: parse address %q: %w", address, err)
		}
		return strings.ToLower(address), nil
	}

	octets := strings.FieldsFunc(address, func(r rune) bool { return r == ':' || r == '-' })
	if len(octets) != 6 || strings.Count(address, ":")+strings.Count(address, "-") != 5 {
		return "", fmt.Errorf("ble: address %q is not a 48-bit hardware address", address)
	}
	var b strings.Builder
	for _, o := range octets {
		v, err := strconv.ParseUint(o, 16, 8)
		if err != nil {
			return "", fmt.Errorf("ble: parse address %q: %w", address, err)
		}
		fmt.Fprintf(&b, "%02x", v)
	}
	return b.String(), nil
}

// MACString formats an address id as the uppercase colon-separated MAC that
// BlueZ and tinygo expect, e.g. "AA:BB:CC:DD:EE:0F".
func MACString(id string) string {
	id = strings.ToUpper(id)
	parts := make([]string, 0, 6)
	for i := 0; i+2 <= len(id); i += 2 {
		parts = append(parts, id[i:i+2])
	}
	return strings.Join(parts, ":")
}
