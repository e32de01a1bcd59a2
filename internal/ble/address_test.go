package ble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressID(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "colon separated", address: "AA:BB:CC:DD:EE:FF", want: "aabbccddeeff"},
		{name: "dash separated", address: "aa-bb-cc-dd-ee-0f", want: "aabbccddee0f"},
		{name: "bare hex", address: "AABBCCDDEE0F", want: "aabbccddee0f"},
		{name: "leading zero octets", address: "00:00:00:00:00:01", want: "000000000001"},
		{name: "unpadded octets", address: "1:2:3:4:5:6", want: "010203040506"},
		{name: "unpadded hex letters", address: "A:B:C:D:E:F", want: "0a0b0c0d0e0f"},
		{name: "mixed padding", address: "aa:b:cc:d:ee:f", want: "aa0bcc0dee0f"},
		{name: "short bare hex", address: "1a2b", wantErr: true},
		{name: "five octets", address: "aa:bb:cc:dd:ee", wantErr: true},
		{name: "seven octets", address: "aa:bb:cc:dd:ee:ff:00", wantErr: true},
		{name: "empty octet", address: "aa::cc:dd:ee:ff", wantErr: true},
		{name: "octet too wide", address: "aab:bb:cc:dd:ee:ff", wantErr: true},
		{name: "empty", address: "", wantErr: true},
		{name: "not hex", address: "zz:bb:cc:dd:ee:ff", wantErr: true},
		{name: "corebluetooth uuid", address: "5b7c1e2a-4c3d-4f5e-8a9b-0c1d2e3f4a5b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddressID(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 12)
		})
	}
}

func TestNotFoundError(t *testing.T) {
	svc := &NotFoundError{Resource: "service", UUIDs: []string{LinkLossServiceUUID}}
	assert.Contains(t, svc.Error(), LinkLossServiceUUID)

	char := &NotFoundError{Resource: "characteristic", UUIDs: []string{RacerServiceUUID, RacerWriteCharUUID}}
	assert.Contains(t, char.Error(), "not found in service")

	wrapped := errors.Join(errors.New("discover"), char)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := &TransportError{Op: "write", UUID: AlertLevelCharUUID, Err: ErrNotConnected}
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Contains(t, err.Error(), "write")
}
