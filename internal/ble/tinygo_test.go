package ble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryError(t *testing.T) {
	svc := []string{LinkLossServiceUUID}

	tests := []struct {
		name         string
		found        int
		err          error
		wantNil      bool
		wantNotFound bool
	}{
		{name: "found", found: 1, wantNil: true},
		{name: "empty result", found: 0, wantNotFound: true},
		{name: "bluez missing services", err: errors.New("bluetooth: could not find some services"), wantNotFound: true},
		{name: "bluez missing characteristics", err: errors.New("bluetooth: could not find some characteristics"), wantNotFound: true},
		{name: "hci service not found", err: errors.New("bluetooth: service not found"), wantNotFound: true},
		{name: "timeout", err: errors.New("timeout on DiscoverServices")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := discoveryError("service", svc, tt.found, tt.err)
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, IsNotFound(err))
			if !tt.wantNotFound {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestConnectWithContextReturnsResult(t *testing.T) {
	got, err := connectWithContext(testContext(t),
		func() (string, error) { return "link", nil },
		func(string) { t.Error("abandon called for a delivered connection") },
	)
	require.NoError(t, err)
	assert.Equal(t, "link", got)

	boom := errors.New("boom")
	_, err = connectWithContext(testContext(t),
		func() (string, error) { return "", boom },
		func(string) {},
	)
	assert.ErrorIs(t, err, boom)
}

func TestConnectWithContextAbandonsLateConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	release := make(chan struct{})
	abandoned := make(chan string, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := connectWithContext(ctx,
		func() (string, error) {
			<-release
			return "late link", nil
		},
		func(d string) { abandoned <- d },
	)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	select {
	case d := <-abandoned:
		assert.Equal(t, "late link", d)
	case <-time.After(2 * time.Second):
		t.Fatal("late connection was not disconnected")
	}
}

func TestConnectWithContextLateFailureIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	release := make(chan struct{})
	returned := make(chan struct{})
	abandoned := make(chan string, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := connectWithContext(ctx,
		func() (string, error) {
			defer close(returned)
			<-release
			return "", errors.New("refused")
		},
		func(d string) { abandoned <- d },
	)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-returned
	select {
	case d := <-abandoned:
		t.Fatalf("failed connection %q was handed to abandon", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMACString(t *testing.T) {
	id, err := AddressID("a:b:c:d:e:f")
	require.NoError(t, err)
	assert.Equal(t, "0A:0B:0C:0D:0E:0F", MACString(id))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", MACString("aabbccddeeff"))
}
