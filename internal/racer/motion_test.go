package racer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/ble/bletest"
	"github.com/chaz8081/botracer/internal/ble/protocol"
)

func newDriven(t *testing.T) (*Controller, *bletest.Characteristic) {
	t.Helper()
	env := newEnv(t)
	p := bletest.NewRacer(racerAddr, false)
	c, err := New(p, env.deps)
	require.NoError(t, err)
	return c, p.Characteristic(ble.RacerServiceUUID, ble.RacerWriteCharUUID)
}

func lastWrite(t *testing.T, char *bletest.Characteristic) bletest.Write {
	t.Helper()
	writes := char.Writes()
	require.NotEmpty(t, writes)
	return writes[len(writes)-1]
}

func TestSteerWritesFrame(t *testing.T) {
	c, char := newDriven(t)

	require.NoError(t, wait(t, c.Steer(100)))

	w := lastWrite(t, char)
	assert.Equal(t, []byte{155, 100, 0, 255}, w.Data)
	assert.False(t, w.WithResponse)
}

func TestSpeedLeavesSteeringAlone(t *testing.T) {
	c, char := newDriven(t)

	require.NoError(t, wait(t, c.Steer(40)))
	require.NoError(t, wait(t, c.SetSpeed(55)))

	assert.Equal(t, []byte{215, 40, 0, 200}, lastWrite(t, char).Data)
	assert.Equal(t, protocol.MotionFrame{X: 215, Y: 40, B: 0, Z: 200}, c.Motion())
}

func TestSteerRoundsAndWraps(t *testing.T) {
	cases := []struct {
		v    float64
		x, y byte
	}{
		{0, 255, 0},
		{127.4, 128, 127},
		{127.5, 127, 128},
		{255, 0, 255},
		{256, 255, 0},
		{-1, 0, 255},
	}
	for _, tc := range cases {
		c, char := newDriven(t)
		require.NoError(t, wait(t, c.Steer(tc.v)), "v=%v", tc.v)
		data := lastWrite(t, char).Data
		assert.Equal(t, tc.x, data[0], "x for v=%v", tc.v)
		assert.Equal(t, tc.y, data[1], "y for v=%v", tc.v)
	}
}

func TestMotionRejectsNonFinite(t *testing.T) {
	c, char := newDriven(t)

	assert.ErrorIs(t, wait(t, c.Steer(math.NaN())), protocol.ErrInvalidValue)
	assert.ErrorIs(t, wait(t, c.SetSpeed(math.Inf(1))), protocol.ErrInvalidValue)
	assert.Empty(t, char.Writes())
	assert.Equal(t, protocol.DefaultMotionFrame(), c.Motion())
}

func TestMotionWriteFailureKeepsRequestedState(t *testing.T) {
	c, char := newDriven(t)
	char.FailWith(ble.ErrNotConnected)

	assert.ErrorIs(t, wait(t, c.Steer(10)), ble.ErrNotConnected)
	assert.Equal(t, protocol.MotionFrame{X: 245, Y: 10, B: 0, Z: 255}, c.Motion())
}

func TestMotionWithoutVendorService(t *testing.T) {
	env := newEnv(t)
	p := bletest.NewPeripheral("Stranger", racerAddr)
	c, err := New(p, env.deps)
	require.NoError(t, err)

	err = wait(t, c.SetSpeed(10))
	assert.True(t, ble.IsNotFound(err))
}
