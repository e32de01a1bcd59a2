package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mod256(v int) byte {
	return byte(((v % 256) + 256) % 256)
}

func TestDefaultMotionFrame(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 255}, DefaultMotionFrame().Marshal())
}

func TestWithSteerBytes(t *testing.T) {
	for v := -300; v <= 600; v++ {
		f, err := DefaultMotionFrame().WithSteer(float64(v))
		require.NoError(t, err)
		data := f.Marshal()
		if data[0] != mod256(255-v) || data[1] != mod256(v) {
			t.Fatalf("WithSteer(%d) = %v, want x=%d y=%d", v, data, mod256(255-v), mod256(v))
		}
		// b and z untouched
		if data[2] != 0 || data[3] != 255 {
			t.Fatalf("WithSteer(%d) changed b/z: %v", v, data)
		}
	}
}

func TestWithSpeedLeavesSteerBytes(t *testing.T) {
	start := MotionFrame{X: 200, Y: 55, B: 7, Z: 255}
	for v := -300; v <= 600; v++ {
		f, err := start.WithSpeed(float64(v))
		require.NoError(t, err)
		assert.Equal(t, []byte{200, 55, 7, mod256(255 - v)}, f.Marshal())
	}
}

func TestWrapByteRounds(t *testing.T) {
	tests := []struct {
		in   float64
		want byte
	}{
		{0.4, 0},
		{0.5, 1},
		{127.6, 128},
		{-0.4, 0},
		{-1, 255},
		{-1.5, 254},
		{256, 0},
		{1e12, byte(math.Mod(1e12, 256))},
	}
	for _, tt := range tests {
		got, err := WrapByte(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "WrapByte(%v)", tt.in)
	}
}

func TestNonFiniteMotionRejected(t *testing.T) {
	f := DefaultMotionFrame()
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, err := f.WithSteer(v)
		assert.ErrorIs(t, err, ErrInvalidValue)
		assert.Equal(t, f, got)

		got, err = f.WithSpeed(v)
		assert.ErrorIs(t, err, ErrInvalidValue)
		assert.Equal(t, f, got)
	}
}

func TestUnmarshalMotionFrame(t *testing.T) {
	f, err := UnmarshalMotionFrame([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, MotionFrame{X: 1, Y: 2, B: 3, Z: 4}, f)
	assert.Equal(t, "[1,2,3,4]", f.String())

	_, err = UnmarshalMotionFrame([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestAlertLevelFrame(t *testing.T) {
	for _, l := range []AlertLevel{AlertLevelNone, AlertLevelMild, AlertLevelHigh} {
		data, err := MarshalAlertLevel(l)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(l)}, data)

		got, err := UnmarshalAlertLevel(data)
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	_, err := MarshalAlertLevel(AlertLevel(3))
	assert.ErrorIs(t, err, ErrInvalidAlertLevel)

	_, err = UnmarshalAlertLevel([]byte{3})
	assert.ErrorIs(t, err, ErrInvalidAlertLevel)

	_, err = UnmarshalAlertLevel(nil)
	assert.Error(t, err)
}

func TestParseAlertLevel(t *testing.T) {
	l, err := ParseAlertLevel("high")
	require.NoError(t, err)
	assert.Equal(t, AlertLevelHigh, l)

	l, err = ParseAlertLevel(" Mild ")
	require.NoError(t, err)
	assert.Equal(t, AlertLevelMild, l)

	_, err = ParseAlertLevel("Loud")
	assert.ErrorIs(t, err, ErrInvalidAlertLevel)

	assert.Equal(t, "AlertLevel(9)", AlertLevel(9).String())
}

func TestAlertLevelText(t *testing.T) {
	var l AlertLevel
	require.NoError(t, l.UnmarshalText([]byte("Mild")))
	assert.Equal(t, AlertLevelMild, l)

	text, err := AlertLevelHigh.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "High", string(text))

	assert.Error(t, l.UnmarshalText([]byte("nope")))
}
