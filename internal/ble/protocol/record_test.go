package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRecord(t *testing.T) {
	s := AlertSettings{AlertOnPhone: true, AlertOnDevice: false, Level: AlertLevelHigh}
	assert.Equal(t, "true,false,High", s.MarshalRecord())
	assert.Equal(t, "false,false,None", AlertSettings{}.MarshalRecord())
}

func TestUnmarshalRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		want    AlertSettings
		wantErr bool
	}{
		{
			name:   "own format",
			record: "true,false,High",
			want:   AlertSettings{AlertOnPhone: true, Level: AlertLevelHigh},
		},
		{
			name:   "capitalised booleans",
			record: "False,True,Mild",
			want:   AlertSettings{AlertOnDevice: true, Level: AlertLevelMild},
		},
		{name: "too few fields", record: "true,false", wantErr: true},
		{name: "too many fields", record: "true,false,High,x", wantErr: true},
		{name: "bad bool", record: "yes,false,High", wantErr: true},
		{name: "bad level", record: "true,false,Deafening", wantErr: true},
		{name: "empty", record: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalRecord(tt.record)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWantsWatcher(t *testing.T) {
	assert.False(t, AlertSettings{Level: AlertLevelHigh}.WantsWatcher())
	assert.True(t, AlertSettings{AlertOnPhone: true}.WantsWatcher())
	assert.True(t, AlertSettings{AlertOnDevice: true}.WantsWatcher())
}
