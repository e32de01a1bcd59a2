package alert

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func event() watch.Event {
	return watch.Event{
		TaskName: "aabbccddeeff",
		Address:  "AA:BB:CC:DD:EE:FF",
		Time:     time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

func TestTaskNotifiesWhenAlertOnPhone(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set("aabbccddeeff", protocol.AlertSettings{AlertOnPhone: true}.MarshalRecord()))
	n := &recordingNotifier{}
	logger, _ := test.NewNullLogger()

	require.NoError(t, NewTask(s, n, logger).Run(context.Background(), event()))

	require.Len(t, n.sent, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", n.sent[0].Address)
	assert.Contains(t, n.sent[0].Body, "AA:BB:CC:DD:EE:FF")
}

func TestTaskSkipsWithoutPhoneAlert(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{name: "device only", record: "false,true,High"},
		{name: "nothing", record: "false,false,None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			require.NoError(t, s.Set("aabbccddeeff", tt.record))
			n := &recordingNotifier{}

			require.NoError(t, NewTask(s, n, nil).Run(context.Background(), event()))
			assert.Empty(t, n.sent)
		})
	}
}

func TestTaskWithoutRecord(t *testing.T) {
	n := &recordingNotifier{}
	require.NoError(t, NewTask(store.NewMemoryStore(), n, nil).Run(context.Background(), event()))
	assert.Empty(t, n.sent)
}

func TestTaskMalformedRecord(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set("aabbccddeeff", "maybe,false,High"))

	err := NewTask(s, &recordingNotifier{}, nil).Run(context.Background(), event())
	assert.ErrorIs(t, err, protocol.ErrMalformedRecord)
}

func TestTaskNotifierFailure(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set("aabbccddeeff", "true,false,None"))
	boom := errors.New("no display")

	err := NewTask(s, &recordingNotifier{err: boom}, nil).Run(context.Background(), event())
	assert.ErrorIs(t, err, boom)
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	err := LogNotifier{Logger: logger}.Notify(context.Background(), Notification{
		Title: "Racer disconnected", Body: "Lost connection", Address: "AA:BB:CC:DD:EE:FF",
	})
	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", hook.LastEntry().Data["address"])
}

func TestWriterNotifier(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	err := NewWriterNotifier(&buf).Notify(context.Background(), Notification{
		Title: "Racer disconnected", Body: "Lost connection", Time: event().Time,
	})
	require.NoError(t, err)
	assert.Equal(t, "\a[12:00:00] Racer disconnected: Lost connection\n", buf.String())
}

func TestWriterNotifierHighlightsTitle(t *testing.T) {
	var buf bytes.Buffer
	wn := NewWriterNotifier(&buf)
	wn.title.EnableColor()

	require.NoError(t, wn.Notify(context.Background(), Notification{Title: "Racer disconnected", Time: event().Time}))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "Racer disconnected")
}
