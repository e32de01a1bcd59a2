// Package alert implements the background task that tells the phone user
// a racer has dropped its connection.
package alert

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

// EntryPoint is the name controllers register their watchers against.
const EntryPoint = "botracer.alert.DisconnectTask"

// Task reads the persisted settings for the disconnected peripheral and
// notifies the user when AlertOnPhone is set. Device-side alerting needs no
// action here: the peripheral was told its level while connected.
type Task struct {
	store    store.KeyValueStore
	notifier Notifier
	logger   logrus.FieldLogger
}

var _ watch.Handler = (*Task)(nil)

// NewTask creates the task. A nil logger gets a default logrus logger.
func NewTask(s store.KeyValueStore, n Notifier, logger logrus.FieldLogger) *Task {
	if logger == nil {
		logger = logrus.New()
	}
	return &Task{store: s, notifier: n, logger: logger}
}

// Run handles one disconnection. The task name is the peripheral's address id.
func (t *Task) Run(ctx context.Context, ev watch.Event) error {
	log := t.logger.WithFields(logrus.Fields{"task": ev.TaskName, "address": ev.Address})

	record, ok, err := t.store.Get(ev.TaskName)
	if err != nil {
		return fmt.Errorf("alert: load settings for %s: %w", ev.TaskName, err)
	}
	if !ok {
		log.Debug("[ALERT] no settings persisted, nothing to do")
		return nil
	}
	settings, err := protocol.UnmarshalRecord(record)
	if err != nil {
		return fmt.Errorf("alert: settings for %s: %w", ev.TaskName, err)
	}
	if !settings.AlertOnPhone {
		log.Debug("[ALERT] phone alert disabled")
		return nil
	}

	n := Notification{
		Title:   "Racer disconnected",
		Body:    fmt.Sprintf("Lost connection to %s", ev.Address),
		Address: ev.Address,
		Time:    ev.Time,
	}
	if err := t.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("alert: notify: %w", err)
	}
	log.Info("[ALERT] user notified")
	return nil
}
