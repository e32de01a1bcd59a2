package alert

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Notification is a user-visible alert.
type Notification struct {
	Title   string
	Body    string
	Address string
	Time    time.Time
}

// Notifier presents notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier reports notifications through the logger.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.WithFields(logrus.Fields{
		"address": n.Address,
		"at":      n.Time.Format(time.RFC3339),
	}).Warnf("%s: %s", n.Title, n.Body)
	return nil
}

// WriterNotifier prints notifications to a terminal, ringing the bell. The
// title is highlighted unless color output is disabled (color.NoColor).
type WriterNotifier struct {
	mu    sync.Mutex
	w     io.Writer
	title *color.Color
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w, title: color.New(color.FgRed, color.Bold)}
}

func (wn *WriterNotifier) Notify(_ context.Context, n Notification) error {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	_, err := fmt.Fprintf(wn.w, "\a[%s] %s: %s\n", n.Time.Format("15:04:05"), wn.title.Sprint(n.Title), n.Body)
	return err
}
