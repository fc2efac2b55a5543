// Package notify provides the ports fleetdeck uses to talk to its host:
// user-visible notifications, the busy/loading signal, and navigation.
//
// Notifications are fire-and-forget. The core never inspects a result, so
// a Notifier has no error return.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification.
type Severity string

// Severity constants.
const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a user-visible message such as a toast.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if n.Severity == SeverityError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "notification",
		slog.String("severity", string(n.Severity)),
		slog.String("title", n.Title),
		slog.String("message", n.Message),
	)
}

// Multi fans a notification out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) {
		for _, x := range notifiers {
			x.Notify(ctx, n)
		}
	})
}

// Delivered is a notification as seen by a Recorder.
type Delivered struct {
	ID string `json:"id"`
	Notification
	SentAt time.Time `json:"sent_at"`
}

// Recorder keeps every notification it receives. It is the test double
// for widget tests and backs the CLI's notification history.
type Recorder struct {
	mu        sync.RWMutex
	delivered []Delivered
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.delivered = append(r.delivered, Delivered{
		ID:           fmt.Sprintf("ntf-%s", uuid.New().String()[:8]),
		Notification: n,
		SentAt:       time.Now(),
	})
}

// All returns every recorded notification in delivery order.
func (r *Recorder) All() []Delivered {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Delivered, len(r.delivered))
	copy(out, r.delivered)
	return out
}

// BySeverity returns the recorded notifications of one severity.
func (r *Recorder) BySeverity(s Severity) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Notification
	for _, d := range r.delivered {
		if d.Severity == s {
			out = append(out, d.Notification)
		}
	}
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.delivered) == 0 {
		return Notification{}, false
	}
	return r.delivered[len(r.delivered)-1].Notification, true
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.delivered)
}

// Reset clears the history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = nil
}
