package fleetdeck

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/bus"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// App holds what the widgets of one session share: the message bus, the
// record service and the notification and navigation surfaces.
type App struct {
	bus       *bus.Bus
	svc       record.Service
	notifier  notify.Notifier
	navigator notify.Navigator
	labels    Labels

	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	fetchTimeout time.Duration
	saveTimeout  time.Duration
}

// AppOption configures an App.
type AppOption func(*App)

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithNotifier sets where save outcomes are shown. Default: a LogNotifier.
func WithNotifier(n notify.Notifier) AppOption {
	return func(a *App) {
		a.notifier = n
	}
}

// WithNavigator sets the navigation surface used by DetailTabs.
func WithNavigator(n notify.Navigator) AppOption {
	return func(a *App) {
		a.navigator = n
	}
}

// WithLabels overrides the display labels.
func WithLabels(l Labels) AppOption {
	return func(a *App) {
		a.labels = l
	}
}

// WithMetrics enables metrics collection.
func WithMetrics(m observability.MetricsRecorder) AppOption {
	return func(a *App) {
		a.metrics = m
	}
}

// WithSpans enables tracing.
func WithSpans(s observability.SpanManager) AppOption {
	return func(a *App) {
		a.spans = s
	}
}

// WithFetchTimeout bounds every query fetch.
func WithFetchTimeout(d time.Duration) AppOption {
	return func(a *App) {
		a.fetchTimeout = d
	}
}

// WithSaveTimeout bounds every save.
func WithSaveTimeout(d time.Duration) AppOption {
	return func(a *App) {
		a.saveTimeout = d
	}
}

// NewApp creates an App around svc with a fresh bus.
func NewApp(svc record.Service, opts ...AppOption) (*App, error) {
	if svc == nil {
		return nil, errors.New("record service is required")
	}

	a := &App{
		svc:    svc,
		labels: DefaultLabels(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.notifier == nil {
		a.notifier = notify.LogNotifier{Logger: a.logger}
	}
	if a.metrics == nil {
		a.metrics = observability.NoopMetrics{}
	}
	if a.spans == nil {
		a.spans = observability.NoopSpanManager{}
	}

	a.bus = bus.New(bus.Config{
		Logger:  a.logger.With(slog.String("component", "bus")),
		Metrics: a.metrics,
		Spans:   a.spans,
	})
	return a, nil
}

// Bus returns the shared message bus.
func (a *App) Bus() *bus.Bus {
	return a.bus
}

// Service returns the record service.
func (a *App) Service() record.Service {
	return a.svc
}

// Close shuts down the bus. Widgets stop receiving selections.
func (a *App) Close() error {
	if err := a.bus.Close(); err != nil {
		return fmt.Errorf("close bus: %w", err)
	}
	return nil
}

// newWidgetID returns a unique subscriber identity for a widget.
func newWidgetID(kind string) string {
	return kind + "-" + uuid.New().String()[:8]
}
