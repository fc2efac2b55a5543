// Package edit batches field edits and persists them through the record
// service.
//
// A Pipeline accumulates edits in a record.EditSet. Save sends the whole set
// in one ApplyEdits call. On success the set is cleared and the governing
// query is refreshed from the service, so local values are never merged
// back; the service may have adjusted them. On failure the set is kept
// intact for a retry or Cancel, and the service's message is shown to the
// user unchanged.
//
// The set is also discarded by Refresh and Close. One save runs at a time.
// Save, RecordEdit, Cancel and Refresh called while a save is in flight
// fail with ErrSaveInFlight and change nothing.
package edit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/notify"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

// Notification text for save outcomes.
const (
	SuccessTitle   = "Success"
	SuccessMessage = "Ship it!"
	ErrorTitle     = "Error"
)

// Sentinel errors.
var (
	// ErrSaveInFlight is returned while a save is outstanding.
	ErrSaveInFlight = errors.New("save already in progress")

	// ErrInvalidEdit is returned for edits without a record id or to a
	// column that cannot be edited.
	ErrInvalidEdit = errors.New("invalid edit")

	// ErrClosed is returned by RecordEdit and Save after Close.
	ErrClosed = errors.New("edit pipeline closed")
)

// Status is the result of a Save call.
type Status int

const (
	// NoChanges means the edit set was empty and nothing was sent.
	NoChanges Status = iota

	// Saved means the service accepted the edits.
	Saved

	// Failed means the service rejected the edits.
	Failed

	// Rejected means another save was in flight or the pipeline was closed.
	Rejected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case NoChanges:
		return "no_changes"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome describes a Save call. Edits is the set that was sent, or the
// pending set when nothing was sent.
type Outcome struct {
	Status Status
	Edits  record.EditSet
}

// SaveError is returned when the service rejects a batch.
type SaveError struct {
	Edits int
	Err   error
}

// Error implements the error interface.
func (e *SaveError) Error() string {
	return fmt.Sprintf("save %d edits: %v", e.Edits, e.Err)
}

// Unwrap returns the service error.
func (e *SaveError) Unwrap() error {
	return e.Err
}

// Message is the service's error message, as shown to the user.
func (e *SaveError) Message() string {
	return e.Err.Error()
}

// Refresher reloads the data an edit affects. *query.Query satisfies it.
type Refresher interface {
	Invalidate(ctx context.Context)
	Wait(ctx context.Context) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(p *Pipeline) {
		p.spans = s
	}
}

// WithTimeout bounds each ApplyEdits call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	svc       record.Service
	refresher Refresher
	notifier  notify.Notifier
	busy      *notify.BusyTracker

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	timeout time.Duration

	mu     sync.Mutex
	edits  record.EditSet
	saving bool
	closed bool
}

// New creates a pipeline. refresher may be nil when nothing needs
// reloading; notifier defaults to notify.Discard and busy to a private
// tracker.
func New(svc record.Service, refresher Refresher, notifier notify.Notifier, busy *notify.BusyTracker, opts ...Option) *Pipeline {
	p := &Pipeline{
		svc:       svc,
		refresher: refresher,
		notifier:  notifier,
		busy:      busy,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.notifier == nil {
		p.notifier = notify.Discard
	}
	if p.busy == nil {
		p.busy = notify.NewBusyTracker()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = observability.NoopMetrics{}
	}
	if p.spans == nil {
		p.spans = observability.NoopSpanManager{}
	}
	return p
}

// RecordEdit sets field of recordID to value in the pending set. A later
// edit to the same field replaces the earlier one.
func (p *Pipeline) RecordEdit(recordID, field string, value any) error {
	if recordID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidEdit)
	}
	if !slices.Contains(record.EditableFields, field) {
		return fmt.Errorf("%w: %s is not editable", ErrInvalidEdit, field)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.saving {
		return ErrSaveInFlight
	}
	p.edits = p.edits.Apply(record.Edit{RecordID: recordID, Field: field, Value: value})
	return nil
}

// Edits returns the pending set.
func (p *Pipeline) Edits() record.EditSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.edits
}

// Cancel discards the pending set.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.saving {
		return ErrSaveInFlight
	}
	p.edits = record.EditSet{}
	return nil
}

// IsBusy reports whether a save, refresh or other tracked section is
// outstanding.
func (p *Pipeline) IsBusy() bool {
	return p.busy.Busy()
}

// Save persists the pending set. An empty set returns NoChanges without
// calling the service. A service failure returns a *SaveError and leaves
// the set intact.
func (p *Pipeline) Save(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Outcome{Status: Rejected}, ErrClosed
	}
	if p.saving {
		pending := p.edits
		p.mu.Unlock()
		return Outcome{Status: Rejected, Edits: pending}, ErrSaveInFlight
	}
	if p.edits.IsEmpty() {
		p.mu.Unlock()
		return Outcome{Status: NoChanges}, nil
	}
	set := p.edits
	p.saving = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.saving = false
		p.mu.Unlock()
	}()

	end := p.busy.Begin()
	defer end()

	if err := p.apply(ctx, set); err != nil {
		p.notifier.Notify(ctx, notify.Notification{
			Severity: notify.SeverityError,
			Title:    ErrorTitle,
			Message:  err.Error(),
		})
		return Outcome{Status: Failed, Edits: set}, &SaveError{Edits: set.Len(), Err: err}
	}

	p.mu.Lock()
	p.edits = record.EditSet{}
	p.mu.Unlock()

	if p.refresher != nil {
		p.refresher.Invalidate(ctx)
	}
	p.notifier.Notify(ctx, notify.Notification{
		Severity: notify.SeveritySuccess,
		Title:    SuccessTitle,
		Message:  SuccessMessage,
	})
	if p.refresher != nil {
		if err := p.refresher.Wait(ctx); err != nil {
			p.logger.Warn("refresh after save did not finish", slog.String("error", err.Error()))
		}
	}

	return Outcome{Status: Saved, Edits: set}, nil
}

func (p *Pipeline) apply(ctx context.Context, set record.EditSet) error {
	ctx, span := p.spans.StartSaveSpan(ctx, set.Len())
	observability.LogSaveStart(p.logger, set.Len())
	elapsed := observability.TimedOperation()
	start := time.Now()

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := p.svc.ApplyEdits(callCtx, set)

	p.metrics.RecordSave(ctx, set.Len(), time.Since(start), err)
	p.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogSaveError(p.logger, set.Len(), err)
		return err
	}
	observability.LogSaveComplete(p.logger, set.Len(), elapsed())
	return nil
}

// Refresh discards the pending set, reloads the governing query and waits
// for it to settle.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if err := p.Cancel(); err != nil {
		return err
	}
	if p.refresher == nil {
		return nil
	}

	end := p.busy.Begin()
	defer end()

	p.refresher.Invalidate(ctx)
	return p.refresher.Wait(ctx)
}

// Close discards the pending set and refuses further edits and saves. A
// save already in flight still completes. Close is idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.edits = record.EditSet{}
}
