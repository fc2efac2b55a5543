// Package query binds a parameterized fetch to a live, cached result.
//
// A Query holds one parameter at a time. Binding a new parameter starts an
// asynchronous fetch; the previous data or error stays visible until the
// fetch settles (stale-while-revalidate). Invalidate re-fetches the current
// parameter, typically after a mutation.
//
// Every fetch is stamped with a sequence number. When a fetch settles, its
// result is applied only if no newer fetch has been started since; older
// results are discarded regardless of the order in which they arrive.
//
//	detail := query.New(func(ctx context.Context, id string) (record.Record, error) {
//	    return loadBoat(ctx, id)
//	}, query.WithName("boat-detail"), query.WithSkipZero())
//
//	detail.OnChange(func(s query.State[string, record.Record]) { render(s) })
//	detail.Bind(ctx, "boat-1")
//
// Design Influences:
//   - stale-while-revalidate caching
//   - request sequencing in reactive data-binding layers
package query

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
)

// Fetcher loads the result for a parameter.
type Fetcher[P comparable, R any] func(ctx context.Context, param P) (R, error)

// State is a snapshot of a query binding. Data and Err are never both set.
type State[P comparable, R any] struct {
	// Parameter is the bound parameter.
	Parameter P

	// Bound is false until the first Bind.
	Bound bool

	// Data is the last successful result. Valid only when HasData is true.
	Data R

	// HasData reports whether Data holds a result.
	HasData bool

	// Err is the last fetch failure, a *FetchError.
	Err error

	// Loading is true while a fetch for the current parameter is outstanding.
	Loading bool

	// Seq is the sequence number of the fetch that produced this state.
	Seq uint64
}

// Placeholder reports whether the query is bound but holds neither data nor
// an error and is not loading.
func (s State[P, R]) Placeholder() bool {
	return !s.HasData && s.Err == nil && !s.Loading
}

// FetchError records a failed fetch.
type FetchError struct {
	Query     string
	Parameter any
	Seq       uint64
	Err       error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("query %s: fetch %d for %v failed: %v", e.Query, e.Seq, e.Parameter, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Option configures a Query.
type Option func(*options)

type options struct {
	name     string
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	timeout  time.Duration
	skipZero bool
}

// WithName names the query in logs, metrics and spans.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(o *options) {
		o.spans = s
	}
}

// WithTimeout bounds each fetch. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSkipZero treats the zero parameter as "nothing selected": binding it
// issues no fetch, clears data and error, and supersedes any fetch in
// flight.
func WithSkipZero() Option {
	return func(o *options) {
		o.skipZero = true
	}
}

// Query is a live, cached binding of a parameter to a fetch result. It is
// safe for concurrent use.
type Query[P comparable, R any] struct {
	fetcher Fetcher[P, R]
	opts    options

	mu        sync.Mutex
	state     State[P, R]
	seq       uint64
	pending   chan struct{} // closed when the current fetch settles
	observers map[int]func(State[P, R])
	nextObs   int
	version   uint64
	closed    bool

	// emitMu serializes observer calls; emitted is the newest version
	// delivered and is guarded by emitMu.
	emitMu  sync.Mutex
	emitted uint64
}

// New creates a query around fetcher. Nothing is fetched until Bind.
func New[P comparable, R any](fetcher Fetcher[P, R], opts ...Option) *Query[P, R] {
	o := options{name: "query"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = observability.NoopMetrics{}
	}
	if o.spans == nil {
		o.spans = observability.NoopSpanManager{}
	}
	o.logger = o.logger.With(slog.String("query", o.name))

	return &Query[P, R]{
		fetcher:   fetcher,
		opts:      o,
		observers: make(map[int]func(State[P, R])),
	}
}

// Name returns the query name.
func (q *Query[P, R]) Name() string {
	return q.opts.name
}

// Bind sets the parameter. A parameter equal to the current one is a no-op;
// otherwise a fetch starts and Bind returns without waiting for it.
func (q *Query[P, R]) Bind(ctx context.Context, param P) {
	q.mu.Lock()
	if q.closed || (q.state.Bound && q.state.Parameter == param) {
		q.mu.Unlock()
		return
	}

	q.state.Parameter = param
	q.state.Bound = true

	var zero P
	if q.opts.skipZero && param == zero {
		q.placeholderLocked()
		return
	}
	q.startLocked(ctx)
}

// Invalidate re-fetches the current parameter even if it has not changed.
// It does nothing before the first Bind or while the query is in the
// placeholder state.
func (q *Query[P, R]) Invalidate(ctx context.Context) {
	q.mu.Lock()
	var zero P
	if q.closed || !q.state.Bound || (q.opts.skipZero && q.state.Parameter == zero) {
		q.mu.Unlock()
		return
	}
	q.startLocked(ctx)
}

// State returns the latest state. It never blocks on a fetch.
func (q *Query[P, R]) State() State[P, R] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Seq returns the sequence number of the most recently started fetch.
func (q *Query[P, R]) Seq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

// Wait blocks until no fetch is outstanding or ctx is done.
func (q *Query[P, R]) Wait(ctx context.Context) error {
	q.mu.Lock()
	ch := q.pending
	q.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnChange registers fn to receive state changes. Observers run
// synchronously on the goroutine that produced the change, one at a time,
// and must not call Bind or Invalidate on the same query.
func (q *Query[P, R]) OnChange(fn func(State[P, R])) (cancel func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextObs
	q.nextObs++
	q.observers[id] = fn

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.observers, id)
	}
}

// Close discards any outstanding fetch and stops further fetches.
func (q *Query[P, R]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.seq++
	q.state.Loading = false
	q.settleLocked()
	q.observers = make(map[int]func(State[P, R]))
}

// placeholderLocked clears the result and supersedes any running fetch.
// Called with q.mu held; releases it.
func (q *Query[P, R]) placeholderLocked() {
	q.seq++
	var zero R
	q.state.Data = zero
	q.state.HasData = false
	q.state.Err = nil
	q.state.Loading = false
	q.state.Seq = q.seq
	q.settleLocked()
	q.emitUnlock()
}

// startLocked begins a fetch for the current parameter. Called with q.mu
// held; releases it.
func (q *Query[P, R]) startLocked(ctx context.Context) {
	q.seq++
	seq := q.seq
	param := q.state.Parameter

	q.state.Loading = true
	if q.pending == nil {
		q.pending = make(chan struct{})
	}
	q.emitUnlock()

	go q.run(context.WithoutCancel(ctx), param, seq)
}

func (q *Query[P, R]) run(ctx context.Context, param P, seq uint64) {
	if q.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.timeout)
		defer cancel()
	}

	ctx, span := q.opts.spans.StartFetchSpan(ctx, q.opts.name, seq)
	observability.LogFetchStart(q.opts.logger, q.opts.name, seq)
	start := time.Now()

	data, err := q.fetch(ctx, param)

	duration := time.Since(start)
	q.opts.spans.EndSpanWithError(span, err)

	q.mu.Lock()
	if seq != q.seq {
		latest := q.seq
		q.mu.Unlock()
		q.opts.metrics.RecordStaleDiscard(ctx, q.opts.name)
		observability.LogFetchDiscarded(q.opts.logger, q.opts.name, seq, latest)
		return
	}
	q.opts.metrics.RecordFetch(ctx, q.opts.name, duration, err)

	if err != nil {
		observability.LogFetchError(q.opts.logger, q.opts.name, seq, err)
		var zero R
		q.state.Data = zero
		q.state.HasData = false
		q.state.Err = &FetchError{Query: q.opts.name, Parameter: param, Seq: seq, Err: err}
	} else {
		observability.LogFetchComplete(q.opts.logger, q.opts.name, seq, float64(duration.Milliseconds()))
		q.state.Data = data
		q.state.HasData = true
		q.state.Err = nil
	}
	q.state.Loading = false
	q.state.Seq = seq
	q.settleLocked()
	q.emitUnlock()
}

// fetch calls the fetcher, converting a panic into an error.
func (q *Query[P, R]) fetch(ctx context.Context, param P) (data R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return q.fetcher(ctx, param)
}

// settleLocked releases waiters.
func (q *Query[P, R]) settleLocked() {
	if q.pending != nil {
		close(q.pending)
		q.pending = nil
	}
}

// emitUnlock snapshots state and observers, releases q.mu and notifies
// observers. A snapshot overtaken by a newer one before delivery is
// dropped, so observers never see state go backwards.
func (q *Query[P, R]) emitUnlock() {
	q.version++
	version := q.version
	snapshot := q.state
	observers := make([]func(State[P, R]), 0, len(q.observers))
	for i := 0; i < q.nextObs; i++ {
		if fn, ok := q.observers[i]; ok {
			observers = append(observers, fn)
		}
	}
	q.mu.Unlock()

	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	if version <= q.emitted {
		return
	}
	q.emitted = version

	for _, fn := range observers {
		fn(snapshot)
	}
}

// Derive maps the data of a state through fn. ok is false when the state
// holds no data.
func Derive[P comparable, R, D any](s State[P, R], fn func(R) D) (D, bool) {
	if !s.HasData {
		var zero D
		return zero, false
	}
	return fn(s.Data), true
}
