package notify

import (
	"sync"
)

// LoadingEvent is the busy signal a widget raises to its container.
type LoadingEvent string

// The only two loading events.
const (
	Loading     LoadingEvent = "loading"
	DoneLoading LoadingEvent = "doneloading"
)

// LoadingListener receives loading transitions.
type LoadingListener func(LoadingEvent)

// BusyTracker counts overlapping busy sections (a search, a save, a
// refresh) and turns them into loading transitions: Loading when the count
// leaves zero, DoneLoading when it returns to zero. Overlapping sections
// never produce duplicate events.
//
// Listeners run synchronously and must not call back into the tracker.
type BusyTracker struct {
	mu        sync.Mutex
	depth     int
	listeners []LoadingListener

	// emitMu orders listener calls so a DoneLoading can never overtake the
	// Loading that preceded it.
	emitMu sync.Mutex
}

// NewBusyTracker creates a tracker with optional initial listeners.
func NewBusyTracker(listeners ...LoadingListener) *BusyTracker {
	return &BusyTracker{listeners: listeners}
}

// OnLoading registers a listener for loading transitions.
func (b *BusyTracker) OnLoading(l LoadingListener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Begin opens a busy section. The returned function closes it; calling it
// more than once has no further effect.
func (b *BusyTracker) Begin() (end func()) {
	b.emitMu.Lock()
	b.mu.Lock()
	b.depth++
	first := b.depth == 1
	listeners := b.listeners
	b.mu.Unlock()
	if first {
		emit(listeners, Loading)
	}
	b.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(b.end)
	}
}

func (b *BusyTracker) end() {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.depth == 0 {
		b.mu.Unlock()
		return
	}
	b.depth--
	last := b.depth == 0
	listeners := b.listeners
	b.mu.Unlock()

	if last {
		emit(listeners, DoneLoading)
	}
}

// Busy reports whether any section is open.
func (b *BusyTracker) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth > 0
}

func emit(listeners []LoadingListener, ev LoadingEvent) {
	for _, l := range listeners {
		l(ev)
	}
}
