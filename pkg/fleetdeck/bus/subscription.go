package bus

import (
	"sync/atomic"
)

// Subscription is the handle returned by Subscribe. It is owned by the
// subscribing widget.
type Subscription struct {
	id         string
	channel    Channel
	scope      Scope
	area       string
	subscriber string
	handler    Handler
	bus        *Bus

	active atomic.Bool
	paused atomic.Bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Channel returns the subscribed channel.
func (s *Subscription) Channel() Channel {
	return s.channel
}

// Subscriber returns the subscriber identity, or "" for anonymous
// subscriptions.
func (s *Subscription) Subscriber() string {
	return s.subscriber
}

// Active reports whether the subscription still receives messages.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// Unsubscribe removes the subscription. Later calls are no-ops.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.bus.remove(s)
}

// Pause temporarily stops delivery.
func (s *Subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *Subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *Subscription) IsPaused() bool {
	return s.paused.Load()
}

// matches applies the scope rule: the message scope must be at least as
// broad as the subscription scope, and component-scoped messages only reach
// subscriptions in the same area.
func (s *Subscription) matches(msg Message) bool {
	if msg.Scope < s.scope {
		return false
	}
	if msg.Scope == ScopeComponent && msg.Area != s.area {
		return false
	}
	return true
}
