package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/observability"
)

// Scope is the breadth of message delivery.
type Scope int

const (
	// ScopeComponent limits delivery to subscribers in the publisher's area.
	ScopeComponent Scope = iota

	// ScopeApplication delivers to every subscriber in the process.
	ScopeApplication
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeComponent:
		return "component"
	case ScopeApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Channel names a message stream.
type Channel string

// Message is the envelope delivered to handlers. Messages are immutable
// once published and are not retained after delivery.
type Message struct {
	ID          string
	Channel     Channel
	Scope       Scope
	Area        string
	Payload     any
	PublishedAt time.Time
}

// Handler processes a delivered message. A returned error is reported
// through Config.OnError and the logger; it does not stop delivery.
type Handler func(ctx context.Context, msg Message) error

// Config configures bus behavior.
type Config struct {
	// Logger receives delivery failures. Default: slog.Default()
	Logger *slog.Logger

	// Metrics records publish and delivery counts. Default: no-op.
	Metrics observability.MetricsRecorder

	// Spans traces publishes. Default: no-op.
	Spans observability.SpanManager

	// OnError is called when a handler returns an error or panics.
	OnError func(msg Message, subscriptionID string, err error)
}

// Sentinel errors.
var (
	// ErrBusClosed indicates the bus has been closed.
	ErrBusClosed = errors.New("bus is closed")

	// ErrNilHandler indicates Subscribe was called without a handler.
	ErrNilHandler = errors.New("handler is required")

	// ErrAlreadySubscribed indicates the subscriber identity already holds
	// a handle on the channel.
	ErrAlreadySubscribed = errors.New("subscriber already subscribed")
)

// HandlerPanicError wraps a panic recovered from a handler.
type HandlerPanicError struct {
	Value any
	Stack string
}

// Error implements the error interface.
func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

type identityKey struct {
	channel    Channel
	subscriber string
}

// Bus is an in-memory, synchronous publish/subscribe bus. It is safe for
// concurrent use; handlers run on the publishing goroutine, outside the
// bus lock, so they may publish or subscribe themselves.
type Bus struct {
	config Config

	mu         sync.RWMutex
	byChannel  map[Channel][]*Subscription // insertion order
	byIdentity map[identityKey]*Subscription

	closed atomic.Bool
}

// New creates a bus.
func New(config Config) *Bus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}
	return &Bus{
		config:     config,
		byChannel:  make(map[Channel][]*Subscription),
		byIdentity: make(map[identityKey]*Subscription),
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	subscriber string
	area       string
}

// WithSubscriber sets the subscriber identity. While a subscription with
// this identity is active on a channel, further Subscribe calls with the
// same identity return it instead of registering a new handler.
func WithSubscriber(id string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.subscriber = id
	}
}

// WithArea places the subscription in an area for component-scoped
// delivery.
func WithArea(area string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.area = area
	}
}

// Subscribe registers handler for messages on channel whose scope is equal
// to or broader than scope.
//
// Subscriptions with an identity (WithSubscriber) are deduplicated per
// channel: handler is ignored and the existing handle is returned with
// ErrAlreadySubscribed. Anonymous subscriptions are never deduplicated.
func (b *Bus) Subscribe(channel Channel, scope Scope, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, ErrBusClosed
	}

	key := identityKey{channel: channel, subscriber: cfg.subscriber}
	if cfg.subscriber != "" {
		if existing, ok := b.byIdentity[key]; ok {
			return existing, ErrAlreadySubscribed
		}
	}

	sub := &Subscription{
		id:         uuid.New().String(),
		channel:    channel,
		scope:      scope,
		area:       cfg.area,
		subscriber: cfg.subscriber,
		handler:    handler,
		bus:        b,
	}
	sub.active.Store(true)

	b.byChannel[channel] = append(b.byChannel[channel], sub)
	if cfg.subscriber != "" {
		b.byIdentity[key] = sub
	}
	return sub, nil
}

// PublishOption configures a publish.
type PublishOption func(*Message)

// WithScope sets the message scope. Default: ScopeApplication.
func WithScope(s Scope) PublishOption {
	return func(m *Message) {
		m.Scope = s
	}
}

// WithOrigin sets the publishing area, used for component-scoped delivery.
func WithOrigin(area string) PublishOption {
	return func(m *Message) {
		m.Area = area
	}
}

// Publish delivers payload synchronously to every current, unpaused,
// matching subscriber of channel in subscription order and returns the
// number of handlers invoked. Nothing is queued for subscribers that
// register later.
func (b *Bus) Publish(ctx context.Context, channel Channel, payload any, opts ...PublishOption) (int, error) {
	if b.closed.Load() {
		return 0, ErrBusClosed
	}

	msg := Message{
		ID:          uuid.New().String(),
		Channel:     channel,
		Scope:       ScopeApplication,
		Payload:     payload,
		PublishedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&msg)
	}

	ctx, span := b.config.Spans.StartPublishSpan(ctx, string(channel))

	b.mu.RLock()
	subs := make([]*Subscription, len(b.byChannel[channel]))
	copy(subs, b.byChannel[channel])
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if !sub.active.Load() || sub.paused.Load() || !sub.matches(msg) {
			continue
		}
		delivered++

		if err := sub.deliver(ctx, msg); err != nil {
			b.config.Logger.Warn("handler failed",
				slog.String("channel", string(channel)),
				slog.String("subscription_id", sub.id),
				slog.String("subscriber", sub.subscriber),
				slog.String("error", err.Error()),
			)
			if b.config.OnError != nil {
				b.config.OnError(msg, sub.id, err)
			}
		}
	}

	b.config.Spans.AddSpanEvent(ctx, "delivered", attribute.Int("count", delivered))
	b.config.Spans.EndSpanWithError(span, nil)
	b.config.Metrics.RecordPublish(ctx, string(channel), delivered)
	observability.LogPublish(b.config.Logger, string(channel), delivered)

	return delivered, nil
}

// Subscribers returns the number of active subscriptions on channel.
func (b *Bus) Subscribers(channel Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byChannel[channel])
}

// Close shuts down the bus and deactivates all subscriptions.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.byChannel {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	b.byChannel = make(map[Channel][]*Subscription)
	b.byIdentity = make(map[identityKey]*Subscription)
	return nil
}

// remove drops sub from the bus indexes.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.byChannel[sub.channel]
	for i, s := range subs {
		if s == sub {
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.byChannel[sub.channel] = next
			break
		}
	}
	if len(b.byChannel[sub.channel]) == 0 {
		delete(b.byChannel, sub.channel)
	}

	key := identityKey{channel: sub.channel, subscriber: sub.subscriber}
	if b.byIdentity[key] == sub {
		delete(b.byIdentity, key)
	}
}

// deliver invokes the handler, converting a panic into an error.
func (s *Subscription) deliver(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return s.handler(ctx, msg)
}
