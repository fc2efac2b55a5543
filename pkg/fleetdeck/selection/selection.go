// Package selection keeps widgets pointed at the same record.
//
// A Coordinator subscribes a widget to the application-wide selection
// channel and rebinds the widget's detail query whenever any widget,
// itself included, publishes a selection.
package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/bus"
)

// Channel carries selection events.
const Channel bus.Channel = "BoatMessageChannel"

// Event announces that a record was selected. An empty RecordID clears the
// selection.
type Event struct {
	RecordID string `json:"recordId"`
}

// ProtocolError reports a selection payload without a usable record id.
type ProtocolError struct {
	Payload any
	Reason  string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed selection event (%T): %s", e.Payload, e.Reason)
}

// Binder receives the selected record id. *query.Query[string, R]
// satisfies it.
type Binder interface {
	Bind(ctx context.Context, recordID string)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(ctx context.Context, recordID string)

// Bind calls f.
func (f BinderFunc) Bind(ctx context.Context, recordID string) {
	f(ctx, recordID)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// Coordinator connects one widget to the selection channel.
type Coordinator struct {
	bus        *bus.Bus
	binder     Binder
	subscriber string
	logger     *slog.Logger

	mu       sync.Mutex
	sub      *bus.Subscription
	selected string
}

// New creates a coordinator and connects it. subscriberID identifies the
// owning widget. It fails with bus.ErrAlreadySubscribed when another
// coordinator already holds that identity on the bus.
func New(b *bus.Bus, binder Binder, subscriberID string, opts ...Option) (*Coordinator, error) {
	if b == nil {
		return nil, errors.New("selection: bus is required")
	}
	if binder == nil {
		return nil, errors.New("selection: binder is required")
	}

	c := &Coordinator{
		bus:        b,
		binder:     binder,
		subscriber: subscriberID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(slog.String("subscriber", subscriberID))

	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect subscribes at application scope. It is a no-op while connected
// and returns bus.ErrAlreadySubscribed when the identity is held elsewhere.
func (c *Coordinator) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil && c.sub.Active() {
		return nil
	}

	// On ErrAlreadySubscribed the returned handle belongs to another
	// coordinator and is not kept.
	sub, err := c.bus.Subscribe(Channel, bus.ScopeApplication, c.handle, bus.WithSubscriber(c.subscriber))
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", Channel, err)
	}
	c.sub = sub
	return nil
}

// Disconnect unsubscribes. Safe to call more than once.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Connected reports whether the coordinator is subscribed.
func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil && c.sub.Active()
}

// Select publishes a selection so every connected widget converges on
// recordID. It returns the number of widgets that received it.
func (c *Coordinator) Select(ctx context.Context, recordID string) (int, error) {
	n, err := c.bus.Publish(ctx, Channel, Event{RecordID: recordID})
	if err != nil {
		return 0, fmt.Errorf("publish selection: %w", err)
	}
	return n, nil
}

// Selected returns the last record id this coordinator bound.
func (c *Coordinator) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Coordinator) handle(ctx context.Context, msg bus.Message) error {
	id, err := Decode(msg.Payload)
	if err != nil {
		c.logger.Warn("ignoring selection event",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		id = ""
	}

	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()

	c.binder.Bind(ctx, id)
	return nil
}

// Decode extracts the record id from a selection payload. It accepts an
// Event, a *Event, a map with a "recordId" key, a JSON object (as []byte,
// json.RawMessage or string) and a bare id string.
func Decode(payload any) (string, error) {
	switch p := payload.(type) {
	case Event:
		return p.RecordID, nil
	case *Event:
		if p == nil {
			return "", &ProtocolError{Payload: payload, Reason: "nil event"}
		}
		return p.RecordID, nil
	case map[string]any:
		v, ok := p["recordId"]
		if !ok {
			return "", &ProtocolError{Payload: payload, Reason: "missing recordId"}
		}
		id, ok := v.(string)
		if !ok {
			return "", &ProtocolError{Payload: payload, Reason: fmt.Sprintf("recordId is %T, not a string", v)}
		}
		return id, nil
	case json.RawMessage:
		return decodeJSON(payload, []byte(p))
	case []byte:
		return decodeJSON(payload, p)
	case string:
		if strings.HasPrefix(strings.TrimSpace(p), "{") {
			return decodeJSON(payload, []byte(p))
		}
		return p, nil
	case nil:
		return "", &ProtocolError{Payload: payload, Reason: "empty payload"}
	default:
		return "", &ProtocolError{Payload: payload, Reason: "unsupported payload type"}
	}
}

func decodeJSON(payload any, data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", &ProtocolError{Payload: payload, Reason: "invalid JSON"}
	}
	v := gjson.GetBytes(data, "recordId")
	if !v.Exists() {
		return "", &ProtocolError{Payload: payload, Reason: "missing recordId"}
	}
	if v.Type != gjson.String {
		return "", &ProtocolError{Payload: payload, Reason: "recordId is not a string"}
	}
	return v.String(), nil
}
