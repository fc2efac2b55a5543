// Package bus provides the process-wide message bus widgets use to talk to
// each other without a shared parent.
//
// # Delivery
//
// Publish is synchronous: every matching subscriber's handler has run by the
// time Publish returns, in the order the subscriptions were made. There is
// no queue and no replay; a subscriber registered after a publish never sees
// it.
//
//	b := bus.New(bus.Config{})
//	sub, _ := b.Subscribe("BoatMessageChannel", bus.ScopeApplication,
//	    func(ctx context.Context, msg bus.Message) error {
//	        fmt.Println(msg.Payload)
//	        return nil
//	    },
//	    bus.WithSubscriber("boat-detail-tabs"),
//	)
//	defer sub.Unsubscribe()
//
//	b.Publish(ctx, "BoatMessageChannel", selection.Event{RecordID: "boat-1"})
//
// # Scope
//
// Messages default to ScopeApplication and reach every subscriber. A message
// published WithScope(ScopeComponent) and WithOrigin(area) reaches only
// component-scoped subscriptions made WithArea(area). Application-scoped
// subscriptions ignore component-scoped messages.
//
// # Duplicate subscriptions
//
// The bus tracks subscriber identity. Subscribing again on the same channel
// with the same WithSubscriber identity registers nothing and returns the
// existing handle together with ErrAlreadySubscribed, so an identity never
// receives a message twice. The handle stays with its first owner; callers
// must not unsubscribe a handle they received alongside that error.
package bus
