// Package realtime maintains the set of change-data-capture subscriptions
// implied by the current identity and maps matching events to cache
// invalidations. Delivery is at-least-once and ordered only within a single
// channel; an invalidation means "re-fetch current truth", never a delta.
package realtime

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType mirrors the CDC operation kinds.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one per-table, per-row change notification.
type Event struct {
	Table      string
	Type       EventType
	DocumentID primitive.ObjectID
	// Fields carries the id-valued document fields filters match on
	// (e.g. "tenantId", "clientId", "coachId", "_id").
	Fields map[string]primitive.ObjectID
}

// Filter is a single-field equality predicate evaluated against an event's
// Fields. A zero-value filter is never legal: rules with unknown identity
// inputs are omitted, not subscribed wildcard.
type Filter struct {
	Field string
	Value primitive.ObjectID
}

// Matches reports whether the event satisfies the filter.
func (f Filter) Matches(ev Event) bool {
	v, ok := ev.Fields[f.Field]
	return ok && v == f.Value
}

// Subscription describes one realtime channel: a table, the event types of
// interest, and a row filter.
type Subscription struct {
	Table  string
	Events []EventType // empty means all types
	Filter Filter
}

// WantsType reports whether the subscription cares about the event type.
func (s Subscription) WantsType(t EventType) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == t {
			return true
		}
	}
	return false
}

// EventHandler consumes events delivered on a channel, in delivery order.
type EventHandler func(Event)

// CancelFunc tears down a single subscription.
type CancelFunc func()

// Transport is the realtime delivery mechanism. Implementations must keep a
// subscription alive across transient failures; when a disconnect loses
// server-side state, they invoke the reconnect callbacks so the registry can
// rebuild its set.
type Transport interface {
	Subscribe(sub Subscription, h EventHandler) (CancelFunc, error)
	OnReconnect(func())
}
