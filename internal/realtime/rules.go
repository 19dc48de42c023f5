package realtime

import (
	"coachfit/platform/internal/cache"
	"coachfit/platform/internal/identity"
)

// Rule declares one subscription as data: which table, which event types,
// how to scope it to the current identity, and which cache keys a matching
// event invalidates. The complete subscription set is derivable by reading
// this table.
type Rule struct {
	Table  string
	Events []EventType
	// Filter derives the row predicate from the identity snapshot. ok is
	// false while a required identity field is still unknown; the rule is
	// then omitted entirely.
	Filter      func(snap identity.Snapshot) (Filter, bool)
	Invalidates []cache.Key
}

// DefaultRules is the declarative subscription table for the athlete app.
func DefaultRules() []Rule {
	return []Rule{
		{
			// Tenant branding changes repaint the app shell.
			Table: "tenants",
			Filter: func(snap identity.Snapshot) (Filter, bool) {
				if snap.TenantID().IsZero() {
					return Filter{}, false
				}
				return Filter{Field: "_id", Value: snap.TenantID()}, true
			},
			Invalidates: []cache.Key{cache.KeyProfile},
		},
		{
			// The client's own record (goal, avatar, coach assignment).
			Table: "clients",
			Filter: func(snap identity.Snapshot) (Filter, bool) {
				if snap.ClientID().IsZero() {
					return Filter{}, false
				}
				return Filter{Field: "_id", Value: snap.ClientID()}, true
			},
			Invalidates: []cache.Key{cache.KeyProfile},
		},
		{
			// The assigned coach's profile. Omitted until the client record
			// has loaded and carries assigned_coach_id.
			Table: "profiles",
			Filter: func(snap identity.Snapshot) (Filter, bool) {
				if snap.CoachID().IsZero() {
					return Filter{}, false
				}
				return Filter{Field: "_id", Value: snap.CoachID()}, true
			},
			Invalidates: []cache.Key{cache.KeyCoachProfile},
		},
		{
			Table:       "workouts",
			Filter:      clientScoped,
			Invalidates: []cache.Key{cache.KeyWorkouts},
		},
		{
			Table:       "meal_plans",
			Filter:      clientScoped,
			Invalidates: []cache.Key{cache.KeyMealPlans},
		},
		{
			Table:       "hormonal_protocols",
			Filter:      clientScoped,
			Invalidates: []cache.Key{cache.KeyProtocols},
		},
		{
			Table:       "appointments",
			Filter:      clientScoped,
			Invalidates: []cache.Key{cache.KeyAppointments},
		},
		{
			Table:       "chat_messages",
			Events:      []EventType{EventInsert},
			Filter:      clientScoped,
			Invalidates: []cache.Key{cache.KeyChat},
		},
		{
			Table: "subscriptions",
			Filter: func(snap identity.Snapshot) (Filter, bool) {
				if snap.TenantID().IsZero() {
					return Filter{}, false
				}
				return Filter{Field: "tenantId", Value: snap.TenantID()}, true
			},
			Invalidates: []cache.Key{cache.KeySubscription},
		},
	}
}

func clientScoped(snap identity.Snapshot) (Filter, bool) {
	if snap.ClientID().IsZero() {
		return Filter{}, false
	}
	return Filter{Field: "clientId", Value: snap.ClientID()}, true
}
