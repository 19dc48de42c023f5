// Package identity turns raw auth sessions into versioned identity
// snapshots. A snapshot is an immutable value replaced wholesale on every
// auth change; consumers receive it explicitly and never reach into ambient
// global state.
package identity

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"coachfit/platform/internal/domain"
)

// Session is the opaque authentication session the core observes. A nil
// *Session means signed out.
type Session struct {
	UserID primitive.ObjectID
}

// State is the resolution lifecycle. All resolved states are renderable;
// none is an error.
type State string

const (
	StateUnresolved    State = "unresolved"
	StateResolving     State = "resolving"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
	StateDegraded      State = "degraded"
)

// Resolved reports whether the state is terminal for the current session.
func (s State) Resolved() bool {
	switch s {
	case StateAuthenticated, StateAnonymous, StateDegraded:
		return true
	}
	return false
}

// Snapshot is the versioned identity value: who am I, which tenant/client
// do I belong to, and which palette to render. The Generation tag orders
// snapshots across rapid session changes.
type Snapshot struct {
	State       State
	UserID      primitive.ObjectID
	Client      *domain.Client
	Tenant      *domain.Tenant
	BrandColors domain.BrandColors
	Generation  uint64
}

// Anonymous builds the signed-out snapshot.
func Anonymous(generation uint64) Snapshot {
	return Snapshot{
		State:       StateAnonymous,
		BrandColors: domain.DefaultBrandColors(),
		Generation:  generation,
	}
}

// TenantID returns the tenant id or zero when unknown.
func (s Snapshot) TenantID() primitive.ObjectID {
	if s.Tenant == nil {
		return primitive.NilObjectID
	}
	return s.Tenant.ID
}

// ClientID returns the client record id or zero when unknown.
func (s Snapshot) ClientID() primitive.ObjectID {
	if s.Client == nil {
		return primitive.NilObjectID
	}
	return s.Client.ID
}

// CoachID returns the assigned coach id or zero when not yet known.
func (s Snapshot) CoachID() primitive.ObjectID {
	if s.Client == nil || s.Client.AssignedCoachID == nil {
		return primitive.NilObjectID
	}
	return *s.Client.AssignedCoachID
}

// SameScope reports whether two snapshots imply the same subscription set.
// Any change to tenant, user, client, or assigned coach means the previous
// subscriptions must be torn down before new ones are established.
func (s Snapshot) SameScope(other Snapshot) bool {
	return s.UserID == other.UserID &&
		s.TenantID() == other.TenantID() &&
		s.ClientID() == other.ClientID() &&
		s.CoachID() == other.CoachID()
}
