// Package sync wires identity resolution, the query cache, and realtime
// subscriptions into one engine. A session change flows through exactly one
// path: resolve the new identity, drop every cached value and fetcher from
// the old one, register fetchers scoped to the new snapshot, then reconcile
// the subscription set.
package sync

import (
	"context"
	"errors"
	"time"

	"coachfit/platform/internal/cache"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/identity"
	"coachfit/platform/internal/realtime"
	"coachfit/platform/internal/repository"

	"go.uber.org/zap"
)

// How far list fetchers look around today. Instances older than the past
// window stay reachable through the service layer's explicit range queries.
const (
	windowPast   = 30 * 24 * time.Hour
	windowFuture = 60 * 24 * time.Hour
)

// Repos bundles the read-side repositories the engine's fetchers use.
type Repos struct {
	Clients       repository.ClientRepository
	Profiles      repository.ProfileRepository
	Workouts      repository.WorkoutRepository
	MealPlans     repository.MealPlanRepository
	Protocols     repository.ProtocolRepository
	Appointments  repository.AppointmentRepository
	Chat          repository.ChatRepository
	Subscriptions repository.SubscriptionRepository
}

// Engine is the per-session sync core. Create one per connected client
// session; Close tears down its subscriptions.
type Engine struct {
	resolver *identity.Resolver
	store    *cache.Store
	registry *realtime.Registry
	repos    Repos
	log      *zap.Logger
}

// NewEngine builds the engine and hooks its snapshot handler into the
// resolver. The caller still owns resolver, store, and registry lifetimes.
func NewEngine(
	resolver *identity.Resolver,
	store *cache.Store,
	registry *realtime.Registry,
	repos Repos,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		resolver: resolver,
		store:    store,
		registry: registry,
		repos:    repos,
		log:      log.Named("sync"),
	}
	resolver.AddListener(e.onSnapshot)
	return e
}

// OnSessionChange forwards the session to the resolver; the applied
// snapshot comes back through onSnapshot.
func (e *Engine) OnSessionChange(session *identity.Session) {
	e.resolver.OnSessionChange(session)
}

// ResolveSync resolves on the caller's goroutine and returns the snapshot
// after the cache and subscriptions have been reconciled to it.
func (e *Engine) ResolveSync(ctx context.Context, session *identity.Session) identity.Snapshot {
	return e.resolver.ResolveSync(ctx, session)
}

// Get reads a cached query result for the current identity.
func (e *Engine) Get(ctx context.Context, key cache.Key) (interface{}, error) {
	return e.store.Get(ctx, key)
}

// Current returns the latest applied identity snapshot.
func (e *Engine) Current() identity.Snapshot {
	return e.resolver.Current()
}

// Close permanently tears down the engine's subscriptions.
func (e *Engine) Close() {
	e.registry.Close()
}

// onSnapshot reconciles cache and subscriptions to a freshly applied
// snapshot. Order matters: reset before re-register so no fetcher from the
// previous identity survives, and register before Apply so invalidations
// fired by the first events already have fetchers to hit.
func (e *Engine) onSnapshot(snap identity.Snapshot) {
	e.store.Reset()
	if snap.State == identity.StateAuthenticated && snap.Client != nil {
		e.registerFetchers(snap)
	}
	e.registry.Apply(snap)
}

// registerFetchers binds every well-known key to a backend query scoped to
// the snapshot's ids. The ids are captured by value: a fetcher never reads
// the resolver's current state, so a stale fetcher can only write into a
// store that Reset has already replaced underneath it.
func (e *Engine) registerFetchers(snap identity.Snapshot) {
	clientID := snap.ClientID()
	tenantID := snap.TenantID()
	coachID := snap.CoachID()

	e.store.RegisterFetcher(cache.KeyProfile, func(ctx context.Context) (interface{}, error) {
		return e.repos.Clients.GetByID(ctx, clientID)
	})

	if !coachID.IsZero() {
		e.store.RegisterFetcher(cache.KeyCoachProfile, func(ctx context.Context) (interface{}, error) {
			return e.repos.Profiles.GetByID(ctx, coachID)
		})
	}

	e.store.RegisterFetcher(cache.KeyWorkouts, func(ctx context.Context) (interface{}, error) {
		from, to := window()
		return e.repos.Workouts.InstancesByClient(ctx, clientID, from, to)
	})

	e.store.RegisterFetcher(cache.KeyMealPlans, func(ctx context.Context) (interface{}, error) {
		from, to := window()
		return e.repos.MealPlans.InstancesByClient(ctx, clientID, from, to)
	})

	e.store.RegisterFetcher(cache.KeyProtocols, func(ctx context.Context) (interface{}, error) {
		return e.repos.Protocols.GetByClientID(ctx, clientID)
	})

	e.store.RegisterFetcher(cache.KeyAppointments, func(ctx context.Context) (interface{}, error) {
		from, to := window()
		return e.repos.Appointments.ListByClient(ctx, clientID, from, to)
	})

	e.store.RegisterFetcher(cache.KeyChat, func(ctx context.Context) (interface{}, error) {
		return e.repos.Chat.ListByClient(ctx, clientID, time.Now(), 50)
	})

	if !tenantID.IsZero() {
		e.store.RegisterFetcher(cache.KeySubscription, func(ctx context.Context) (interface{}, error) {
			sub, err := e.repos.Subscriptions.GetLatestByTenant(ctx, tenantID)
			if errors.Is(err, repository.ErrNotFound) {
				// Tenant never started payment; render as "none".
				return &domain.Subscription{TenantID: tenantID, Status: domain.SubscriptionNone}, nil
			}
			if err == nil && sub.WasReset() {
				// A reset intent renders as "none", not "cancelled".
				return &domain.Subscription{TenantID: tenantID, Status: domain.SubscriptionNone}, nil
			}
			return sub, err
		})
	}
}

func window() (time.Time, time.Time) {
	now := time.Now()
	return now.Add(-windowPast), now.Add(windowFuture)
}
