package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/metrics"
	"coachfit/platform/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Listener receives every applied snapshot, in generation order.
type Listener func(Snapshot)

// Resolver owns the current identity snapshot. Resolution never fails:
// every outcome, including backend errors, lands in a renderable state.
type Resolver struct {
	clients repository.ClientRepository
	tenants repository.TenantRepository
	tokens  repository.DeviceTokenRepository
	log     *zap.Logger
	timeout time.Duration

	mu          sync.Mutex
	generation  uint64
	current     Snapshot
	listeners   []Listener
	deviceToken string
	// notifyMu serializes listener delivery; delivered is the generation
	// of the last snapshot handed to listeners, guarded by notifyMu.
	notifyMu  sync.Mutex
	delivered uint64
	// tokenUpserted tracks which user ids already got a device-token
	// upsert this process, keeping the side effect one-per-user.
	tokenUpserted map[primitive.ObjectID]bool
}

// NewResolver builds a resolver over the client/tenant repositories.
func NewResolver(
	clients repository.ClientRepository,
	tenants repository.TenantRepository,
	tokens repository.DeviceTokenRepository,
	timeout time.Duration,
	log *zap.Logger,
) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		clients:       clients,
		tenants:       tenants,
		tokens:        tokens,
		log:           log.Named("identity"),
		timeout:       timeout,
		current:       Snapshot{State: StateUnresolved, BrandColors: domain.DefaultBrandColors()},
		tokenUpserted: make(map[primitive.ObjectID]bool),
	}
}

// Current returns the latest applied snapshot.
func (r *Resolver) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// AddListener registers a callback invoked for every applied snapshot.
func (r *Resolver) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// SetDeviceToken stores the push token to upsert once per resolved user.
func (r *Resolver) SetDeviceToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceToken = token
}

// OnSessionChange starts an asynchronous resolution for the new session and
// returns immediately. Each call supersedes all earlier in-flight
// resolutions via the generation counter.
func (r *Resolver) OnSessionChange(session *Session) {
	gen := r.begin(session)
	go r.complete(session, gen)
}

// ResolveSync resolves the session on the caller's goroutine. Used at
// startup and anywhere the caller needs the snapshot before proceeding.
func (r *Resolver) ResolveSync(ctx context.Context, session *Session) Snapshot {
	gen := r.begin(session)
	return r.completeCtx(ctx, session, gen)
}

// begin bumps the generation and moves visible state to resolving.
func (r *Resolver) begin(session *Session) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.current = Snapshot{
		State:       StateResolving,
		BrandColors: r.current.BrandColors, // keep last palette while resolving
		Generation:  r.generation,
	}
	if session != nil {
		r.current.UserID = session.UserID
	}
	return r.generation
}

func (r *Resolver) complete(session *Session, gen uint64) {
	r.completeCtx(context.Background(), session, gen)
}

// completeCtx performs the actual fetches and applies the result if the
// generation is still current. A superseded result is discarded silently:
// a slow fetch for a previous user must never clobber a faster fetch for
// the next one.
func (r *Resolver) completeCtx(ctx context.Context, session *Session, gen uint64) Snapshot {
	snap := r.resolve(ctx, session)
	snap.Generation = gen

	if !r.apply(snap) {
		metrics.IdentityResolutions.WithLabelValues("superseded").Inc()
		return r.Current()
	}
	metrics.IdentityResolutions.WithLabelValues(string(snap.State)).Inc()

	if snap.State == StateAuthenticated || snap.State == StateDegraded {
		r.upsertDeviceToken(snap.UserID)
	}
	return snap
}

// resolve produces a snapshot for the session. It never returns an error:
// backend failures degrade to a renderable snapshot with default colors.
func (r *Resolver) resolve(ctx context.Context, session *Session) Snapshot {
	if session == nil {
		return Anonymous(0)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, tenant, err := r.clients.GetByUserIDWithTenant(fetchCtx, session.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("identity fetch failed, degrading",
				zap.String("userId", session.UserID.Hex()),
				zap.Error(err))
		}
		return Snapshot{
			State:       StateDegraded,
			UserID:      session.UserID,
			BrandColors: domain.DefaultBrandColors(),
		}
	}

	if tenant == nil {
		// Join came back empty; try the secondary tenant lookup before
		// falling back to defaults.
		tenant = r.lookupTenant(fetchCtx, client.TenantID)
	}

	snap := Snapshot{
		State:       StateAuthenticated,
		UserID:      session.UserID,
		Client:      client,
		Tenant:      tenant,
		BrandColors: domain.DefaultBrandColors(),
	}
	if tenant != nil {
		snap.BrandColors = tenant.Colors
	}
	return snap
}

func (r *Resolver) lookupTenant(ctx context.Context, tenantID primitive.ObjectID) *domain.Tenant {
	if tenantID.IsZero() {
		return nil
	}
	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("secondary tenant lookup failed",
				zap.String("tenantId", tenantID.Hex()),
				zap.Error(err))
		}
		return nil
	}
	return tenant
}

// apply installs the snapshot if its generation is still current and
// notifies listeners. Returns false for superseded results. Delivery is
// serialized and monotone in generation: a resolution that passes the
// currency check can still lose the race to a newer one reaching the
// listeners first, and must then be dropped, not delivered late.
func (r *Resolver) apply(snap Snapshot) bool {
	r.mu.Lock()
	if snap.Generation != r.generation {
		r.mu.Unlock()
		return false
	}
	r.current = snap
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if snap.Generation <= r.delivered {
		return false
	}
	r.delivered = snap.Generation

	for _, l := range listeners {
		l(snap)
	}
	return true
}

// upsertDeviceToken fires the idempotent push-token registration in the
// background. It must not block resolution.
func (r *Resolver) upsertDeviceToken(userID primitive.ObjectID) {
	r.mu.Lock()
	token := r.deviceToken
	done := r.tokenUpserted[userID]
	if token != "" && !done {
		r.tokenUpserted[userID] = true
	}
	r.mu.Unlock()

	if token == "" || done {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.tokens.Upsert(ctx, userID, token); err != nil {
			r.log.Warn("device token upsert failed",
				zap.String("userId", userID.Hex()),
				zap.Error(err))
			r.mu.Lock()
			delete(r.tokenUpserted, userID) // allow a retry on next resolution
			r.mu.Unlock()
		}
	}()
}
