package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/identity"
	"coachfit/platform/internal/repository"
)

// fakeClientRepo implements the lookup the resolver uses; the embedded
// interface covers the methods the resolver never calls.
type fakeClientRepo struct {
	repository.ClientRepository
	getWithTenant func(ctx context.Context, userID primitive.ObjectID) (*domain.Client, *domain.Tenant, error)
}

func (f *fakeClientRepo) GetByUserIDWithTenant(ctx context.Context, userID primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
	return f.getWithTenant(ctx, userID)
}

type fakeTenantRepo struct {
	repository.TenantRepository
	getByID func(ctx context.Context, id primitive.ObjectID) (*domain.Tenant, error)
}

func (f *fakeTenantRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tenant, error) {
	return f.getByID(ctx, id)
}

type fakeTokenRepo struct {
	mu      sync.Mutex
	upserts []string
	err     error
}

func (f *fakeTokenRepo) Upsert(ctx context.Context, userID primitive.ObjectID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, userID.Hex()+":"+token)
	return nil
}

func (f *fakeTokenRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

// snapshotRecorder collects applied snapshots in order.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []identity.Snapshot
}

func (r *snapshotRecorder) record(s identity.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) all() []identity.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]identity.Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func testTenant() *domain.Tenant {
	return &domain.Tenant{
		ID:     primitive.NewObjectID(),
		Name:   "Iron Temple",
		Slug:   "iron-temple",
		Colors: domain.BrandColors{Primary: "#101010", Secondary: "#202020", Accent: "#FF3355"},
	}
}

func waitFor(c *qt.C, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Fatal("condition not reached in time")
}

func TestResolveSyncAuthenticated(t *testing.T) {
	c := qt.New(t)

	tenant := testTenant()
	userID := primitive.NewObjectID()
	client := &domain.Client{ID: primitive.NewObjectID(), UserID: userID, TenantID: tenant.ID}

	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		return client, tenant, nil
	}}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, &fakeTokenRepo{}, time.Second, nil)

	snap := r.ResolveSync(context.Background(), &identity.Session{UserID: userID})

	c.Assert(snap.State, qt.Equals, identity.StateAuthenticated)
	c.Assert(snap.UserID, qt.Equals, userID)
	c.Assert(snap.ClientID(), qt.Equals, client.ID)
	c.Assert(snap.TenantID(), qt.Equals, tenant.ID)
	c.Assert(snap.BrandColors, qt.Equals, tenant.Colors)
}

func TestResolveSyncAnonymous(t *testing.T) {
	c := qt.New(t)

	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		c.Error("resolver must not hit the backend for a nil session")
		return nil, nil, nil
	}}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, &fakeTokenRepo{}, time.Second, nil)

	snap := r.ResolveSync(context.Background(), nil)

	c.Assert(snap.State, qt.Equals, identity.StateAnonymous)
	c.Assert(snap.BrandColors, qt.Equals, domain.DefaultBrandColors())
}

// A backend failure degrades to a renderable snapshot with default colors;
// it never surfaces as an error.
func TestResolveSyncDegradedOnBackendError(t *testing.T) {
	c := qt.New(t)

	userID := primitive.NewObjectID()
	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		return nil, nil, errors.New("connection refused")
	}}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, &fakeTokenRepo{}, time.Second, nil)

	snap := r.ResolveSync(context.Background(), &identity.Session{UserID: userID})

	c.Assert(snap.State, qt.Equals, identity.StateDegraded)
	c.Assert(snap.UserID, qt.Equals, userID)
	c.Assert(snap.BrandColors, qt.Equals, domain.DefaultBrandColors())
}

// An empty client->tenant join falls back to the secondary tenant lookup
// before settling for default branding.
func TestResolveSecondaryTenantLookup(t *testing.T) {
	c := qt.New(t)

	tenant := testTenant()
	userID := primitive.NewObjectID()
	client := &domain.Client{ID: primitive.NewObjectID(), UserID: userID, TenantID: tenant.ID}

	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		return client, nil, nil // join came back empty
	}}
	tenants := &fakeTenantRepo{getByID: func(ctx context.Context, id primitive.ObjectID) (*domain.Tenant, error) {
		c.Check(id, qt.Equals, tenant.ID)
		return tenant, nil
	}}
	r := identity.NewResolver(clients, tenants, &fakeTokenRepo{}, time.Second, nil)

	snap := r.ResolveSync(context.Background(), &identity.Session{UserID: userID})

	c.Assert(snap.State, qt.Equals, identity.StateAuthenticated)
	c.Assert(snap.TenantID(), qt.Equals, tenant.ID)
	c.Assert(snap.BrandColors, qt.Equals, tenant.Colors)
}

// A slow resolution for a previous session must never clobber a faster
// resolution for the next one.
func TestStaleResolutionIsDiscarded(t *testing.T) {
	c := qt.New(t)

	tenant := testTenant()
	slowUser := primitive.NewObjectID()
	fastUser := primitive.NewObjectID()
	release := make(chan struct{})

	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		if id == slowUser {
			<-release
		}
		return &domain.Client{ID: primitive.NewObjectID(), UserID: id, TenantID: tenant.ID}, tenant, nil
	}}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, &fakeTokenRepo{}, 5*time.Second, nil)

	rec := &snapshotRecorder{}
	r.AddListener(rec.record)

	r.OnSessionChange(&identity.Session{UserID: slowUser})
	r.OnSessionChange(&identity.Session{UserID: fastUser})

	waitFor(c, func() bool { return r.Current().State == identity.StateAuthenticated })
	c.Assert(r.Current().UserID, qt.Equals, fastUser)

	// Let the stale resolution for slowUser finish; it must be discarded.
	close(release)
	time.Sleep(50 * time.Millisecond)

	c.Assert(r.Current().UserID, qt.Equals, fastUser)
	for _, snap := range rec.all() {
		c.Assert(snap.UserID, qt.Not(qt.Equals), slowUser)
	}
}

// Listener delivery is serialized in generation order: a rapid session
// switch while a listener is mid-delivery must not let the newer snapshot
// overtake, and the last delivered snapshot is always the current user.
func TestListenerOrderAcrossRapidSwitch(t *testing.T) {
	c := qt.New(t)

	tenant := testTenant()
	firstUser := primitive.NewObjectID()
	secondUser := primitive.NewObjectID()

	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		return &domain.Client{ID: primitive.NewObjectID(), UserID: id, TenantID: tenant.ID}, tenant, nil
	}}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, &fakeTokenRepo{}, 5*time.Second, nil)

	rec := &snapshotRecorder{}
	stall := make(chan struct{})
	r.AddListener(func(snap identity.Snapshot) {
		rec.record(snap)
		if snap.UserID == firstUser {
			<-stall
		}
	})

	go r.ResolveSync(context.Background(), &identity.Session{UserID: firstUser})
	waitFor(c, func() bool { return len(rec.all()) == 1 })

	// Switch sessions while the first user's delivery is still in flight.
	r.OnSessionChange(&identity.Session{UserID: secondUser})
	time.Sleep(50 * time.Millisecond)
	c.Assert(rec.all(), qt.HasLen, 1)

	close(stall)
	waitFor(c, func() bool { return len(rec.all()) == 2 })

	snaps := rec.all()
	c.Assert(snaps[0].UserID, qt.Equals, firstUser)
	c.Assert(snaps[1].UserID, qt.Equals, secondUser)
	c.Assert(snaps[0].Generation < snaps[1].Generation, qt.IsTrue)
	c.Assert(r.Current().UserID, qt.Equals, secondUser)
}

func TestDeviceTokenUpsertOncePerUser(t *testing.T) {
	c := qt.New(t)

	tenant := testTenant()
	userID := primitive.NewObjectID()
	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		return &domain.Client{ID: primitive.NewObjectID(), UserID: id, TenantID: tenant.ID}, tenant, nil
	}}
	tokens := &fakeTokenRepo{}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, tokens, time.Second, nil)
	r.SetDeviceToken("apns-token-1")

	r.ResolveSync(context.Background(), &identity.Session{UserID: userID})
	waitFor(c, func() bool { return tokens.count() == 1 })

	// Re-resolving the same user must not upsert again.
	r.ResolveSync(context.Background(), &identity.Session{UserID: userID})
	time.Sleep(50 * time.Millisecond)
	c.Assert(tokens.count(), qt.Equals, 1)
}

func TestDeviceTokenUpsertRetriesAfterFailure(t *testing.T) {
	c := qt.New(t)

	tenant := testTenant()
	userID := primitive.NewObjectID()
	clients := &fakeClientRepo{getWithTenant: func(ctx context.Context, id primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
		return &domain.Client{ID: primitive.NewObjectID(), UserID: id, TenantID: tenant.ID}, tenant, nil
	}}
	tokens := &fakeTokenRepo{err: errors.New("unavailable")}
	r := identity.NewResolver(clients, &fakeTenantRepo{}, tokens, time.Second, nil)
	r.SetDeviceToken("apns-token-1")

	r.ResolveSync(context.Background(), &identity.Session{UserID: userID})
	time.Sleep(50 * time.Millisecond)
	c.Assert(tokens.count(), qt.Equals, 0)

	// Failure re-arms the upsert; the next resolution retries it.
	tokens.mu.Lock()
	tokens.err = nil
	tokens.mu.Unlock()

	r.ResolveSync(context.Background(), &identity.Session{UserID: userID})
	waitFor(c, func() bool { return tokens.count() == 1 })
}
