package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/billing"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/gateway"
	"coachfit/platform/internal/repository"
)

// fakeGateway counts calls and can be told to fail.
type fakeGateway struct {
	mu            sync.Mutex
	customers     int
	subscriptions int
	pixFetches    int
	cancels       int
	fail          bool
}

func (g *fakeGateway) failAll() error {
	return apperr.New(apperr.KindPaymentGateway, "gateway", "simulated failure")
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, req gateway.CreateCustomerRequest) (*gateway.CreateCustomerResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, g.failAll()
	}
	g.customers++
	return &gateway.CreateCustomerResponse{CustomerID: "cus_1"}, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, req gateway.CreateSubscriptionRequest) (*gateway.CreateSubscriptionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, g.failAll()
	}
	g.subscriptions++
	return &gateway.CreateSubscriptionResponse{IntentID: "in_1", Status: "pending"}, nil
}

func (g *fakeGateway) GetPixQRCode(ctx context.Context, req gateway.PixQRCodeRequest) (*gateway.PixQRCodeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, g.failAll()
	}
	g.pixFetches++
	return &gateway.PixQRCodeResponse{QRCode: "qr-payload", CopyPaste: "copia-e-cola"}, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, req gateway.CancelSubscriptionRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return g.failAll()
	}
	g.cancels++
	return nil
}

// memSubscriptionRepo is an in-memory SubscriptionRepository enforcing the
// one-pending-per-tenant constraint the mongo index enforces in production.
// Records are kept in insertion order so "latest" is deterministic.
type memSubscriptionRepo struct {
	mu   sync.Mutex
	subs []*domain.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{}
}

func (r *memSubscriptionRepo) find(id primitive.ObjectID) *domain.Subscription {
	for _, s := range r.subs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *memSubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.Status == domain.SubscriptionPending {
		for _, s := range r.subs {
			if s.TenantID == sub.TenantID && s.Status == domain.SubscriptionPending {
				return primitive.NilObjectID, repository.ErrConflict
			}
		}
	}
	cp := *sub
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	r.subs = append(r.subs, &cp)
	return cp.ID, nil
}

func (r *memSubscriptionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.find(id); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memSubscriptionRepo) GetPendingByTenant(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.TenantID == tenantID && s.Status == domain.SubscriptionPending {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSubscriptionRepo) GetLatestByTenant(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.subs) - 1; i >= 0; i-- {
		if r.subs[i].TenantID == tenantID {
			cp := *r.subs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSubscriptionRepo) GetByGatewayIntentID(ctx context.Context, intentID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.GatewayIntentID == intentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSubscriptionRepo) SetStatus(ctx context.Context, id primitive.ObjectID, status domain.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.find(id)
	if s == nil {
		return repository.ErrNotFound
	}
	s.Status = status
	return nil
}

func (r *memSubscriptionRepo) MarkReset(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.find(id)
	if s == nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.Status = domain.SubscriptionCancelled
	s.CancelledAt = &now
	s.ResetAt = &now
	return nil
}

func (r *memSubscriptionRepo) SetPixPayload(ctx context.Context, id primitive.ObjectID, qrCode, copyPaste string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.find(id)
	if s == nil {
		return repository.ErrNotFound
	}
	s.PixQRCode = qrCode
	s.PixCopyPaste = copyPaste
	return nil
}

// memTenantRepo covers the denormalized subscription status writes.
type memTenantRepo struct {
	repository.TenantRepository
	mu      sync.Mutex
	tenants map[primitive.ObjectID]*domain.Tenant
}

func newMemTenantRepo(tenants ...*domain.Tenant) *memTenantRepo {
	r := &memTenantRepo{tenants: make(map[primitive.ObjectID]*domain.Tenant)}
	for _, t := range tenants {
		r.tenants[t.ID] = t
	}
	return r
}

func (r *memTenantRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memTenantRepo) SetSubscriptionStatus(ctx context.Context, id primitive.ObjectID, status domain.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		t.SubscriptionStatus = status
	}
	return nil
}

func (r *memTenantRepo) SetGatewayCustomerID(ctx context.Context, id primitive.ObjectID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		t.GatewayCustomerID = customerID
	}
	return nil
}

func newBillingFixture() (*billing.Service, *memSubscriptionRepo, *memTenantRepo, *fakeGateway, *domain.Tenant) {
	tenant := &domain.Tenant{
		ID:                 primitive.NewObjectID(),
		Name:               "Iron Temple",
		Slug:               "iron-temple",
		SubscriptionStatus: domain.SubscriptionNone,
	}
	subs := newMemSubscriptionRepo()
	tenants := newMemTenantRepo(tenant)
	gw := &fakeGateway{}
	svc := billing.NewService(subs, tenants, gw, nil)
	return svc, subs, tenants, gw, tenant
}

func TestCanTransition(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		from, to domain.SubscriptionStatus
		ok       bool
	}{
		{domain.SubscriptionNone, domain.SubscriptionPending, true},
		{domain.SubscriptionPending, domain.SubscriptionActive, true},
		{domain.SubscriptionPending, domain.SubscriptionTrialing, true},
		{domain.SubscriptionTrialing, domain.SubscriptionActive, true},
		{domain.SubscriptionActive, domain.SubscriptionPastDue, true},
		{domain.SubscriptionPastDue, domain.SubscriptionActive, true},
		{domain.SubscriptionPastDue, domain.SubscriptionCancelled, true},

		{domain.SubscriptionNone, domain.SubscriptionActive, false},
		{domain.SubscriptionActive, domain.SubscriptionNone, false},
		{domain.SubscriptionCancelled, domain.SubscriptionActive, false},
		{domain.SubscriptionActive, domain.SubscriptionPending, false},
		{domain.SubscriptionTrialing, domain.SubscriptionPending, false},
		// Cancelling a pending intent is a reset, not a status transition.
		{domain.SubscriptionPending, domain.SubscriptionCancelled, false},
	}
	for _, tt := range tests {
		c.Assert(billing.CanTransition(tt.from, tt.to), qt.Equals, tt.ok,
			qt.Commentf("%s -> %s", tt.from, tt.to))
	}
}

func TestStatusSynthesizesNone(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, tenant := newBillingFixture()

	sub, err := svc.Status(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(sub.Status, qt.Equals, domain.SubscriptionNone)
	c.Assert(sub.TenantID, qt.Equals, tenant.ID)
}

func TestStartPayment(t *testing.T) {
	c := qt.New(t)
	svc, _, tenants, gw, tenant := newBillingFixture()

	sub, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)
	c.Assert(sub.Status, qt.Equals, domain.SubscriptionPending)
	c.Assert(sub.GatewayIntentID, qt.Equals, "in_1")
	c.Assert(gw.customers, qt.Equals, 1)
	c.Assert(gw.subscriptions, qt.Equals, 1)

	// Customer id and denormalized status land on the tenant.
	stored, _ := tenants.GetByID(context.Background(), tenant.ID)
	c.Assert(stored.GatewayCustomerID, qt.Equals, "cus_1")
	c.Assert(stored.SubscriptionStatus, qt.Equals, domain.SubscriptionPending)
}

// A second attempt while one is pending is rejected locally, without
// contacting the gateway.
func TestStartPaymentRejectsSecondPending(t *testing.T) {
	c := qt.New(t)
	svc, _, _, gw, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)
	callsAfterFirst := gw.subscriptions

	_, err = svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindValidation)
	c.Assert(gw.subscriptions, qt.Equals, callsAfterFirst)
	c.Assert(gw.customers, qt.Equals, 1)
}

func TestStartPaymentReusesGatewayCustomer(t *testing.T) {
	c := qt.New(t)
	svc, _, _, gw, tenant := newBillingFixture()
	tenant.GatewayCustomerID = "cus_existing"

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)
	c.Assert(gw.customers, qt.Equals, 0)
}

// Gateway failure leaves local state untouched: no subscription row, tenant
// still none.
func TestStartPaymentGatewayFailure(t *testing.T) {
	c := qt.New(t)
	svc, subs, tenants, gw, tenant := newBillingFixture()
	gw.fail = true

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindPaymentGateway)

	_, err = subs.GetLatestByTenant(context.Background(), tenant.ID)
	c.Assert(err, qt.Equals, repository.ErrNotFound)
	stored, _ := tenants.GetByID(context.Background(), tenant.ID)
	c.Assert(stored.SubscriptionStatus, qt.Equals, domain.SubscriptionNone)
}

// Fetching the Pix payload is idempotent: repeated calls reuse the stored
// payload and never create a second intent.
func TestPixPayloadIdempotent(t *testing.T) {
	c := qt.New(t)
	svc, _, _, gw, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)

	first, err := svc.PixPayload(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(first.PixQRCode, qt.Equals, "qr-payload")
	c.Assert(first.PixCopyPaste, qt.Equals, "copia-e-cola")
	c.Assert(gw.pixFetches, qt.Equals, 1)

	second, err := svc.PixPayload(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(second.PixQRCode, qt.Equals, "qr-payload")
	c.Assert(gw.pixFetches, qt.Equals, 1)    // cached, no second gateway read
	c.Assert(gw.subscriptions, qt.Equals, 1) // and certainly no second intent
}

func TestPixPayloadWithoutPending(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, tenant := newBillingFixture()

	_, err := svc.PixPayload(context.Background(), tenant.ID)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindNotFound)
}

func TestResetPending(t *testing.T) {
	c := qt.New(t)
	svc, _, tenants, gw, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)

	err = svc.ResetPending(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(gw.cancels, qt.Equals, 1)

	stored, _ := tenants.GetByID(context.Background(), tenant.ID)
	c.Assert(stored.SubscriptionStatus, qt.Equals, domain.SubscriptionNone)

	// The slot is free again: a new payment can start.
	_, err = svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)
}

// Reset returns the tenant to none: the retired intent must not render as a
// cancellation.
func TestStatusAfterResetIsNone(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)
	c.Assert(svc.ResetPending(context.Background(), tenant.ID), qt.IsNil)

	sub, err := svc.Status(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(sub.Status, qt.Equals, domain.SubscriptionNone)
}

// A cancellation reported by the gateway is a real terminal state and keeps
// rendering as cancelled.
func TestStatusAfterGatewayCancellation(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)
	c.Assert(svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionActive), qt.IsNil)
	c.Assert(svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionPastDue), qt.IsNil)
	c.Assert(svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionCancelled), qt.IsNil)

	sub, err := svc.Status(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(sub.Status, qt.Equals, domain.SubscriptionCancelled)
}

// Without a successful gateway cancel the local state stays pending.
func TestResetPendingGatewayFailureKeepsPending(t *testing.T) {
	c := qt.New(t)
	svc, subs, _, gw, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)

	gw.fail = true
	err = svc.ResetPending(context.Background(), tenant.ID)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindPaymentGateway)

	still, err := subs.GetPendingByTenant(context.Background(), tenant.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(still.Status, qt.Equals, domain.SubscriptionPending)
}

func TestApplyGatewayStatus(t *testing.T) {
	c := qt.New(t)
	svc, subs, tenants, _, tenant := newBillingFixture()

	started, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)

	err = svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionActive)
	c.Assert(err, qt.IsNil)

	stored, _ := subs.GetByID(context.Background(), started.ID)
	c.Assert(stored.Status, qt.Equals, domain.SubscriptionActive)
	storedTenant, _ := tenants.GetByID(context.Background(), tenant.ID)
	c.Assert(storedTenant.SubscriptionStatus, qt.Equals, domain.SubscriptionActive)
}

// Redelivery of the same status is a no-op, not an error.
func TestApplyGatewayStatusIdempotentRedelivery(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, tenant := newBillingFixture()

	_, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)

	c.Assert(svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionActive), qt.IsNil)
	c.Assert(svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionActive), qt.IsNil)
}

func TestApplyGatewayStatusRejectsIllegalTransition(t *testing.T) {
	c := qt.New(t)
	svc, subs, _, _, tenant := newBillingFixture()

	started, err := svc.StartPayment(context.Background(), tenant, "plan-monthly")
	c.Assert(err, qt.IsNil)

	err = svc.ApplyGatewayStatus(context.Background(), "in_1", domain.SubscriptionPastDue)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindValidation)

	stored, _ := subs.GetByID(context.Background(), started.ID)
	c.Assert(stored.Status, qt.Equals, domain.SubscriptionPending)
}

func TestApplyGatewayStatusUnknownIntent(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, _ := newBillingFixture()

	err := svc.ApplyGatewayStatus(context.Background(), "in_unknown", domain.SubscriptionActive)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindNotFound)
}
