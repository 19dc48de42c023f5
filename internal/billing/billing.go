// Package billing reconciles tenant subscription status against the
// external payment gateway. Local status changes only on confirmed gateway
// state; a failed call leaves it untouched.
package billing

import (
	"context"
	"errors"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/gateway"
	"coachfit/platform/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// transitions is the legal state machine:
// none -> pending -> {active | trialing}; trialing -> active;
// active -> past_due; past_due -> {active | cancelled}.
// pending -> none happens only through an explicit reset, which retires the
// intent outside this table.
var transitions = map[domain.SubscriptionStatus][]domain.SubscriptionStatus{
	domain.SubscriptionNone:     {domain.SubscriptionPending},
	domain.SubscriptionPending:  {domain.SubscriptionActive, domain.SubscriptionTrialing},
	domain.SubscriptionTrialing: {domain.SubscriptionActive, domain.SubscriptionPastDue},
	domain.SubscriptionActive:   {domain.SubscriptionPastDue},
	domain.SubscriptionPastDue:  {domain.SubscriptionActive, domain.SubscriptionCancelled},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to domain.SubscriptionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service drives the billing state machine for tenants.
type Service struct {
	subs    repository.SubscriptionRepository
	tenants repository.TenantRepository
	gw      gateway.Client
	log     *zap.Logger
}

// NewService builds the billing service.
func NewService(
	subs repository.SubscriptionRepository,
	tenants repository.TenantRepository,
	gw gateway.Client,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{subs: subs, tenants: tenants, gw: gw, log: log.Named("billing")}
}

// Status returns the tenant's latest subscription. A tenant that never
// started a payment gets a synthetic record in status none, and so does one
// whose latest intent was reset: reset returns the tenant to none, it is
// not a cancellation the UI should surface.
func (s *Service) Status(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error) {
	sub, err := s.subs.GetLatestByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.Subscription{TenantID: tenantID, Status: domain.SubscriptionNone}, nil
		}
		return nil, err
	}
	if sub.WasReset() {
		return &domain.Subscription{TenantID: tenantID, Status: domain.SubscriptionNone}, nil
	}
	return sub, nil
}

// StartPayment initiates a new payment intent for the tenant. A second
// attempt while one is pending is rejected locally, without contacting the
// gateway: the caller must reset the outstanding intent first.
func (s *Service) StartPayment(ctx context.Context, tenant *domain.Tenant, planID string) (*domain.Subscription, error) {
	const op = "billing.StartPayment"
	if tenant == nil || planID == "" {
		return nil, apperr.New(apperr.KindValidation, op, "tenant and plan are required")
	}

	if _, err := s.subs.GetPendingByTenant(ctx, tenant.ID); err == nil {
		return nil, apperr.New(apperr.KindValidation, op, "a payment is already pending for this tenant")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindTransient, op, err)
	}

	customerID := tenant.GatewayCustomerID
	if customerID == "" {
		resp, err := s.gw.CreateCustomer(ctx, gateway.CreateCustomerRequest{
			TenantID: tenant.ID.Hex(),
			Name:     tenant.Name,
		})
		if err != nil {
			return nil, err
		}
		customerID = resp.CustomerID
		if err := s.tenants.SetGatewayCustomerID(ctx, tenant.ID, customerID); err != nil {
			return nil, apperr.Wrap(apperr.KindTransient, op, err)
		}
	}

	intent, err := s.gw.CreateSubscription(ctx, gateway.CreateSubscriptionRequest{
		CustomerID:     customerID,
		PlanID:         planID,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		TenantID:        tenant.ID,
		PlanID:          planID,
		Status:          domain.SubscriptionPending,
		GatewayIntentID: intent.IntentID,
	}
	id, err := s.subs.Create(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with another pending intent; the gateway intent
			// stays cancellable through reset.
			return nil, apperr.New(apperr.KindValidation, op, "a payment is already pending for this tenant")
		}
		return nil, apperr.Wrap(apperr.KindTransient, op, err)
	}
	sub.ID = id

	if err := s.tenants.SetSubscriptionStatus(ctx, tenant.ID, domain.SubscriptionPending); err != nil {
		s.log.Warn("tenant status denorm failed", zap.String("tenantId", tenant.ID.Hex()), zap.Error(err))
	}
	return sub, nil
}

// PixPayload returns the Pix QR payload for the pending intent. The fetch
// is idempotent: a cached payload is returned as-is, and the gateway call
// only reads the existing intent, never creating a second one.
func (s *Service) PixPayload(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error) {
	const op = "billing.PixPayload"

	sub, err := s.subs.GetPendingByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, op, "no pending payment")
		}
		return nil, apperr.Wrap(apperr.KindTransient, op, err)
	}

	if sub.PixQRCode != "" {
		return sub, nil
	}

	resp, err := s.gw.GetPixQRCode(ctx, gateway.PixQRCodeRequest{IntentID: sub.GatewayIntentID})
	if err != nil {
		return nil, err
	}
	if err := s.subs.SetPixPayload(ctx, sub.ID, resp.QRCode, resp.CopyPaste); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, op, err)
	}
	sub.PixQRCode = resp.QRCode
	sub.PixCopyPaste = resp.CopyPaste
	return sub, nil
}

// ResetPending cancels the outstanding gateway intent and returns the
// tenant to status none. Without a successful gateway cancel the local
// state stays pending.
func (s *Service) ResetPending(ctx context.Context, tenantID primitive.ObjectID) error {
	const op = "billing.ResetPending"

	sub, err := s.subs.GetPendingByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, op, "no pending payment to reset")
		}
		return apperr.Wrap(apperr.KindTransient, op, err)
	}

	if err := s.gw.CancelSubscription(ctx, gateway.CancelSubscriptionRequest{IntentID: sub.GatewayIntentID}); err != nil {
		return err
	}

	if err := s.subs.MarkReset(ctx, sub.ID); err != nil {
		return apperr.Wrap(apperr.KindTransient, op, err)
	}
	if err := s.tenants.SetSubscriptionStatus(ctx, tenantID, domain.SubscriptionNone); err != nil {
		s.log.Warn("tenant status denorm failed", zap.String("tenantId", tenantID.Hex()), zap.Error(err))
	}
	return nil
}

// ApplyGatewayStatus records a status reported by the gateway (callback or
// poll). Illegal transitions are rejected; local status never moves on
// anything but confirmed server state.
func (s *Service) ApplyGatewayStatus(ctx context.Context, intentID string, status domain.SubscriptionStatus) error {
	const op = "billing.ApplyGatewayStatus"

	sub, err := s.subs.GetByGatewayIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, op, "unknown payment intent")
		}
		return apperr.Wrap(apperr.KindTransient, op, err)
	}

	if sub.Status == status {
		return nil // idempotent redelivery
	}
	if !CanTransition(sub.Status, status) {
		return apperr.New(apperr.KindValidation, op,
			"illegal transition "+string(sub.Status)+" -> "+string(status))
	}

	if err := s.subs.SetStatus(ctx, sub.ID, status); err != nil {
		return apperr.Wrap(apperr.KindTransient, op, err)
	}
	if err := s.tenants.SetSubscriptionStatus(ctx, sub.TenantID, status); err != nil {
		s.log.Warn("tenant status denorm failed", zap.String("tenantId", sub.TenantID.Hex()), zap.Error(err))
	}
	return nil
}
