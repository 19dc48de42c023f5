package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionStatus tracks a tenant's billing state against the gateway.
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Terminal reports whether the status represents a settled outcome.
// Only pending is non-terminal: at most one non-terminal subscription may
// exist per tenant at any time.
func (s SubscriptionStatus) Terminal() bool {
	return s != SubscriptionPending
}

// Subscription is a tenant-level payment intent and its lifecycle.
type Subscription struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID         primitive.ObjectID `bson:"tenantId" json:"tenantId"`
	Status           SubscriptionStatus `bson:"status" json:"status"`
	PlanID           string             `bson:"planId" json:"planId"`
	GatewayIntentID  string             `bson:"gatewayIntentId,omitempty" json:"-"`
	PixQRCode        string             `bson:"pixQrCode,omitempty" json:"pixQrCode,omitempty"`
	PixCopyPaste     string             `bson:"pixCopyPaste,omitempty" json:"pixCopyPaste,omitempty"`
	CurrentPeriodEnd *time.Time         `bson:"currentPeriodEnd,omitempty" json:"currentPeriodEnd,omitempty"`
	CancelledAt      *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	ResetAt          *time.Time         `bson:"resetAt,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WasReset reports whether the record is a user-reset payment intent rather
// than a cancellation reported by the gateway. A reset intent renders as
// status none.
func (s *Subscription) WasReset() bool {
	return s.ResetAt != nil
}
