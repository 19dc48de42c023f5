package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BrandColors is the tenant-owned palette rendered across both apps.
type BrandColors struct {
	Primary   string `bson:"primary" json:"primary"`
	Secondary string `bson:"secondary" json:"secondary"`
	Accent    string `bson:"accent" json:"accent"`
}

// DefaultBrandColors is used for anonymous or degraded identities and for
// tenants that never customised their palette.
func DefaultBrandColors() BrandColors {
	return BrandColors{
		Primary:   "#1A1A2E",
		Secondary: "#16213E",
		Accent:    "#E94560",
	}
}

// Tenant is a coaching business, the top-level multi-tenancy boundary.
// It owns branding, terminology overrides, and the billing relationship.
type Tenant struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"` // Unique, URL-safe business identifier
	LogoURL     string             `bson:"logoUrl,omitempty" json:"logoUrl,omitempty"`
	Colors      BrandColors        `bson:"colors" json:"colors"`
	Terminology map[string]string  `bson:"terminology,omitempty" json:"terminology,omitempty"` // e.g. "client" -> "athlete"

	// Billing fields, denormalized from the subscriptions collection for
	// cheap status rendering. Status changes only on confirmed gateway state.
	SubscriptionStatus SubscriptionStatus `bson:"subscriptionStatus" json:"subscriptionStatus"`
	GatewayCustomerID  string             `bson:"gatewayCustomerId,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
