package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)

// User represents an authenticated account (either a Coach or a Client).
// The coach-facing profile and the athlete-facing client record reference
// it by ID; the user itself carries no tenant data.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsCoach() bool {
	return u.Role == RoleCoach
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// Profile is a coach's record inside a tenant. A coach belongs to exactly
// one tenant.
type Profile struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	TenantID  primitive.ObjectID `bson:"tenantId" json:"tenantId"`
	Name      string             `bson:"name" json:"name"`
	Role      Role               `bson:"role" json:"role"`
	AvatarURL string             `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Client is an athlete's record. It belongs to exactly one tenant and one
// auth user, and optionally references the coach managing it.
type Client struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	TenantID        primitive.ObjectID  `bson:"tenantId" json:"tenantId"`
	AssignedCoachID *primitive.ObjectID `bson:"assignedCoachId,omitempty" json:"assignedCoachId,omitempty"`
	Name            string              `bson:"name" json:"name"`
	Email           string              `bson:"email" json:"email"`
	AvatarURL       string              `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	BirthDate       *time.Time          `bson:"birthDate,omitempty" json:"birthDate,omitempty"`
	Goal            string              `bson:"goal,omitempty" json:"goal,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// DeviceToken is an idempotent (user, token) registration for push delivery.
type DeviceToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Token     string             `bson:"token" json:"token"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
