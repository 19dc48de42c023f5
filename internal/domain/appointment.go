package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AppointmentStatus type for appointment lifecycle
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a scheduled session between a coach and a client.
type Appointment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID `bson:"tenantId" json:"tenantId"`
	CoachID   primitive.ObjectID `bson:"coachId" json:"coachId"`
	ClientID  primitive.ObjectID `bson:"clientId" json:"clientId"`
	Title     string             `bson:"title" json:"title"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	StartsAt  time.Time          `bson:"startsAt" json:"startsAt"`
	EndsAt    time.Time          `bson:"endsAt" json:"endsAt"`
	Status    AppointmentStatus  `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ChatMessage is a tenant-scoped message between a coach and a client.
type ChatMessage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   primitive.ObjectID `bson:"tenantId" json:"tenantId"`
	ClientID   primitive.ObjectID `bson:"clientId" json:"clientId"`
	SenderID   primitive.ObjectID `bson:"senderId" json:"senderId"` // User ID of coach or client
	SenderRole Role               `bson:"senderRole" json:"senderRole"`
	Body       string             `bson:"body" json:"body"`
	SentAt     time.Time          `bson:"sentAt" json:"sentAt"`
}
