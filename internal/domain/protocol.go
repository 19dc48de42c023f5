package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HormonalProtocol is a simple tenant+client scoped record.
type HormonalProtocol struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID `bson:"tenantId" json:"tenantId"`
	CoachID   primitive.ObjectID `bson:"coachId" json:"coachId"`
	ClientID  primitive.ObjectID `bson:"clientId" json:"clientId"`
	Name      string             `bson:"name" json:"name"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	StartDate *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate   *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HormonalCompound is a child of a HormonalProtocol.
type HormonalCompound struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProtocolID primitive.ObjectID `bson:"protocolId" json:"protocolId"`
	Name       string             `bson:"name" json:"name"`
	Dosage     string             `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Frequency  string             `bson:"frequency,omitempty" json:"frequency,omitempty"`
	OrderIndex int                `bson:"orderIndex" json:"orderIndex"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
