package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workout is either a reusable template (ClientID == nil) or a dated,
// client-owned instance produced by expanding a template. An instance is an
// independent snapshot: it keeps no reference to the template it came from,
// so later template edits never propagate.
type Workout struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TenantID primitive.ObjectID  `bson:"tenantId" json:"tenantId"`
	CoachID  primitive.ObjectID  `bson:"coachId" json:"coachId"` // Denormalized for easier query/auth
	ClientID *primitive.ObjectID `bson:"clientId,omitempty" json:"clientId,omitempty"`
	Name     string              `bson:"name" json:"name"` // e.g. "Upper Body A"
	Notes    string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Date     *time.Time          `bson:"date,omitempty" json:"date,omitempty"` // Set on instances only

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsTemplate reports whether the workout is a reusable template.
func (w *Workout) IsTemplate() bool {
	return w.ClientID == nil
}

// WorkoutExercise is a child of a Workout. The optional Day tag places it in
// a weekly cycle; untagged exercises belong to a single day-agnostic session.
type WorkoutExercise struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkoutID  primitive.ObjectID `bson:"workoutId" json:"workoutId"`
	Name       string             `bson:"name" json:"name"`
	Day        *Weekday           `bson:"day,omitempty" json:"day,omitempty"`
	OrderIndex int                `bson:"orderIndex" json:"orderIndex"`
	Sets       int                `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps       string             `bson:"reps,omitempty" json:"reps,omitempty"` // Free-form: "8-12", "AMRAP"
	Weight     string             `bson:"weight,omitempty" json:"weight,omitempty"`
	RestSecs   int                `bson:"restSecs,omitempty" json:"restSecs,omitempty"`
	MediaURL   string             `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
