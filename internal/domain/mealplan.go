package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MealPlan mirrors Workout: a template when ClientID is nil, otherwise a
// dated, client-owned snapshot instance.
type MealPlan struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TenantID primitive.ObjectID  `bson:"tenantId" json:"tenantId"`
	CoachID  primitive.ObjectID  `bson:"coachId" json:"coachId"`
	ClientID *primitive.ObjectID `bson:"clientId,omitempty" json:"clientId,omitempty"`
	Name     string              `bson:"name" json:"name"`
	Notes    string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Date     *time.Time          `bson:"date,omitempty" json:"date,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsTemplate reports whether the meal plan is a reusable template.
func (m *MealPlan) IsTemplate() bool {
	return m.ClientID == nil
}

// Food is a single entry in a meal. Copied verbatim on expansion; macros are
// never recomputed.
type Food struct {
	Name     string  `bson:"name" json:"name"`
	Amount   string  `bson:"amount,omitempty" json:"amount,omitempty"` // e.g. "150g", "2 units"
	Calories float64 `bson:"calories,omitempty" json:"calories,omitempty"`
	Protein  float64 `bson:"protein,omitempty" json:"protein,omitempty"`
	Carbs    float64 `bson:"carbs,omitempty" json:"carbs,omitempty"`
	Fat      float64 `bson:"fat,omitempty" json:"fat,omitempty"`
}

// Meal is a child of a MealPlan, optionally tagged with a weekday.
type Meal struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MealPlanID primitive.ObjectID `bson:"mealPlanId" json:"mealPlanId"`
	Name       string             `bson:"name" json:"name"` // e.g. "Café da manhã"
	Day        *Weekday           `bson:"day,omitempty" json:"day,omitempty"`
	OrderIndex int                `bson:"orderIndex" json:"orderIndex"`
	Time       string             `bson:"time,omitempty" json:"time,omitempty"` // "07:30"
	Foods      []Food             `bson:"foods,omitempty" json:"foods,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
