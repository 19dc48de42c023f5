package service

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"
)

func day(w domain.Weekday) *domain.Weekday { return &w }

// wednesday 2025-06-04; its week runs 2025-06-02 (Mon) .. 2025-06-08 (Sun).
var (
	testToday  = time.Date(2025, 6, 4, 14, 30, 0, 0, time.UTC)
	testMonday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
)

func TestExpansionSlotsUntaggedOnly(t *testing.T) {
	c := qt.New(t)

	slots := expansionSlots([]*domain.Weekday{nil, nil, nil}, testToday)

	c.Assert(slots, qt.HasLen, 1)
	c.Assert(slots[0].date, qt.Equals, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC))
	c.Assert(slots[0].indexes, qt.DeepEquals, []int{0, 1, 2})
}

// An empty template still produces exactly one shell instance.
func TestExpansionSlotsEmptyTemplate(t *testing.T) {
	c := qt.New(t)

	slots := expansionSlots(nil, testToday)

	c.Assert(slots, qt.HasLen, 1)
	c.Assert(slots[0].indexes, qt.HasLen, 0)
}

func TestExpansionSlotsWeekdayGroups(t *testing.T) {
	c := qt.New(t)

	days := []*domain.Weekday{
		day(domain.Friday),
		day(domain.Monday),
		day(domain.Monday),
		day(domain.Friday),
	}
	slots := expansionSlots(days, testToday)

	c.Assert(slots, qt.HasLen, 2)
	// Slots come out in fixed Monday..Sunday order regardless of child order.
	c.Assert(slots[0].date, qt.Equals, testMonday)
	c.Assert(slots[0].indexes, qt.DeepEquals, []int{1, 2})
	c.Assert(slots[1].date, qt.Equals, testMonday.AddDate(0, 0, 4))
	c.Assert(slots[1].indexes, qt.DeepEquals, []int{0, 3})
}

// A weekday earlier in the week than today still lands in the current week:
// assigning on Wednesday dates the Monday session two days in the past.
func TestExpansionSlotsPastWeekdayStaysInCurrentWeek(t *testing.T) {
	c := qt.New(t)

	slots := expansionSlots([]*domain.Weekday{day(domain.Monday)}, testToday)

	c.Assert(slots, qt.HasLen, 1)
	c.Assert(slots[0].date, qt.Equals, testMonday)
	c.Assert(slots[0].date.Before(testToday), qt.IsTrue)
}

func TestExpansionSlotsSkipsEmptyWeekdays(t *testing.T) {
	c := qt.New(t)

	days := []*domain.Weekday{day(domain.Sunday)}
	slots := expansionSlots(days, testToday)

	c.Assert(slots, qt.HasLen, 1)
	c.Assert(slots[0].date, qt.Equals, testMonday.AddDate(0, 0, 6))
}

// Untagged children alongside tagged ones do not produce an extra
// day-agnostic instance; only weekday groups expand.
func TestExpansionSlotsMixedTaggedWins(t *testing.T) {
	c := qt.New(t)

	days := []*domain.Weekday{day(domain.Tuesday), nil}
	slots := expansionSlots(days, testToday)

	c.Assert(slots, qt.HasLen, 1)
	c.Assert(slots[0].indexes, qt.DeepEquals, []int{0})
}

// --- Expansion write path ---

type fakeWorkoutRepo struct {
	repository.WorkoutRepository
	created   []*domain.Workout
	failAfter int // fail Create after this many successes; <0 disables
}

func (f *fakeWorkoutRepo) Create(ctx context.Context, w *domain.Workout) (primitive.ObjectID, error) {
	if f.failAfter >= 0 && len(f.created) >= f.failAfter {
		return primitive.NilObjectID, errors.New("write failed")
	}
	w.ID = primitive.NewObjectID()
	f.created = append(f.created, w)
	return w.ID, nil
}

type fakeExerciseRepo struct {
	repository.WorkoutExerciseRepository
	created []domain.WorkoutExercise
	fail    bool
}

func (f *fakeExerciseRepo) CreateMany(ctx context.Context, exercises []domain.WorkoutExercise) ([]primitive.ObjectID, error) {
	if f.fail {
		return nil, errors.New("write failed")
	}
	ids := make([]primitive.ObjectID, len(exercises))
	for i := range exercises {
		exercises[i].ID = primitive.NewObjectID()
		ids[i] = exercises[i].ID
	}
	f.created = append(f.created, exercises...)
	return ids, nil
}

func newTestExpander(workouts *fakeWorkoutRepo, exercises *fakeExerciseRepo) *TemplateExpander {
	return NewTemplateExpander(workouts, exercises, nil, nil, nil)
}

func workoutTemplate() (*domain.Workout, []domain.WorkoutExercise) {
	template := &domain.Workout{
		ID:       primitive.NewObjectID(),
		TenantID: primitive.NewObjectID(),
		CoachID:  primitive.NewObjectID(),
		Name:     "Upper/Lower Split",
		Notes:    "progressive overload",
	}
	children := []domain.WorkoutExercise{
		{WorkoutID: template.ID, Name: "Bench Press", Day: day(domain.Monday), OrderIndex: 0, Sets: 4, Reps: "8-10", Weight: "80kg", RestSecs: 120},
		{WorkoutID: template.ID, Name: "Barbell Row", Day: day(domain.Monday), OrderIndex: 1, Sets: 4, Reps: "8-12"},
		{WorkoutID: template.ID, Name: "Squat", Day: day(domain.Thursday), OrderIndex: 0, Sets: 5, Reps: "5", Weight: "120kg", RestSecs: 180},
	}
	return template, children
}

func TestExpandWorkoutCreatesPerDayInstances(t *testing.T) {
	c := qt.New(t)

	workouts := &fakeWorkoutRepo{failAfter: -1}
	exercises := &fakeExerciseRepo{}
	e := newTestExpander(workouts, exercises)

	template, children := workoutTemplate()
	clientID := primitive.NewObjectID()

	instances, err := e.ExpandWorkout(context.Background(), template, children, clientID, testToday)
	c.Assert(err, qt.IsNil)
	c.Assert(instances, qt.HasLen, 2)

	// Monday instance, then Thursday instance.
	c.Assert(*instances[0].Date, qt.Equals, testMonday)
	c.Assert(*instances[1].Date, qt.Equals, testMonday.AddDate(0, 0, 3))

	for _, inst := range instances {
		c.Assert(inst.ClientID, qt.IsNotNil)
		c.Assert(*inst.ClientID, qt.Equals, clientID)
		c.Assert(inst.Name, qt.Equals, template.Name)
		c.Assert(inst.Notes, qt.Equals, template.Notes)
		c.Assert(inst.TenantID, qt.Equals, template.TenantID)
		c.Assert(inst.ID, qt.Not(qt.Equals), template.ID) // snapshot, no template link
	}
}

// Children are copied verbatim: order indexes, sets, reps, weights come
// through untouched, re-parented onto the new instance.
func TestExpandWorkoutCopiesChildrenVerbatim(t *testing.T) {
	c := qt.New(t)

	workouts := &fakeWorkoutRepo{failAfter: -1}
	exercises := &fakeExerciseRepo{}
	e := newTestExpander(workouts, exercises)

	template, children := workoutTemplate()
	clientID := primitive.NewObjectID()

	instances, err := e.ExpandWorkout(context.Background(), template, children, clientID, testToday)
	c.Assert(err, qt.IsNil)
	c.Assert(exercises.created, qt.HasLen, 3)

	monday := instances[0].ID
	c.Assert(exercises.created[0].WorkoutID, qt.Equals, monday)
	c.Assert(exercises.created[0].Name, qt.Equals, "Bench Press")
	c.Assert(exercises.created[0].OrderIndex, qt.Equals, 0)
	c.Assert(exercises.created[0].Sets, qt.Equals, 4)
	c.Assert(exercises.created[0].Reps, qt.Equals, "8-10")
	c.Assert(exercises.created[0].Weight, qt.Equals, "80kg")
	c.Assert(exercises.created[1].WorkoutID, qt.Equals, monday)
	c.Assert(exercises.created[1].OrderIndex, qt.Equals, 1)

	thursday := instances[1].ID
	c.Assert(exercises.created[2].WorkoutID, qt.Equals, thursday)
	c.Assert(exercises.created[2].Name, qt.Equals, "Squat")
}

// A failure partway through reports a partial write carrying the committed
// ids; there is no rollback.
func TestExpandWorkoutPartialFailure(t *testing.T) {
	c := qt.New(t)

	workouts := &fakeWorkoutRepo{failAfter: 1} // second shell create fails
	exercises := &fakeExerciseRepo{}
	e := newTestExpander(workouts, exercises)

	template, children := workoutTemplate()

	instances, err := e.ExpandWorkout(context.Background(), template, children, primitive.NewObjectID(), testToday)
	c.Assert(err, qt.IsNotNil)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindPartialWrite)

	var appErr *apperr.Error
	c.Assert(errors.As(err, &appErr), qt.IsTrue)
	// One shell + its two Monday exercises committed before the failure.
	c.Assert(appErr.CommittedIDs, qt.HasLen, 3)
	c.Assert(instances, qt.HasLen, 1)
}

// Failing on the very first write is a clean transient error: nothing
// committed, nothing orphaned.
func TestExpandWorkoutFirstWriteFailure(t *testing.T) {
	c := qt.New(t)

	workouts := &fakeWorkoutRepo{failAfter: 0}
	e := newTestExpander(workouts, &fakeExerciseRepo{})

	template, children := workoutTemplate()

	_, err := e.ExpandWorkout(context.Background(), template, children, primitive.NewObjectID(), testToday)
	c.Assert(err, qt.IsNotNil)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindTransient)
}

func TestExpandWorkoutChildWriteFailure(t *testing.T) {
	c := qt.New(t)

	workouts := &fakeWorkoutRepo{failAfter: -1}
	exercises := &fakeExerciseRepo{fail: true}
	e := newTestExpander(workouts, exercises)

	template, children := workoutTemplate()

	_, err := e.ExpandWorkout(context.Background(), template, children, primitive.NewObjectID(), testToday)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindPartialWrite)

	var appErr *apperr.Error
	c.Assert(errors.As(err, &appErr), qt.IsTrue)
	c.Assert(appErr.CommittedIDs, qt.HasLen, 1) // the orphaned shell
}

// --- Meal plan expansion ---

type fakeMealPlanRepo struct {
	repository.MealPlanRepository
	created []*domain.MealPlan
}

func (f *fakeMealPlanRepo) Create(ctx context.Context, p *domain.MealPlan) (primitive.ObjectID, error) {
	p.ID = primitive.NewObjectID()
	f.created = append(f.created, p)
	return p.ID, nil
}

type fakeMealRepo struct {
	repository.MealRepository
	created []domain.Meal
}

func (f *fakeMealRepo) CreateMany(ctx context.Context, meals []domain.Meal) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, len(meals))
	for i := range meals {
		meals[i].ID = primitive.NewObjectID()
		ids[i] = meals[i].ID
	}
	f.created = append(f.created, meals...)
	return ids, nil
}

// Meal payloads (foods, macros) are copied verbatim; nothing is recomputed.
func TestExpandMealPlanCopiesFoods(t *testing.T) {
	c := qt.New(t)

	plans := &fakeMealPlanRepo{}
	meals := &fakeMealRepo{}
	e := NewTemplateExpander(nil, nil, plans, meals, nil)

	template := &domain.MealPlan{
		ID:       primitive.NewObjectID(),
		TenantID: primitive.NewObjectID(),
		CoachID:  primitive.NewObjectID(),
		Name:     "Cutting 2200kcal",
	}
	foods := []domain.Food{
		{Name: "Chicken breast", Amount: "200g", Calories: 330, Protein: 62},
		{Name: "Rice", Amount: "150g", Calories: 195, Carbs: 42},
	}
	children := []domain.Meal{
		{MealPlanID: template.ID, Name: "Lunch", Day: day(domain.Wednesday), OrderIndex: 0, Time: "12:30", Foods: foods},
	}

	instances, err := e.ExpandMealPlan(context.Background(), template, children, primitive.NewObjectID(), testToday)
	c.Assert(err, qt.IsNil)
	c.Assert(instances, qt.HasLen, 1)
	c.Assert(*instances[0].Date, qt.Equals, testMonday.AddDate(0, 0, 2))

	c.Assert(meals.created, qt.HasLen, 1)
	c.Assert(meals.created[0].MealPlanID, qt.Equals, instances[0].ID)
	c.Assert(meals.created[0].Time, qt.Equals, "12:30")
	c.Assert(meals.created[0].Foods, qt.DeepEquals, foods)
}
