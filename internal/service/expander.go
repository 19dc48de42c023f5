package service

import (
	"context"
	"time"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// daySlot is one dated instance to create: the calendar date and the
// indexes of the template children it receives.
type daySlot struct {
	date    time.Time
	indexes []int
}

// expansionSlots computes the dated instances for a template whose i-th
// child carries day tag days[i] (nil = untagged).
//
// With no tagged children the whole template becomes a single instance
// dated today. With tagged children, each non-empty weekday group becomes
// one instance dated at that weekday within the *current* week: the anchor
// is this week's Monday, so a weekday already past still yields a
// past-dated instance rather than rolling into next week.
func expansionSlots(days []*domain.Weekday, today time.Time) []daySlot {
	var (
		tagged   = make(map[domain.Weekday][]int)
		untagged []int
	)
	for i, d := range days {
		if d != nil && d.Valid() {
			tagged[*d] = append(tagged[*d], i)
		} else {
			untagged = append(untagged, i)
		}
	}

	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if len(tagged) == 0 {
		// Single day-agnostic session; also covers the empty template,
		// which still produces exactly one shell instance.
		return []daySlot{{date: todayDate, indexes: untagged}}
	}

	anchor := domain.WeekAnchor(today)
	order := []domain.Weekday{
		domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday,
		domain.Friday, domain.Saturday, domain.Sunday,
	}

	var slots []daySlot
	for _, wd := range order {
		idxs := tagged[wd]
		if len(idxs) == 0 {
			continue // never create an empty dated instance
		}
		off, _ := wd.Offset()
		slots = append(slots, daySlot{date: anchor.AddDate(0, 0, off), indexes: idxs})
	}
	return slots
}

// TemplateExpander clones weekday-tagged templates into concrete, dated,
// client-owned records. Instances are snapshots: once written they carry no
// link back to the template.
type TemplateExpander struct {
	workouts  repository.WorkoutRepository
	exercises repository.WorkoutExerciseRepository
	mealPlans repository.MealPlanRepository
	meals     repository.MealRepository
	log       *zap.Logger
}

// NewTemplateExpander builds the expander over the instance repositories.
func NewTemplateExpander(
	workouts repository.WorkoutRepository,
	exercises repository.WorkoutExerciseRepository,
	mealPlans repository.MealPlanRepository,
	meals repository.MealRepository,
	log *zap.Logger,
) *TemplateExpander {
	if log == nil {
		log = zap.NewNop()
	}
	return &TemplateExpander{
		workouts:  workouts,
		exercises: exercises,
		mealPlans: mealPlans,
		meals:     meals,
		log:       log.Named("expander"),
	}
}

// ExpandWorkout writes the dated instances for a workout template. The
// write is multi-step (shell, then children, per slot); a failure partway
// returns a partial-write error listing the records already committed so
// the caller can surface them for cleanup or retry. There is no automatic
// rollback.
func (e *TemplateExpander) ExpandWorkout(
	ctx context.Context,
	template *domain.Workout,
	children []domain.WorkoutExercise,
	clientID primitive.ObjectID,
	today time.Time,
) ([]domain.Workout, error) {
	const op = "expander.ExpandWorkout"

	days := make([]*domain.Weekday, len(children))
	for i := range children {
		days[i] = children[i].Day
	}

	var (
		committed []string
		instances []domain.Workout
	)
	for _, slot := range expansionSlots(days, today) {
		date := slot.date
		instance := domain.Workout{
			TenantID: template.TenantID,
			CoachID:  template.CoachID,
			ClientID: &clientID,
			Name:     template.Name,
			Notes:    template.Notes,
			Date:     &date,
		}
		id, err := e.workouts.Create(ctx, &instance)
		if err != nil {
			return instances, e.partial(op, err, committed)
		}
		committed = append(committed, id.Hex())

		clones := make([]domain.WorkoutExercise, 0, len(slot.indexes))
		for _, idx := range slot.indexes {
			src := children[idx]
			clones = append(clones, domain.WorkoutExercise{
				WorkoutID:  id,
				Name:       src.Name,
				Day:        src.Day,
				OrderIndex: src.OrderIndex, // verbatim, no renumbering
				Sets:       src.Sets,
				Reps:       src.Reps,
				Weight:     src.Weight,
				RestSecs:   src.RestSecs,
				MediaURL:   src.MediaURL,
			})
		}
		ids, err := e.exercises.CreateMany(ctx, clones)
		if err != nil {
			// The shell exists with no children: orphaned partial data.
			return instances, e.partial(op, err, committed)
		}
		for _, cid := range ids {
			committed = append(committed, cid.Hex())
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// ExpandMealPlan mirrors ExpandWorkout for diet templates. Meal payloads
// (foods, macros) are copied verbatim; nothing is recomputed.
func (e *TemplateExpander) ExpandMealPlan(
	ctx context.Context,
	template *domain.MealPlan,
	children []domain.Meal,
	clientID primitive.ObjectID,
	today time.Time,
) ([]domain.MealPlan, error) {
	const op = "expander.ExpandMealPlan"

	days := make([]*domain.Weekday, len(children))
	for i := range children {
		days[i] = children[i].Day
	}

	var (
		committed []string
		instances []domain.MealPlan
	)
	for _, slot := range expansionSlots(days, today) {
		date := slot.date
		instance := domain.MealPlan{
			TenantID: template.TenantID,
			CoachID:  template.CoachID,
			ClientID: &clientID,
			Name:     template.Name,
			Notes:    template.Notes,
			Date:     &date,
		}
		id, err := e.mealPlans.Create(ctx, &instance)
		if err != nil {
			return instances, e.partial(op, err, committed)
		}
		committed = append(committed, id.Hex())

		clones := make([]domain.Meal, 0, len(slot.indexes))
		for _, idx := range slot.indexes {
			src := children[idx]
			clones = append(clones, domain.Meal{
				MealPlanID: id,
				Name:       src.Name,
				Day:        src.Day,
				OrderIndex: src.OrderIndex,
				Time:       src.Time,
				Foods:      src.Foods,
			})
		}
		ids, err := e.meals.CreateMany(ctx, clones)
		if err != nil {
			return instances, e.partial(op, err, committed)
		}
		for _, cid := range ids {
			committed = append(committed, cid.Hex())
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// partial logs and wraps a mid-expansion failure distinctly from a clean
// one: it may have left an orphaned shell or a subset of per-day instances.
func (e *TemplateExpander) partial(op string, err error, committed []string) error {
	if len(committed) == 0 {
		return apperr.Wrap(apperr.KindTransient, op, err)
	}
	e.log.Error("template expansion failed after partial commit",
		zap.String("op", op),
		zap.Strings("committed", committed),
		zap.Error(err))
	return apperr.PartialWrite(op, err, committed)
}
