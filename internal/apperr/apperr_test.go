package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"coachfit/platform/internal/apperr"
)

func TestKindOf(t *testing.T) {
	c := qt.New(t)

	c.Assert(apperr.KindOf(errors.New("plain")), qt.Equals, apperr.KindInternal)
	c.Assert(apperr.KindOf(apperr.New(apperr.KindValidation, "op", "bad")), qt.Equals, apperr.KindValidation)

	// Kind survives wrapping with %w.
	wrapped := fmt.Errorf("outer: %w", apperr.Wrap(apperr.KindTransient, "op", errors.New("io")))
	c.Assert(apperr.KindOf(wrapped), qt.Equals, apperr.KindTransient)
	c.Assert(apperr.IsKind(wrapped, apperr.KindTransient), qt.IsTrue)
	c.Assert(apperr.IsKind(wrapped, apperr.KindNotFound), qt.IsFalse)
}

func TestErrorsIsMatchesKind(t *testing.T) {
	c := qt.New(t)

	err := apperr.New(apperr.KindNotFound, "repo.Get", "missing")
	c.Assert(errors.Is(err, &apperr.Error{Kind: apperr.KindNotFound}), qt.IsTrue)
	c.Assert(errors.Is(err, &apperr.Error{Kind: apperr.KindTransient}), qt.IsFalse)
}

func TestUnwrap(t *testing.T) {
	c := qt.New(t)

	cause := errors.New("connection refused")
	err := apperr.Wrap(apperr.KindTransient, "cache.fetch", cause)
	c.Assert(errors.Is(err, cause), qt.IsTrue)
}

func TestPartialWrite(t *testing.T) {
	c := qt.New(t)

	cause := errors.New("write failed")
	err := apperr.PartialWrite("expander.ExpandWorkout", cause, []string{"a", "b"})

	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindPartialWrite)
	c.Assert(err.CommittedIDs, qt.DeepEquals, []string{"a", "b"})
	c.Assert(errors.Is(err, cause), qt.IsTrue)

	var e *apperr.Error
	c.Assert(errors.As(fmt.Errorf("wrapped: %w", err), &e), qt.IsTrue)
	c.Assert(e.CommittedIDs, qt.DeepEquals, []string{"a", "b"})
}

func TestErrorString(t *testing.T) {
	c := qt.New(t)

	err := apperr.New(apperr.KindValidation, "billing.StartPayment", "plan required")
	c.Assert(err.Error(), qt.Equals, "billing.StartPayment: validation: plan required")
}
