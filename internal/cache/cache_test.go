package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/cache"
)

const testKey = cache.Key("workouts")

func newStore() *cache.Store {
	return cache.New(time.Minute, time.Second, nil)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(c *qt.C, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Fatal("condition not reached in time")
}

func TestGetMissBlocksOnFetch(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	var fetches int64
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&fetches, 1)
		return "v1", nil
	})

	v, err := s.Get(context.Background(), testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "v1")
	c.Assert(atomic.LoadInt64(&fetches), qt.Equals, int64(1))

	// Fresh entry: no second fetch.
	v, err = s.Get(context.Background(), testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "v1")
	c.Assert(atomic.LoadInt64(&fetches), qt.Equals, int64(1))
}

func TestGetWithoutFetcher(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	_, err := s.Get(context.Background(), testKey)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindNotFound)
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	var fetches int64
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&fetches, 1)
		time.Sleep(50 * time.Millisecond)
		return "v1", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Get(context.Background(), testKey)
			c.Check(err, qt.IsNil)
			c.Check(v, qt.Equals, "v1")
		}()
	}
	wg.Wait()
	c.Assert(atomic.LoadInt64(&fetches), qt.Equals, int64(1))
}

func TestInvalidateServesStaleThenRevalidates(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	var fetches int64
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt64(&fetches, 1)
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	})

	s.Set(testKey, "v1")
	s.Invalidate(testKey)

	waitFor(c, func() bool { return atomic.LoadInt64(&fetches) >= 1 })
	waitFor(c, func() bool {
		v, err := s.Get(context.Background(), testKey)
		return err == nil && (v == "v1" || v == "v2")
	})
}

// Invalidating N times in a row must cost no more re-fetches than
// invalidating once.
func TestInvalidateIsIdempotent(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	var fetches int64
	gate := make(chan struct{})
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&fetches, 1)
		<-gate
		return "v2", nil
	})
	s.Set(testKey, "v1")

	for i := 0; i < 25; i++ {
		s.Invalidate(testKey)
	}

	waitFor(c, func() bool { return atomic.LoadInt64(&fetches) == 1 })
	close(gate)

	waitFor(c, func() bool {
		v, err := s.Get(context.Background(), testKey)
		return err == nil && v == "v2"
	})
	c.Assert(atomic.LoadInt64(&fetches), qt.Equals, int64(1))
}

func TestInvalidateWithoutFetcherOnlyMarksStale(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	s.Set(testKey, "v1")
	s.Invalidate(testKey) // no fetcher registered, must not panic

	// Value is still readable once a fetcher appears.
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		return "v2", nil
	})
	v, err := s.Get(context.Background(), testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "v1") // stale serve, revalidation in background
}

func TestFailedRevalidationKeepsStaleValue(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	var fetches int64
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&fetches, 1)
		return nil, context.DeadlineExceeded
	})
	s.Set(testKey, "v1")
	s.Invalidate(testKey)

	waitFor(c, func() bool { return atomic.LoadInt64(&fetches) >= 1 })

	v, err := s.Get(context.Background(), testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "v1")
}

func TestResetDropsEntriesAndFetchers(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		return "v1", nil
	})
	s.Set(testKey, "v1")

	s.Reset()

	_, err := s.Get(context.Background(), testKey)
	c.Assert(apperr.KindOf(err), qt.Equals, apperr.KindNotFound)
}

// A fetch still in flight when Reset re-scopes the store must not leak its
// result into the new scope, and callers after the Reset must not join it.
func TestResetDiscardsInFlightFetch(t *testing.T) {
	c := qt.New(t)
	s := newStore()

	started := make(chan struct{})
	gate := make(chan struct{})
	var startedOnce sync.Once
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		startedOnce.Do(func() { close(started) })
		<-gate
		return "first-identity", nil
	})

	firstDone := make(chan interface{}, 1)
	go func() {
		v, _ := s.Get(context.Background(), testKey)
		firstDone <- v
	}()
	<-started

	// Identity switch while the first fetch is still blocked.
	s.Reset()
	var secondFetches int64
	s.RegisterFetcher(testKey, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&secondFetches, 1)
		return "second-identity", nil
	})

	// A miss in the new scope runs the new fetcher instead of joining the
	// old flight.
	v, err := s.Get(context.Background(), testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "second-identity")
	c.Assert(atomic.LoadInt64(&secondFetches), qt.Equals, int64(1))

	// Let the orphaned fetch complete; its result must not land.
	close(gate)
	c.Assert(<-firstDone, qt.Equals, "first-identity")
	v, err = s.Get(context.Background(), testKey)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "second-identity")
	c.Assert(atomic.LoadInt64(&secondFetches), qt.Equals, int64(1))
}
