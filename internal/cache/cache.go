// Package cache implements the keyed stale-while-revalidate query store the
// sync layer writes into. Entries are read by many surfaces concurrently;
// only registered fetchers, explicit Set calls, and invalidation-triggered
// re-fetches ever write.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query result.
type Key string

// Well-known keys used by the subscription rule table.
const (
	KeyProfile      Key = "profile"
	KeyCoachProfile Key = "coach-profile"
	KeyWorkouts     Key = "workouts"
	KeyMealPlans    Key = "meal-plans"
	KeyProtocols    Key = "hormonal-protocols"
	KeyAppointments Key = "appointments"
	KeyChat         Key = "chat"
	KeySubscription Key = "subscription"
)

// Fetcher loads the current truth for a key from the backend.
type Fetcher func(ctx context.Context) (interface{}, error)

type entry struct {
	value     interface{}
	fetchedAt time.Time
	stale     bool
}

// Store is a stale-while-revalidate cache with request de-duplication.
type Store struct {
	ttl          time.Duration
	fetchTimeout time.Duration
	log          *zap.Logger

	mu           sync.Mutex
	scope        uint64
	entries      map[Key]*entry
	fetchers     map[Key]Fetcher
	revalidating map[Key]bool

	group singleflight.Group
}

// New creates an empty store. ttl bounds freshness; fetchTimeout bounds
// every backend fetch.
func New(ttl, fetchTimeout time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
		log:          log.Named("cache"),
		entries:      make(map[Key]*entry),
		fetchers:     make(map[Key]Fetcher),
		revalidating: make(map[Key]bool),
	}
}

// RegisterFetcher binds the backend loader for a key. Re-registering
// replaces the previous fetcher.
func (s *Store) RegisterFetcher(key Key, f Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchers[key] = f
}

// Get returns the value for key. Fresh entries are served directly. Stale
// entries are served immediately while a background revalidation runs.
// Missing entries block on a de-duplicated fetch.
func (s *Store) Get(ctx context.Context, key Key) (interface{}, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && !e.stale && time.Since(e.fetchedAt) < s.ttl {
		value := e.value
		s.mu.Unlock()
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return value, nil
	}
	if ok {
		// Serve stale, revalidate behind the caller's back.
		value := e.value
		s.mu.Unlock()
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		s.revalidate(key)
		return value, nil
	}
	s.mu.Unlock()

	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return s.fetch(ctx, key)
}

// Set writes a value directly, e.g. after a local mutation whose response
// already carries the new truth.
func (s *Store) Set(key Key, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{value: value, fetchedAt: time.Now()}
}

// Invalidate marks the key stale and triggers at most one background
// re-fetch. Invalidating N times in a row costs no more re-fetches than
// invalidating once: the signal carries no payload, only "re-fetch current
// truth".
func (s *Store) Invalidate(key Key) {
	metrics.CacheInvalidations.WithLabelValues(string(key)).Inc()

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.stale = true
	}
	_, hasFetcher := s.fetchers[key]
	s.mu.Unlock()

	if hasFetcher {
		s.revalidate(key)
	}
}

// Reset drops all entries and fetchers. Called on identity teardown so no
// cached value outlives the identity it was fetched for. Bumping the scope
// orphans in-flight fetches: their results are discarded on completion and
// later callers never coalesce onto them.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope++
	s.entries = make(map[Key]*entry)
	s.fetchers = make(map[Key]Fetcher)
}

// revalidate spawns a single background fetch for the key. Concurrent
// invalidations while one is running collapse into it.
func (s *Store) revalidate(key Key) {
	s.mu.Lock()
	if s.revalidating[key] {
		s.mu.Unlock()
		return
	}
	s.revalidating[key] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.revalidating, key)
			s.mu.Unlock()
		}()
		if _, err := s.fetch(context.Background(), key); err != nil {
			// Keep the stale value; the next invalidation or explicit
			// refresh retries.
			s.log.Warn("revalidation failed",
				zap.String("key", string(key)),
				zap.Error(err))
		}
	}()
}

// fetch loads the key through singleflight so concurrent callers share one
// backend call. The flight key carries the scope, so a call issued after
// Reset never joins a flight started for the previous identity; the write
// re-checks the scope so an orphaned flight's result never lands.
func (s *Store) fetch(ctx context.Context, key Key) (interface{}, error) {
	s.mu.Lock()
	fetcher, ok := s.fetchers[key]
	scope := s.scope
	s.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "cache.fetch", "no fetcher registered for key "+string(key))
	}

	flight := string(key) + "@" + strconv.FormatUint(scope, 10)
	value, err, _ := s.group.Do(flight, func() (interface{}, error) {
		metrics.CacheRefetches.WithLabelValues(string(key)).Inc()

		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		v, err := fetcher(fetchCtx)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindTransient, "cache.fetch", err)
		}

		s.mu.Lock()
		if s.scope == scope {
			s.entries[key] = &entry{value: v, fetchedAt: time.Now()}
		}
		s.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
