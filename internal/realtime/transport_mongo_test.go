package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeChangeStream blocks in Next until its fail channel closes or the
// context ends.
type fakeChangeStream struct {
	fail chan struct{}
	err  error
}

func (s *fakeChangeStream) Next(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.fail:
		return false
	}
}

func (s *fakeChangeStream) Decode(val interface{}) error { return nil }

func (s *fakeChangeStream) Err() error {
	select {
	case <-s.fail:
		return s.err
	default:
		return nil
	}
}

func (s *fakeChangeStream) Close(ctx context.Context) error { return nil }

func waitCond(c *qt.C, cond func() bool) {
	c.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Fatal("condition not reached in time")
}

// The reconnect hook must stay silent on the first open of a fresh
// subscription and fire exactly once when an established stream is
// reopened; otherwise setup of a full rule set triggers an endless
// teardown/resubscribe cycle through the registry.
func TestReconnectHookFiresOnlyOnReopen(t *testing.T) {
	c := qt.New(t)

	var mu sync.Mutex
	var opens int
	var streams []*fakeChangeStream

	tr := NewMongoTransport(nil, time.Millisecond, 10*time.Millisecond, nil)
	tr.watch = func(ctx context.Context, table string, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) (changeStream, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		s := &fakeChangeStream{fail: make(chan struct{}), err: errors.New("resume token lost")}
		streams = append(streams, s)
		return s, nil
	}

	var reconnects int64
	tr.OnReconnect(func() { atomic.AddInt64(&reconnects, 1) })

	cancel, err := tr.Subscribe(Subscription{Table: "workouts"}, func(Event) {})
	c.Assert(err, qt.IsNil)
	defer cancel()

	waitCond(c, func() bool { mu.Lock(); defer mu.Unlock(); return opens == 1 })
	time.Sleep(20 * time.Millisecond)
	c.Assert(atomic.LoadInt64(&reconnects), qt.Equals, int64(0))

	// Kill the established stream; the reopen fires the hook once.
	mu.Lock()
	close(streams[0].fail)
	mu.Unlock()

	waitCond(c, func() bool { mu.Lock(); defer mu.Unlock(); return opens == 2 })
	waitCond(c, func() bool { return atomic.LoadInt64(&reconnects) == 1 })
	time.Sleep(20 * time.Millisecond)
	c.Assert(atomic.LoadInt64(&reconnects), qt.Equals, int64(1))
}

// A subscription whose very first open fails and then succeeds on retry was
// never established, so the eventual open is still setup, not a reconnect.
func TestFirstOpenRetryDoesNotFireReconnect(t *testing.T) {
	c := qt.New(t)

	var mu sync.Mutex
	var opens int

	tr := NewMongoTransport(nil, time.Millisecond, 10*time.Millisecond, nil)
	tr.watch = func(ctx context.Context, table string, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) (changeStream, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		if opens == 1 {
			return nil, errors.New("server selection timeout")
		}
		return &fakeChangeStream{fail: make(chan struct{})}, nil
	}

	var reconnects int64
	tr.OnReconnect(func() { atomic.AddInt64(&reconnects, 1) })

	cancel, err := tr.Subscribe(Subscription{Table: "workouts"}, func(Event) {})
	c.Assert(err, qt.IsNil)
	defer cancel()

	waitCond(c, func() bool { mu.Lock(); defer mu.Unlock(); return opens == 2 })
	time.Sleep(20 * time.Millisecond)
	c.Assert(atomic.LoadInt64(&reconnects), qt.Equals, int64(0))
}
