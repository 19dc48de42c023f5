package realtime

import (
	"sync"

	"coachfit/platform/internal/cache"
	"coachfit/platform/internal/identity"
	"coachfit/platform/internal/metrics"

	"go.uber.org/zap"
)

// Registry maintains exactly the subscription set implied by the current
// identity snapshot. Any change to tenant, user, client, or assigned-coach
// id tears down the entire previous set before establishing the new one: no
// subscription may outlive the identity it was scoped to.
type Registry struct {
	transport Transport
	store     *cache.Store
	rules     []Rule
	log       *zap.Logger

	mu      sync.Mutex
	snap    identity.Snapshot
	active  []CancelFunc
	applied bool
	closed  bool
}

// NewRegistry builds a registry over the transport and cache. It installs
// itself as the transport's reconnect hook: events missed while disconnected
// are an accepted staleness window, but the subscription set is rebuilt
// without caller intervention.
func NewRegistry(transport Transport, store *cache.Store, rules []Rule, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		transport: transport,
		store:     store,
		rules:     rules,
		log:       log.Named("realtime"),
	}
	transport.OnReconnect(r.resubscribe)
	return r
}

// Apply reconciles the subscription set against a new identity snapshot.
// Identical scope is a no-op; otherwise teardown-before-setup.
func (r *Registry) Apply(snap identity.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.applied && snap.SameScope(r.snap) {
		r.snap = snap
		return
	}

	r.teardownLocked()
	r.snap = snap
	r.applied = true
	r.setupLocked()
}

// Close tears down every subscription permanently.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()
	r.closed = true
}

// ActiveCount returns the number of established subscriptions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// resubscribe rebuilds the current set after a transport reconnect.
func (r *Registry) resubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.applied {
		return
	}
	r.log.Info("transport reconnected, rebuilding subscriptions")
	r.teardownLocked()
	r.setupLocked()
}

func (r *Registry) teardownLocked() {
	for _, cancel := range r.active {
		cancel()
	}
	if len(r.active) > 0 {
		metrics.ActiveSubscriptions.Sub(float64(len(r.active)))
	}
	r.active = nil
}

// setupLocked evaluates the rule table against the current snapshot. Rules
// whose identity inputs are missing are skipped; the set never contains a
// wildcard or duplicate subscription because it is rebuilt from the table
// each time.
func (r *Registry) setupLocked() {
	metrics.RealtimeResubscribes.Inc()

	for _, rule := range r.rules {
		filter, ok := rule.Filter(r.snap)
		if !ok {
			continue
		}
		sub := Subscription{Table: rule.Table, Events: rule.Events, Filter: filter}
		keys := rule.Invalidates
		table := rule.Table

		cancel, err := r.transport.Subscribe(sub, func(ev Event) {
			metrics.RealtimeEvents.WithLabelValues(table).Inc()
			for _, key := range keys {
				r.store.Invalidate(key)
			}
		})
		if err != nil {
			// Transient: the reconnect hook retries the full set.
			r.log.Warn("subscribe failed",
				zap.String("table", table),
				zap.Error(err))
			continue
		}
		r.active = append(r.active, cancel)
		metrics.ActiveSubscriptions.Inc()
	}
}
