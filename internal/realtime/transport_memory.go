package realtime

import (
	"sync"
)

// MemoryTransport is an in-process transport used in tests and single-node
// deployments. Delivery is synchronous and ordered per subscription, which
// matches the per-channel ordering guarantee of the production transport.
type MemoryTransport struct {
	mu         sync.Mutex
	nextID     int
	subs       map[int]memorySub
	onReconn   []func()
	disconnect bool
}

type memorySub struct {
	sub     Subscription
	handler EventHandler
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: make(map[int]memorySub)}
}

// Subscribe registers a handler for matching events.
func (t *MemoryTransport) Subscribe(sub Subscription, h EventHandler) (CancelFunc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = memorySub{sub: sub, handler: h}
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}, nil
}

// OnReconnect registers a callback fired after a simulated reconnect.
func (t *MemoryTransport) OnReconnect(cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReconn = append(t.onReconn, cb)
}

// Publish delivers the event to every matching subscription. Events
// published while disconnected are dropped, modelling the accepted
// staleness window.
func (t *MemoryTransport) Publish(ev Event) {
	t.mu.Lock()
	if t.disconnect {
		t.mu.Unlock()
		return
	}
	var handlers []EventHandler
	for _, s := range t.subs {
		if s.sub.Table != ev.Table {
			continue
		}
		if !s.sub.WantsType(ev.Type) {
			continue
		}
		if !s.sub.Filter.Matches(ev) {
			continue
		}
		handlers = append(handlers, s.handler)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// SimulateDisconnect drops all server-side subscription state.
func (t *MemoryTransport) SimulateDisconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnect = true
	t.subs = make(map[int]memorySub)
}

// SimulateReconnect restores connectivity and fires the reconnect hooks so
// the registry rebuilds its set.
func (t *MemoryTransport) SimulateReconnect() {
	t.mu.Lock()
	t.disconnect = false
	cbs := make([]func(), len(t.onReconn))
	copy(cbs, t.onReconn)
	t.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// SubscriptionCount reports the number of live server-side subscriptions.
func (t *MemoryTransport) SubscriptionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Subscriptions returns a copy of the live subscription descriptors.
func (t *MemoryTransport) Subscriptions() []Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Subscription, 0, len(t.subs))
	for _, s := range t.subs {
		out = append(out, s.sub)
	}
	return out
}
