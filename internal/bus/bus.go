// Package bus is the in-process change notification channel between the
// history writers (poller, alias edits) and readers (search consumers,
// UI). A single broadcast event — "content changed" — carries no payload;
// subscribers re-query on receipt.
package bus

import "sync"

// Bus fans a content-changed signal out to all subscribers. Publish is
// non-blocking and best-effort: each subscriber holds a one-slot buffer,
// so pending notifications coalesce rather than queue.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's handle. Receive on C, and Close when
// the owning component shuts down so the registration doesn't leak.
type Subscription struct {
	C   chan struct{}
	bus *Bus

	once sync.Once
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{C: make(chan struct{}, 1), bus: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Close unregisters the subscription. Safe to call more than once.
// The channel is not closed; a reader blocked on C should also select on
// its own shutdown signal.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
}

// Publish notifies every subscriber that content changed. Callers must
// only publish after the corresponding durable write has committed.
func (b *Bus) Publish() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.C <- struct{}{}:
		default:
			// Subscriber already has a pending notification.
		}
	}
}
