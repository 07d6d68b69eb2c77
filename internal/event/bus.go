package event

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/repo"
)

// Subscription identifies one registered listener.
type Subscription struct {
	id string
}

// ID returns the unique subscription identifier.
func (s Subscription) ID() string { return s.id }

type entry struct {
	sub      Subscription
	listener Listener
	active   atomic.Bool
}

// Bus is a process-wide listener registry.
type Bus struct {
	mu      sync.Mutex // guards entries
	entries []*entry   // replaced, never mutated in place

	publishMu sync.Mutex
	now       func() time.Time
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers l after every existing listener. A subscription made
// while a publish is in flight takes effect from the next publish.
func (b *Bus) Subscribe(l Listener) Subscription {
	e := &entry{sub: Subscription{id: uuid.NewString()}, listener: l}
	e.active.Store(true)

	b.mu.Lock()
	next := make([]*entry, len(b.entries), len(b.entries)+1)
	copy(next, b.entries)
	b.entries = append(next, e)
	b.mu.Unlock()
	return e.sub
}

// Unsubscribe removes a listener. It is not notified again, even by a
// publish that is already delivering to later listeners.
func (b *Bus) Unsubscribe(s Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e.sub == s {
			e.active.Store(false)
			next := make([]*entry, 0, len(b.entries)-1)
			next = append(next, b.entries[:i]...)
			b.entries = append(next, b.entries[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Publish notifies every listener of kind for h, in subscription order,
// before returning. A listener that panics is logged and skipped.
func (b *Bus) Publish(kind Kind, h *repo.Handle) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	snapshot := b.entries
	b.mu.Unlock()

	now := time.Now
	if b.now != nil {
		now = b.now
	}
	ev := Event{Kind: kind, Repository: h, Time: now()}
	for _, e := range snapshot {
		if !e.active.Load() {
			continue
		}
		b.deliver(e, ev)
	}
}

func (b *Bus) deliver(e *entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("subscription", e.sub.id).
				Stringer("kind", ev.Kind).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("repository listener panicked")
		}
	}()
	e.listener.OnRepositoryEvent(ev)
}
