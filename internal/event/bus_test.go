package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) listener(name string) ListenerFunc {
	return func(e Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, name+":"+e.Kind.String())
	}
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.listener("A"))
	bus.Subscribe(rec.listener("B"))

	bus.Publish(RepositoryChanged, nil)
	bus.Publish(HistoryChanged, nil)

	assert.Equal(t, []string{
		"A:repository-changed", "B:repository-changed",
		"A:history-changed", "B:history-changed",
	}, rec.events())
}

func TestOrderingUnderConcurrentPublish(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.listener("A"))
	bus.Subscribe(rec.listener("B"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(BranchesChanged, nil)
		}()
	}
	wg.Wait()

	got := rec.events()
	require.Len(t, got, 100)
	// Publishes are serialised, so each publish is an adjacent A,B pair.
	for i := 0; i < len(got); i += 2 {
		assert.Equal(t, "A:branches-changed", got[i])
		assert.Equal(t, "B:branches-changed", got[i+1])
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	a := bus.Subscribe(rec.listener("A"))
	bus.Subscribe(rec.listener("B"))
	require.Equal(t, 2, bus.Len())

	require.NoError(t, bus.Unsubscribe(a))
	assert.ErrorIs(t, bus.Unsubscribe(a), ErrSubscriptionNotFound)
	assert.Equal(t, 1, bus.Len())

	bus.Publish(RepositoryRemoved, nil)
	assert.Equal(t, []string{"B:repository-removed"}, rec.events())
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	var second Subscription
	bus.Subscribe(ListenerFunc(func(e Event) {
		rec.listener("A")(e)
		require.NoError(t, bus.Unsubscribe(second))
		bus.Subscribe(rec.listener("C"))
	}))
	second = bus.Subscribe(rec.listener("B"))

	bus.Publish(RepositoryChanged, nil)
	assert.Equal(t, []string{"A:repository-changed"}, rec.events(),
		"B is removed before its turn, C joins from the next publish")
}

func TestPanickingListenerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(ListenerFunc(func(Event) { panic("listener bug") }))
	bus.Subscribe(rec.listener("B"))

	assert.NotPanics(t, func() { bus.Publish(RepositoryAdded, nil) })
	assert.Equal(t, []string{"B:repository-added"}, rec.events())
}

func TestEventCarriesTime(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := &Bus{now: func() time.Time { return fixed }}
	var got Event
	bus.Subscribe(ListenerFunc(func(e Event) { got = e }))

	bus.Publish(HistoryChanged, nil)
	assert.Equal(t, HistoryChanged, got.Kind)
	assert.Equal(t, fixed, got.Time)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "branches-changed", BranchesChanged.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
