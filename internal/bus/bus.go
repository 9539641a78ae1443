// Package bus is the in-process invalidation broadcast. Publishing runs every
// current subscriber of the topic synchronously on the caller's goroutine;
// nothing is queued or persisted, so a publish with no subscribers is dropped.
// Subscribers re-read their store on each signal instead of applying deltas.
package bus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-storefront-client/internal/observability"
)

// Topic names a coarse change signal.
type Topic string

const (
	CartChanged     Topic = "cart-changed"
	WishlistChanged Topic = "wishlist-changed"
	OrdersChanged   Topic = "orders-changed"
	CatalogChanged  Topic = "catalog-changed"
	AuthChanged     Topic = "auth-changed"
)

// Topics lists every topic published by the stores.
func Topics() []Topic {
	return []Topic{CartChanged, WishlistChanged, OrdersChanged, CatalogChanged, AuthChanged}
}

// Handler reacts to a topic. It should be quick; long work belongs on its own
// goroutine.
type Handler func(Topic)

type subscriber struct {
	id uint64
	fn Handler
}

// Bus is safe for concurrent use. The zero value is not usable; call New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscriber
}

// New returns a bus with no subscribers.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]subscriber)}
}

// Subscribe registers fn for topic and returns its unsubscribe function.
// Calling unsubscribe more than once is harmless.
func (b *Bus) Subscribe(topic Topic, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[topic]
	for i, s := range list {
		if s.id == id {
			b.subs[topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Publish delivers topic to the subscribers registered at the time of the
// call. A panicking handler is logged and the remaining handlers still run.
func (b *Bus) Publish(topic Topic) {
	observability.BusPublishes.WithLabelValues(string(topic)).Inc()

	b.mu.RLock()
	list := append([]subscriber(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range list {
		deliver(topic, s.fn)
	}
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func deliver(topic Topic, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("topic", string(topic)).Msg("bus handler panicked")
		}
	}()
	fn(topic)
}
