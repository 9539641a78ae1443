// Package resource implements the resilient read and write contracts shared
// by the cart, wishlist, catalog and order stores.
//
// Reads are cache-aside. On a cache miss the remote is asked; a transport
// failure is answered from the local fallback copy (or the empty value) and
// that answer is cached for the same TTL, so an outage does not hammer the
// network. A definitive answer from the server (not found, rejected, auth
// expired) is returned as is and never replaced by local data.
//
// Writes go to the remote first. On a transport failure the same change is
// applied to the fallback copy. Either way the affected cache keys are
// invalidated and the store's topic is published.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/observability"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

// Invalidator is the part of a cache a store needs to drop entries.
type Invalidator interface {
	Invalidate(keys ...string)
	InvalidatePrefix(prefix string)
	Reset()
}

// Config wires a Store.
type Config[S any] struct {
	Name string
	// Fallback holds the local copy; nil disables local recovery.
	Fallback *fallback.Adapter[S]
	// Key is the fallback key of the local copy inside its namespace.
	Key   string
	Empty func() S
	Bus   *bus.Bus
	Topic bus.Topic
	// SnapshotReads persists successful remote reads as the local copy.
	SnapshotReads bool
	Caches        []Invalidator
}

// Store is one resource domain: its local copy, the caches derived from it
// and its broadcast topic.
type Store[S any] struct {
	name      string
	fb        *fallback.Adapter[S]
	key       string
	empty     func() S
	bus       *bus.Bus
	topic     bus.Topic
	snapshots bool
	caches    []Invalidator
	tracer    trace.Tracer
	log       zerolog.Logger

	// mu serializes read-modify-write cycles on the local copy.
	mu sync.Mutex
}

// New builds a store.
func New[S any](cfg Config[S]) *Store[S] {
	empty := cfg.Empty
	if empty == nil {
		empty = func() S {
			var zero S
			return zero
		}
	}
	return &Store[S]{
		name:      cfg.Name,
		fb:        cfg.Fallback,
		key:       cfg.Key,
		empty:     empty,
		bus:       cfg.Bus,
		topic:     cfg.Topic,
		snapshots: cfg.SnapshotReads,
		caches:    cfg.Caches,
		tracer:    observability.Tracer("resource/" + cfg.Name),
		log:       log.With().Str("component", "resource").Str("resource", cfg.Name).Logger(),
	}
}

// Name returns the resource name.
func (s *Store[S]) Name() string { return s.name }

// Topic returns the broadcast topic.
func (s *Store[S]) Topic() bus.Topic { return s.topic }

// Local returns the local copy, or the empty value when there is none.
func (s *Store[S]) Local(ctx context.Context) S {
	if s.fb == nil {
		return s.empty()
	}
	if v, ok := s.fb.Read(ctx, s.key); ok {
		return v
	}
	return s.empty()
}

// Update applies fn to the local copy under the store lock and persists the
// result.
func (s *Store[S]) Update(ctx context.Context, fn func(S) (S, error)) error {
	if s.fb == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.Local(ctx))
	if err != nil {
		return err
	}
	return s.fb.Write(ctx, s.key, next)
}

// Invalidate drops keys and prefixes from every cache of the store.
func (s *Store[S]) Invalidate(keys []string, prefixes []string) {
	for _, c := range s.caches {
		if len(keys) > 0 {
			c.Invalidate(keys...)
		}
		for _, p := range prefixes {
			c.InvalidatePrefix(p)
		}
	}
}

// Publish broadcasts the store's topic.
func (s *Store[S]) Publish() {
	if s.bus != nil && s.topic != "" {
		s.bus.Publish(s.topic)
	}
}

// Reset clears every cache and the local copy.
func (s *Store[S]) Reset(ctx context.Context) error {
	for _, c := range s.caches {
		c.Reset()
	}
	if s.fb == nil {
		return nil
	}
	return s.fb.Delete(ctx, s.key)
}

// Read describes one cached read of a V derived from the store's local copy S.
type Read[V, S any] struct {
	Cache  *cache.Cache[V]
	Key    string
	TTL    time.Duration
	Remote func(ctx context.Context) (V, transport.Result)
	// Local projects the local copy when the remote is unreachable. A nil
	// Local makes transport failures propagate.
	Local func(stored S) (V, error)
	// Snapshot merges a successful remote value into the local copy. It only
	// runs when the store persists snapshots.
	Snapshot func(stored S, fetched V) S
}

// Get runs the read contract.
func Get[V, S any](ctx context.Context, s *Store[S], rd Read[V, S]) (V, error) {
	ctx, span := s.tracer.Start(ctx, s.name+".get", trace.WithAttributes(attribute.String("cache.key", rd.Key)))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var v V
	v, err = rd.Cache.GetOrFetch(ctx, rd.Key, rd.TTL, func(ctx context.Context) (V, error) {
		fetched, res := rd.Remote(ctx)
		switch res.Kind {
		case transport.OK:
			if s.snapshots && rd.Snapshot != nil && s.fb != nil {
				if err := s.Update(ctx, func(cur S) (S, error) { return rd.Snapshot(cur, fetched), nil }); err != nil {
					s.log.Warn().Err(err).Msg("snapshot write failed")
				}
			}
			return fetched, nil
		case transport.Transport:
			if s.fb == nil || rd.Local == nil {
				return fetched, res.Err()
			}
			observability.FallbackServed.WithLabelValues(s.name).Inc()
			span.SetAttributes(attribute.Bool("fallback", true))
			s.log.Debug().Str("key", rd.Key).Msg("serving local copy")
			return rd.Local(s.Local(ctx))
		}
		return fetched, res.Err()
	})
	return v, err
}

// Mutation describes one write producing a V.
type Mutation[V, S any] struct {
	Name   string
	Remote func(ctx context.Context) (V, transport.Result)
	// Local applies the same change to the local copy. A nil Local makes
	// transport failures propagate.
	Local func(stored S) (S, V, error)
	// Keys and Prefixes are dropped from every cache of the store.
	Keys     []string
	Prefixes []string
}

// Mutate runs the write contract.
func Mutate[V, S any](ctx context.Context, s *Store[S], m Mutation[V, S]) (V, error) {
	ctx, span := s.tracer.Start(ctx, s.name+"."+m.Name)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	v, res := m.Remote(ctx)
	switch res.Kind {
	case transport.OK:
	case transport.Transport:
		if s.fb == nil || m.Local == nil {
			err = res.Err()
			return v, err
		}
		v, err = applyLocal(ctx, s, m.Local)
		if err != nil {
			var zero V
			return zero, err
		}
		observability.FallbackMutations.WithLabelValues(s.name).Inc()
		span.SetAttributes(attribute.Bool("fallback", true))
		s.log.Info().Str("mutation", m.Name).Msg("applied locally while remote is unavailable")
	default:
		err = res.Err()
		return v, err
	}

	s.Invalidate(m.Keys, m.Prefixes)
	s.Publish()
	return v, nil
}

// applyLocal runs fn on the local copy under the store lock and persists
// the new copy.
func applyLocal[V, S any](ctx context.Context, s *Store[S], fn func(S) (S, V, error)) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	next, out, err := fn(s.Local(ctx))
	if err != nil {
		return zero, err
	}
	if err := s.fb.Write(ctx, s.key, next); err != nil {
		return zero, err
	}
	return out, nil
}
