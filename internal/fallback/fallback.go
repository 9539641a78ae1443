// Package fallback is the only place resource state is persisted outside the
// remote API. An Adapter reads and writes one namespace of a repo.KV as
// canonical JSON. Values that no longer decode or validate are reported as
// absent, so a corrupted copy degrades to an empty result instead of an error.
package fallback

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/observability"
	"github.com/tbourn/go-storefront-client/internal/repo"
)

// Namespaces and keys of the persisted client-side state.
const (
	NamespaceAuth         = "auth"
	NamespaceSession      = "session"
	NamespaceCart         = "cart"
	NamespaceWishlist     = "wishlist"
	NamespaceOrders       = "orders"
	NamespaceMockUsers    = "mock-users"
	NamespaceMockProducts = "mock-products"

	KeyCredentials   = "credentials"
	KeyGuestSession  = "guest"
	KeyCurrent       = "current"
	KeyEntries       = "entries"
	KeyAll           = "all"
	KeyOfflineSecret = "offline-secret"
)

// Adapter persists values of type T in one namespace.
type Adapter[T any] struct {
	kv        repo.KV
	namespace string
	log       zerolog.Logger
}

// New returns an adapter over kv for namespace.
func New[T any](kv repo.KV, namespace string) *Adapter[T] {
	return &Adapter[T]{
		kv:        kv,
		namespace: namespace,
		log:       log.With().Str("component", "fallback").Str("namespace", namespace).Logger(),
	}
}

// Namespace returns the namespace the adapter owns.
func (a *Adapter[T]) Namespace() string { return a.namespace }

// Read returns the stored value and true, or the zero value and false when
// the key is missing, unreadable or corrupt.
func (a *Adapter[T]) Read(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := a.kv.Get(ctx, a.namespace, key)
	if errors.Is(err, repo.ErrNotFound) {
		return zero, false
	}
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("fallback read failed")
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		a.corrupt(key, err)
		return zero, false
	}
	if err := domain.Check(&v); err != nil {
		a.corrupt(key, err)
		return zero, false
	}
	return v, true
}

// Write stores value under key, replacing any previous value.
func (a *Adapter[T]) Write(ctx context.Context, key string, value T) error {
	if err := domain.Check(&value); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, a.namespace, key, raw)
}

// Delete removes key.
func (a *Adapter[T]) Delete(ctx context.Context, key string) error {
	return a.kv.Delete(ctx, a.namespace, key)
}

// Reset removes every key of the namespace.
func (a *Adapter[T]) Reset(ctx context.Context) error {
	return a.kv.DeleteNamespace(ctx, a.namespace)
}

func (a *Adapter[T]) corrupt(key string, err error) {
	observability.FallbackCorrupt.WithLabelValues(a.namespace).Inc()
	a.log.Warn().Err(err).Str("key", key).Msg("discarding corrupt fallback value")
}
