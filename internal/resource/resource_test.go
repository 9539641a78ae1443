package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/repo"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

type harness struct {
	store     *Store[domain.Cart]
	carts     *cache.Cache[domain.Cart]
	counts    *cache.Cache[int]
	fb        *fallback.Adapter[domain.Cart]
	published int
}

func newHarness(t *testing.T, snapshots bool) *harness {
	t.Helper()
	h := &harness{
		carts:  cache.New[domain.Cart]("test-carts"),
		counts: cache.New[int]("test-counts"),
		fb:     fallback.New[domain.Cart](repo.NewMemoryKV(), fallback.NamespaceCart),
	}
	b := bus.New()
	b.Subscribe(bus.CartChanged, func(bus.Topic) { h.published++ })
	h.store = New(Config[domain.Cart]{
		Name:          "cart",
		Fallback:      h.fb,
		Key:           fallback.KeyCurrent,
		Empty:         func() domain.Cart { return domain.Cart{Items: []domain.CartItem{}} },
		Bus:           b,
		Topic:         bus.CartChanged,
		SnapshotReads: snapshots,
		Caches:        []Invalidator{h.carts, h.counts},
	})
	return h
}

func remoteCart(kind transport.Kind, c domain.Cart, calls *int) func(context.Context) (domain.Cart, transport.Result) {
	return func(context.Context) (domain.Cart, transport.Result) {
		*calls++
		return c, transport.Result{Kind: kind, Status: map[transport.Kind]int{transport.OK: 200, transport.NotFound: 404, transport.Rejected: 422}[kind]}
	}
}

func identity(c domain.Cart) (domain.Cart, error) { return c, nil }

func cartOf(productID string, qty int) domain.Cart {
	c := domain.Cart{Items: []domain.CartItem{{ID: productID, ProductID: productID, UnitPrice: 2, Quantity: qty}}}
	c.Normalize()
	return c
}

func TestGet_RemoteSuccessIsCached(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	calls := 0
	rd := Read[domain.Cart, domain.Cart]{Cache: h.carts, Key: "cart", TTL: time.Minute, Remote: remoteCart(transport.OK, cartOf("p1", 1), &calls), Local: identity}

	for i := 0; i < 3; i++ {
		got, err := Get(ctx, h.store, rd)
		if err != nil || len(got.Items) != 1 {
			t.Fatalf("Get = %+v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("remote calls = %d; want 1", calls)
	}
	if _, ok := h.fb.Read(ctx, fallback.KeyCurrent); ok {
		t.Fatalf("snapshots disabled: remote reads must not be persisted")
	}
}

func TestGet_TransportFailureServesLocalCopyAndCachesIt(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_ = h.fb.Write(ctx, fallback.KeyCurrent, cartOf("local", 3))

	calls := 0
	rd := Read[domain.Cart, domain.Cart]{Cache: h.carts, Key: "cart", TTL: time.Minute, Remote: remoteCart(transport.Transport, domain.Cart{}, &calls), Local: identity}

	got, err := Get(ctx, h.store, rd)
	if err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].ProductID != "local" || got.Total != 6 {
		t.Fatalf("Get = %+v", got)
	}
	_, _ = Get(ctx, h.store, rd)
	if calls != 1 {
		t.Fatalf("fallback answer should be cached: remote calls = %d", calls)
	}
}

func TestGet_TransportFailureWithoutLocalCopyReturnsEmpty(t *testing.T) {
	h := newHarness(t, false)
	calls := 0
	got, err := Get(context.Background(), h.store, Read[domain.Cart, domain.Cart]{
		Cache: h.carts, Key: "cart", TTL: time.Minute,
		Remote: remoteCart(transport.Transport, domain.Cart{}, &calls), Local: identity,
	})
	if err != nil || got.Items == nil || len(got.Items) != 0 {
		t.Fatalf("Get = %+v, %v; want empty cart", got, err)
	}
}

func TestGet_DefinitiveAnswersPropagate(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_ = h.fb.Write(ctx, fallback.KeyCurrent, cartOf("local", 1))

	cases := []struct {
		kind transport.Kind
		want error
	}{
		{transport.NotFound, transport.ErrNotFound},
		{transport.Rejected, transport.ErrRejected},
		{transport.AuthExpired, transport.ErrAuthExpired},
	}
	for _, tc := range cases {
		calls := 0
		_, err := Get(ctx, h.store, Read[domain.Cart, domain.Cart]{
			Cache: h.carts, Key: "cart", TTL: time.Minute,
			Remote: remoteCart(tc.kind, domain.Cart{}, &calls), Local: identity,
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%v: err = %v; want %v", tc.kind, err, tc.want)
		}
		if h.carts.Len() != 0 {
			t.Fatalf("%v: failures must not be cached", tc.kind)
		}
	}
}

func TestGet_SnapshotPersistsRemoteValue(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	calls := 0
	_, err := Get(ctx, h.store, Read[domain.Cart, domain.Cart]{
		Cache: h.carts, Key: "cart", TTL: time.Minute,
		Remote:   remoteCart(transport.OK, cartOf("remote", 2), &calls),
		Local:    identity,
		Snapshot: func(_ domain.Cart, fetched domain.Cart) domain.Cart { return fetched },
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stored, ok := h.fb.Read(ctx, fallback.KeyCurrent)
	if !ok || stored.Items[0].ProductID != "remote" {
		t.Fatalf("snapshot not written: %+v %v", stored, ok)
	}
}

func TestMutate_RemoteSuccessInvalidatesAndPublishes(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.carts.Set("cart", cartOf("old", 1), time.Minute)
	h.counts.Set("cart:count", 1, time.Minute)

	calls := 0
	got, err := Mutate(ctx, h.store, Mutation[domain.Cart, domain.Cart]{
		Name:   "add",
		Remote: remoteCart(transport.OK, cartOf("new", 2), &calls),
		Local:  func(s domain.Cart) (domain.Cart, domain.Cart, error) { t.Fatalf("local must not run"); return s, s, nil },
		Keys:   []string{"cart", "cart:count"},
	})
	if err != nil || got.Items[0].ProductID != "new" {
		t.Fatalf("Mutate = %+v, %v", got, err)
	}
	if h.carts.Len() != 0 || h.counts.Len() != 0 {
		t.Fatalf("caches not invalidated")
	}
	if h.published != 1 {
		t.Fatalf("published = %d; want 1", h.published)
	}
}

func TestMutate_TransportFailureAppliesLocally(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.counts.Set("cart:count", 0, time.Minute)

	add := Mutation[domain.Cart, domain.Cart]{
		Name:   "add",
		Remote: func(context.Context) (domain.Cart, transport.Result) { return domain.Cart{}, transport.Result{Kind: transport.Transport} },
		Local: func(s domain.Cart) (domain.Cart, domain.Cart, error) {
			s.Items = append(s.Items, domain.CartItem{ID: "l1", ProductID: "p1", UnitPrice: 4, Quantity: 1})
			s.Normalize()
			return s, s, nil
		},
		Prefixes: []string{"cart"},
	}
	got, err := Mutate(ctx, h.store, add)
	if err != nil || got.Count != 1 || got.Total != 4 {
		t.Fatalf("Mutate = %+v, %v", got, err)
	}
	stored, ok := h.fb.Read(ctx, fallback.KeyCurrent)
	if !ok || len(stored.Items) != 1 {
		t.Fatalf("local copy not persisted: %+v", stored)
	}
	if h.counts.Len() != 0 || h.published != 1 {
		t.Fatalf("invalidation/publish missing: len=%d published=%d", h.counts.Len(), h.published)
	}
}

func TestMutate_RejectedPropagatesWithoutSideEffects(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.carts.Set("cart", cartOf("keep", 1), time.Minute)

	calls := 0
	_, err := Mutate(ctx, h.store, Mutation[domain.Cart, domain.Cart]{
		Name:   "add",
		Remote: remoteCart(transport.Rejected, domain.Cart{}, &calls),
		Local:  func(s domain.Cart) (domain.Cart, domain.Cart, error) { t.Fatalf("local must not run"); return s, s, nil },
		Keys:   []string{"cart"},
	})
	if !errors.Is(err, transport.ErrRejected) {
		t.Fatalf("err = %v; want ErrRejected", err)
	}
	if h.carts.Len() != 1 || h.published != 0 {
		t.Fatalf("rejected mutation must not invalidate or publish")
	}
}

func TestStore_WithoutFallbackPropagatesTransport(t *testing.T) {
	c := cache.New[domain.Addresses]("test-addresses")
	s := New(Config[domain.Addresses]{Name: "addresses", Caches: []Invalidator{c}})
	ctx := context.Background()

	_, err := Get(ctx, s, Read[domain.Addresses, domain.Addresses]{
		Cache: c, Key: "addresses", TTL: time.Minute,
		Remote: func(context.Context) (domain.Addresses, transport.Result) {
			return nil, transport.Result{Kind: transport.Transport}
		},
	})
	if !errors.Is(err, transport.ErrTransport) {
		t.Fatalf("Get err = %v; want ErrTransport", err)
	}

	_, err = Mutate(ctx, s, Mutation[domain.Address, domain.Addresses]{
		Name: "add",
		Remote: func(context.Context) (domain.Address, transport.Result) {
			return domain.Address{}, transport.Result{Kind: transport.Transport}
		},
	})
	if !errors.Is(err, transport.ErrTransport) {
		t.Fatalf("Mutate err = %v; want ErrTransport", err)
	}
	if s.Local(ctx) != nil {
		t.Fatalf("store without fallback has no local copy")
	}
}

func TestStore_UpdateAndReset(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if err := h.store.Update(ctx, func(c domain.Cart) (domain.Cart, error) { return cartOf("u", 2), nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := h.store.Local(ctx); got.Count != 2 {
		t.Fatalf("Local = %+v", got)
	}
	boom := errors.New("boom")
	if err := h.store.Update(ctx, func(c domain.Cart) (domain.Cart, error) { return c, boom }); !errors.Is(err, boom) {
		t.Fatalf("Update error = %v", err)
	}

	h.carts.Set("cart", cartOf("x", 1), time.Minute)
	if err := h.store.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if h.carts.Len() != 0 || h.store.Local(ctx).Count != 0 {
		t.Fatalf("Reset should clear caches and local copy")
	}
	if h.store.Name() != "cart" || h.store.Topic() != bus.CartChanged {
		t.Fatalf("accessors mismatch")
	}
}
