package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-storefront-client/internal/auth"
	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/remotetest"
	"github.com/tbourn/go-storefront-client/internal/repo"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

// harness wires every service over a fake remote and in-memory stores.
// Cache TTLs are zero so each read reaches the remote.
type harness struct {
	remote    *remotetest.Server
	durable   *repo.MemoryKV
	ephemeral *repo.MemoryKV
	creds     *auth.Store
	client    *transport.Client
	bus       *bus.Bus
	deps      Deps

	guests    *GuestSessionService
	catalog   *CatalogService
	cart      *CartService
	wishlist  *WishlistService
	orders    *OrderService
	addresses *AddressService
	auth      *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		remote:    remotetest.New(t),
		durable:   repo.NewMemoryKV(),
		ephemeral: repo.NewMemoryKV(),
		bus:       bus.New(),
	}
	h.creds = auth.NewStore(h.durable, h.ephemeral)
	h.client = transport.New(transport.Options{
		BaseURL:         h.remote.URL,
		Timeout:         2 * time.Second,
		BreakerFailures: 1000,
		BreakerTimeout:  time.Minute,
	}, h.creds)

	h.guests = NewGuestSessionService(h.client, h.durable)
	h.deps = Deps{
		Client:   h.client,
		KV:       h.durable,
		Bus:      h.bus,
		Identity: Identity{Creds: h.creds, Guests: h.guests},
	}
	h.catalog = NewCatalogService(h.deps, 0)
	h.cart = NewCartService(h.deps, 0)
	h.cart.Products = h.catalog
	h.wishlist = NewWishlistService(h.deps, 0, 0)
	h.orders = NewOrderService(h.deps, 0)
	h.orders.Cart = h.cart
	h.guests.Orders = h.orders
	h.addresses = NewAddressService(h.deps, 0, 0)
	h.auth = NewAuthService(h.deps, h.guests)
	h.client.SetOnAuthExpired(h.auth.HandleExpired)
	return h
}

// signIn registers email remotely and logs in with "remember me".
func (h *harness) signIn(t *testing.T, email string) domain.User {
	t.Helper()
	h.remote.AddUser(email, "password123", "Test User")
	u, err := h.auth.Login(context.Background(), Credentials{Email: email, Password: "password123", RememberMe: true})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	h.auth.WaitLinks()
	return u
}

// recorder counts bus deliveries per topic.
type recorder struct {
	mu   sync.Mutex
	seen map[bus.Topic]int
}

func record(b *bus.Bus, topics ...bus.Topic) *recorder {
	r := &recorder{seen: map[bus.Topic]int{}}
	for _, topic := range topics {
		b.Subscribe(topic, func(tp bus.Topic) {
			r.mu.Lock()
			r.seen[tp]++
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) count(topic bus.Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[topic]
}

var (
	tee = domain.Product{
		ID: "p-tee", Slug: "basic-tee", Name: "Basic Tee", Description: "Soft cotton t-shirt",
		Category: "Shirts", Price: 12.5, Stock: 20, IsActive: true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	boots = domain.Product{
		ID: "p-boots", Slug: "hiking-boots", Name: "Hiking Boots", Description: "Waterproof leather boots",
		Category: "Shoes", Price: 89.99, Stock: 3, IsActive: true,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	sandals = domain.Product{
		ID: "p-sandals", Slug: "beach-sandals", Name: "Beach Sandals", Description: "Light summer sandals",
		Category: "Shoes", Price: 19, Stock: 0, IsActive: true,
		CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	retired = domain.Product{
		ID: "p-retired", Slug: "old-boots", Name: "Old Boots", Category: "Shoes",
		Price: 5, Stock: 10, IsActive: false,
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	catalogFixture = domain.Products{tee, boots, sandals, retired}
)
