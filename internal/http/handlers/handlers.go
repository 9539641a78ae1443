// Package handlers exposes the storefront stores to local UI surfaces as a
// JSON API. Handlers are transport-thin: they bind input, call the stores and
// translate results and store errors into HTTP responses. Remote outages are
// invisible here; the stores already answer from their local copies.
package handlers

import (
	"context"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/services"
)

//
// Service contracts (context-aware)
//

// CartService is the cart store as used by the cart endpoints.
type CartService interface {
	Get(ctx context.Context) (domain.Cart, error)
	Count(ctx context.Context) (int, error)
	AddItem(ctx context.Context, in services.AddCartItem) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, itemID string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, itemID string) (domain.Cart, error)
	Clear(ctx context.Context) error
}

// WishlistService is the wishlist store.
type WishlistService interface {
	List(ctx context.Context) (domain.Wishlist, error)
	Count(ctx context.Context) (int, error)
	IsWishlisted(ctx context.Context, productID string) (bool, error)
	Add(ctx context.Context, productID string) (bool, error)
	Remove(ctx context.Context, productID string) (bool, error)
	Toggle(ctx context.Context, productID string) (bool, error)
}

// CatalogService is the read side of the catalog store.
type CatalogService interface {
	List(ctx context.Context, f domain.ProductFilter) (domain.ProductPage, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (domain.Product, error)
	Categories(ctx context.Context) (domain.Categories, error)
}

// OrderService is the order store.
type OrderService interface {
	List(ctx context.Context) (domain.Orders, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	Cancel(ctx context.Context, id string) (domain.Order, error)
	Place(ctx context.Context, req domain.PlaceOrder) (domain.Order, error)
}

// AddressService manages the signed-in user's saved addresses.
type AddressService interface {
	List(ctx context.Context) (domain.Addresses, error)
	Add(ctx context.Context, a domain.Address) (domain.Address, error)
	Update(ctx context.Context, id string, a domain.Address) (domain.Address, error)
	Delete(ctx context.Context, id string) error
	SetDefault(ctx context.Context, id string) (domain.Address, error)
	CheckPincode(ctx context.Context, code string) (domain.PincodeCheck, error)
}

// AuthService signs visitors in and out.
type AuthService interface {
	Login(ctx context.Context, c services.Credentials) (domain.User, error)
	Register(ctx context.Context, r services.Registration) (domain.User, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, current, next string) error
	CurrentUser(ctx context.Context) (domain.User, bool)
}

// GuestSessions returns the device's guest session.
type GuestSessions interface {
	GetOrCreate(ctx context.Context) (domain.GuestSession, error)
}

// Subscriber delivers invalidation topics.
type Subscriber interface {
	Subscribe(topic bus.Topic, fn bus.Handler) (unsubscribe func())
}

//
// Handler wiring
//

// Services bundles the stores served by the API.
type Services struct {
	Cart      CartService
	Wishlist  WishlistService
	Catalog   CatalogService
	Orders    OrderService
	Addresses AddressService
	Auth      AuthService
	Guests    GuestSessions
	Events    Subscriber
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	svc Services
}

// New constructs Handlers bound to svc.
func New(svc Services) *Handlers {
	return &Handlers{svc: svc}
}
