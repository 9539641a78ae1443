// Package services defines the storefront stores: cart, wishlist, catalog,
// orders, addresses, authentication and the guest session. This file
// centralizes service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// Failure kinds coming from the remote (transport.ErrTransport,
// transport.ErrNotFound, transport.ErrRejected, transport.ErrAuthExpired)
// pass through unchanged unless a service maps them to one of the values
// below. Translation into HTTP status codes is performed by the handlers.
package services

import (
	"errors"

	"github.com/tbourn/go-storefront-client/internal/transport"
)

// Cart errors.
var (
	// ErrItemNotFound indicates that the cart has no line with the given id.
	ErrItemNotFound = errors.New("cart item not found")

	// ErrInvalidQuantity is returned when an item is added with a quantity
	// below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrInvalidProduct is returned when a request names no product.
	ErrInvalidProduct = errors.New("product id is required")
)

// Catalog and order errors.
var (
	// ErrProductNotFound indicates that the product does not exist remotely,
	// or locally while the remote is unavailable.
	ErrProductNotFound = errors.New("product not found")

	// ErrOrderNotFound indicates that the order does not exist or is not
	// visible to the current visitor.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotCancellable is returned when cancelling an order whose status no
	// longer allows it.
	ErrNotCancellable = errors.New("order can no longer be cancelled")

	// ErrEmptyOrder is returned when placing an order without items.
	ErrEmptyOrder = errors.New("order has no items")
)

// Account errors.
var (
	// ErrInvalidCredentials is returned when an offline login does not match
	// a locally registered account.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering offline with an email that
	// already has a local account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrNotAuthenticated is returned by operations that need a signed-in
	// user when there is none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAddressNotFound indicates that the address does not exist.
	ErrAddressNotFound = errors.New("address not found")
)

// mapNotFound replaces a remote not-found answer with target.
func mapNotFound(err, target error) error {
	if errors.Is(err, transport.ErrNotFound) {
		return target
	}
	return err
}
