// Package services – CartService
//
// CartService reads and edits the visitor's cart. Remote answers are cached
// for the list TTL; while the remote is unreachable the cart is served from
// and edited in the local copy at cart/current, which belongs to one owner
// at a time. Every successful edit drops the cart and count entries and
// broadcasts cart-changed.

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/observability"
	"github.com/tbourn/go-storefront-client/internal/resource"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const (
	cartKey      = "cart"
	cartCountKey = "cart:count"
)

// ProductLookup resolves a product by id.
type ProductLookup interface {
	Get(ctx context.Context, id string) (domain.Product, error)
}

// AddCartItem is the request to put a product variant in the cart.
type AddCartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// CartService is safe for concurrent use.
type CartService struct {
	Client *transport.Client
	// Products fills name, price and image of lines added locally; optional.
	Products ProductLookup
	TTL      time.Duration
	Identity Identity

	store  *resource.Store[domain.Cart]
	carts  *cache.Cache[domain.Cart]
	counts *cache.Cache[int]
}

// NewCartService wires the cart store.
func NewCartService(d Deps, ttl time.Duration) *CartService {
	s := &CartService{
		Client:   d.Client,
		TTL:      ttl,
		Identity: d.Identity,
		carts:    cache.New[domain.Cart]("cart", d.cacheOptions()...),
		counts:   cache.New[int]("cart_count", d.cacheOptions()...),
	}
	s.store = resource.New(resource.Config[domain.Cart]{
		Name:          "cart",
		Fallback:      fallback.New[domain.Cart](d.KV, fallback.NamespaceCart),
		Key:           fallback.KeyCurrent,
		Empty:         func() domain.Cart { return domain.Cart{Items: []domain.CartItem{}} },
		Bus:           d.Bus,
		Topic:         bus.CartChanged,
		SnapshotReads: d.SnapshotReads,
		Caches:        []resource.Invalidator{s.carts, s.counts},
	})
	return s
}

// Get returns the cart.
func (s *CartService) Get(ctx context.Context) (domain.Cart, error) {
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	return resource.Get(ctx, s.store, resource.Read[domain.Cart, domain.Cart]{
		Cache: s.carts,
		Key:   cartKey,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.Cart, transport.Result) {
			return transport.Call[domain.Cart](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/cart"})
		},
		Local: func(stored domain.Cart) (domain.Cart, error) { return view(localCart(stored, owner)), nil },
		Snapshot: func(_ domain.Cart, fetched domain.Cart) domain.Cart {
			fetched.Owner = owner
			return fetched
		},
	})
}

// Count returns the number of units in the cart.
func (s *CartService) Count(ctx context.Context) (int, error) {
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return 0, err
	}
	return resource.Get(ctx, s.store, resource.Read[int, domain.Cart]{
		Cache: s.counts,
		Key:   cartCountKey,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (int, transport.Result) {
			c, res := transport.Call[domain.Count](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/cart/count"})
			return c.Count, res
		},
		Local: func(stored domain.Cart) (int, error) { return localCart(stored, owner).Count, nil },
	})
}

// AddItem adds a product variant. A variant already in the cart has its
// quantity increased; quantities above the maximum are capped.
func (s *CartService) AddItem(ctx context.Context, in AddCartItem) (domain.Cart, error) {
	if in.ProductID == "" {
		return domain.Cart{}, ErrInvalidProduct
	}
	if in.Quantity < domain.MinQuantity {
		return domain.Cart{}, ErrInvalidQuantity
	}
	in.Quantity = domain.ClampQuantity(in.Quantity)
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	// Looked up outside the store lock, only when the remote is unreachable.
	var product domain.Product
	var havePrice bool
	lookup := func(ctx context.Context) {
		if s.Products == nil {
			return
		}
		p, err := s.Products.Get(ctx, in.ProductID)
		if err == nil {
			product, havePrice = p, true
		}
	}

	cart, err := resource.Mutate(ctx, s.store, resource.Mutation[domain.Cart, domain.Cart]{
		Name: "AddItem",
		Remote: func(ctx context.Context) (domain.Cart, transport.Result) {
			c, res := s.callMutation(ctx, transport.Request{Method: http.MethodPost, Path: "/cart/items", Body: in})
			if res.Kind == transport.Transport {
				lookup(ctx)
			}
			return c, res
		},
		Local: func(stored domain.Cart) (domain.Cart, domain.Cart, error) {
			next := localCart(stored, owner)
			for i, it := range next.Items {
				if it.SameLine(in.ProductID, in.Size, in.Color) {
					next.Items[i].Quantity = domain.ClampQuantity(it.Quantity + in.Quantity)
					next.Normalize()
					return next, view(next), nil
				}
			}
			line := domain.CartItem{
				ID:        uuid.NewString(),
				ProductID: in.ProductID,
				Quantity:  in.Quantity,
				Size:      in.Size,
				Color:     in.Color,
			}
			if havePrice {
				line.Name = product.Name
				line.UnitPrice = product.Price
				if len(product.Images) > 0 {
					line.Image = product.Images[0]
				}
			}
			next.Items = append(next.Items, line)
			next.Normalize()
			return next, view(next), nil
		},
		Keys: []string{cartKey, cartCountKey},
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return s.settle(ctx, cart)
}

// UpdateQuantity sets the quantity of a line. Zero or less removes the line;
// values above the maximum are capped.
func (s *CartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) (domain.Cart, error) {
	if quantity < domain.MinQuantity {
		return s.RemoveItem(ctx, itemID)
	}
	quantity = domain.ClampQuantity(quantity)
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := resource.Mutate(ctx, s.store, resource.Mutation[domain.Cart, domain.Cart]{
		Name: "UpdateQuantity",
		Remote: func(ctx context.Context) (domain.Cart, transport.Result) {
			return s.callMutation(ctx, transport.Request{
				Method: http.MethodPut,
				Path:   "/cart/items/" + url.PathEscape(itemID),
				Body:   map[string]int{"quantity": quantity},
			})
		},
		Local: func(stored domain.Cart) (domain.Cart, domain.Cart, error) {
			next := localCart(stored, owner)
			i := next.Find(itemID)
			if i < 0 {
				return stored, domain.Cart{}, ErrItemNotFound
			}
			next.Items[i].Quantity = quantity
			next.Normalize()
			return next, view(next), nil
		},
		Keys: []string{cartKey, cartCountKey},
	})
	if err != nil {
		return domain.Cart{}, mapNotFound(err, ErrItemNotFound)
	}
	return s.settle(ctx, cart)
}

// RemoveItem deletes a line.
func (s *CartService) RemoveItem(ctx context.Context, itemID string) (domain.Cart, error) {
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	cart, err := resource.Mutate(ctx, s.store, resource.Mutation[domain.Cart, domain.Cart]{
		Name: "RemoveItem",
		Remote: func(ctx context.Context) (domain.Cart, transport.Result) {
			return s.callMutation(ctx, transport.Request{
				Method: http.MethodDelete,
				Path:   "/cart/items/" + url.PathEscape(itemID),
			})
		},
		Local: func(stored domain.Cart) (domain.Cart, domain.Cart, error) {
			next := localCart(stored, owner)
			i := next.Find(itemID)
			if i < 0 {
				return stored, domain.Cart{}, ErrItemNotFound
			}
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
			next.Normalize()
			return next, view(next), nil
		},
		Keys: []string{cartKey, cartCountKey},
	})
	if err != nil {
		return domain.Cart{}, mapNotFound(err, ErrItemNotFound)
	}
	return s.settle(ctx, cart)
}

// Clear empties the local copy and drops the cached cart. It is used after
// an order was placed; the remote clears its own cart on checkout.
func (s *CartService) Clear(ctx context.Context) error {
	ctx, span := observability.Tracer("services/CartService").Start(ctx, "Clear")
	defer span.End()

	err := s.store.Update(ctx, func(domain.Cart) (domain.Cart, error) {
		return domain.Cart{Items: []domain.CartItem{}}, nil
	})
	s.store.Invalidate([]string{cartKey, cartCountKey}, nil)
	s.store.Publish()
	span.SetAttributes(attribute.Bool("local.cleared", err == nil))
	return err
}

// Invalidate drops every cached cart answer, e.g. after the identity changed.
func (s *CartService) Invalidate() {
	s.carts.Reset()
	s.counts.Reset()
}

// Reset drops the caches and the local copy.
func (s *CartService) Reset(ctx context.Context) error {
	return s.store.Reset(ctx)
}

// callMutation sends a cart edit. A success body that carries no items field
// (an ack, or the edited line alone) yields a nil-items cart so settle
// re-reads the cart instead of trusting an empty one.
func (s *CartService) callMutation(ctx context.Context, req transport.Request) (domain.Cart, transport.Result) {
	res := s.Client.Do(ctx, req)
	if res.Kind != transport.OK {
		return domain.Cart{}, res
	}
	var shape struct {
		Items *json.RawMessage `json:"items"`
	}
	if err := res.Decode(&shape); err != nil || shape.Items == nil {
		return domain.Cart{}, res
	}
	var cart domain.Cart
	if err := res.Decode(&cart); err != nil {
		return domain.Cart{}, transport.Result{Kind: transport.Transport, Status: res.Status, Body: res.Body, Cause: err}
	}
	return cart, res
}

// settle returns cart, re-reading it when the remote answered without one.
func (s *CartService) settle(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if cart.Items != nil {
		return cart, nil
	}
	return s.Get(ctx)
}

// localCart returns a copy of the local cart when it belongs to owner, or an
// empty cart for owner. Another visitor's offline cart is never shown.
func localCart(stored domain.Cart, owner string) domain.Cart {
	if stored.Owner != owner {
		return domain.Cart{Owner: owner, Items: []domain.CartItem{}}
	}
	return copyCart(stored)
}

// view strips the local ownership tag from a cart handed to callers.
func view(c domain.Cart) domain.Cart {
	c.Owner = ""
	return c
}

func copyCart(c domain.Cart) domain.Cart {
	out := c
	out.Items = append(make([]domain.CartItem, 0, len(c.Items)+1), c.Items...)
	return out
}
