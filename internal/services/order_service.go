// Package services – OrderService
//
// OrderService lists, reads, places and cancels orders for the signed-in
// account or, when signed out, for the guest session. While the remote is
// unreachable it works on the local copy at orders/all: placed orders are
// recorded as pending, and only orders still in a cancellable state may be
// cancelled. Placing an order clears the cart on either path.

package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
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
	ordersPrefix       = "orders:"
	ordersAccountKey   = "orders:account"
	ordersGuestPrefix  = "orders:guest:"
	orderIDPrefix      = "orders:id:"
	localOrderPrefix   = "LOCAL-"
	localOrderIDLength = 8
)

// OrderService is safe for concurrent use.
type OrderService struct {
	Client   *transport.Client
	Identity Identity
	TTL      time.Duration
	// Cart is cleared after an order was placed; optional.
	Cart *CartService
	// Now is the clock for locally placed orders; nil means time.Now.
	Now func() time.Time

	store  *resource.Store[domain.Orders]
	lists  *cache.Cache[domain.Orders]
	orders *cache.Cache[domain.Order]
}

// NewOrderService wires the order store.
func NewOrderService(d Deps, ttl time.Duration) *OrderService {
	s := &OrderService{
		Client:   d.Client,
		Identity: d.Identity,
		TTL:      ttl,
		lists:    cache.New[domain.Orders]("orders", d.cacheOptions()...),
		orders:   cache.New[domain.Order]("order", d.cacheOptions()...),
	}
	s.store = resource.New(resource.Config[domain.Orders]{
		Name:          "orders",
		Fallback:      fallback.New[domain.Orders](d.KV, fallback.NamespaceOrders),
		Key:           fallback.KeyAll,
		Empty:         func() domain.Orders { return domain.Orders{} },
		Bus:           d.Bus,
		Topic:         bus.OrdersChanged,
		SnapshotReads: d.SnapshotReads,
		Caches:        []resource.Invalidator{s.lists, s.orders},
	})
	return s
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// visitor is whoever orders are listed and placed for.
type visitor struct {
	user     domain.User
	signedIn bool
	session  domain.GuestSession
}

func (s *OrderService) visitor(ctx context.Context) (visitor, error) {
	if user, ok := s.Identity.User(ctx); ok {
		return visitor{user: user, signedIn: true}, nil
	}
	sess, err := s.Identity.Guests.GetOrCreate(ctx)
	if err != nil {
		return visitor{}, err
	}
	return visitor{session: sess}, nil
}

// owns reports whether o belongs to v.
func (v visitor) owns(o domain.Order) bool {
	if v.signedIn {
		return o.GuestSessionID == "" && strings.EqualFold(o.Email, v.user.Email)
	}
	return o.GuestSessionID == v.session.ID
}

// claim stamps o with v's identity when the remote left it out.
func (v visitor) claim(o domain.Order) domain.Order {
	if v.signedIn {
		if o.Email == "" {
			o.Email = v.user.Email
		}
		return o
	}
	if o.GuestSessionID == "" {
		o.GuestSessionID = v.session.ID
	}
	return o
}

// List returns the visitor's orders: the account's when signed in, the guest
// session's otherwise.
func (s *OrderService) List(ctx context.Context) (domain.Orders, error) {
	v, err := s.visitor(ctx)
	if err != nil {
		return nil, err
	}
	key, path := ordersAccountKey, "/orders"
	if !v.signedIn {
		key = ordersGuestPrefix + v.session.ID
		path = "/orders/guest/session/" + url.PathEscape(v.session.ID)
	}
	return resource.Get(ctx, s.store, resource.Read[domain.Orders, domain.Orders]{
		Cache: s.lists,
		Key:   key,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.Orders, transport.Result) {
			return transport.Call[domain.Orders](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: path, Anonymous: !v.signedIn})
		},
		Local: func(stored domain.Orders) (domain.Orders, error) {
			out := domain.Orders{}
			for _, o := range stored {
				if v.owns(o) {
					out = append(out, o)
				}
			}
			return out, nil
		},
		Snapshot: func(stored, fetched domain.Orders) domain.Orders {
			owned := make(domain.Orders, 0, len(fetched))
			for _, o := range fetched {
				owned = append(owned, v.claim(o))
			}
			return upsertOrders(stored, owned...)
		},
	})
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	_, signedIn := s.Identity.User(ctx)
	o, err := resource.Get(ctx, s.store, resource.Read[domain.Order, domain.Orders]{
		Cache: s.orders,
		Key:   orderIDPrefix + id,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.Order, transport.Result) {
			return transport.Call[domain.Order](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/orders/" + url.PathEscape(id), Anonymous: !signedIn})
		},
		Local: func(stored domain.Orders) (domain.Order, error) {
			if i := stored.Find(id); i >= 0 {
				return stored[i], nil
			}
			return domain.Order{}, ErrOrderNotFound
		},
		Snapshot: func(stored domain.Orders, fetched domain.Order) domain.Orders {
			return upsertOrders(stored, fetched)
		},
	})
	if err != nil {
		return domain.Order{}, mapNotFound(err, ErrOrderNotFound)
	}
	return o, nil
}

// Cancel cancels an order. The server decides remotely; locally only
// pending and confirmed orders can be cancelled.
func (s *OrderService) Cancel(ctx context.Context, id string) (domain.Order, error) {
	_, signedIn := s.Identity.User(ctx)
	o, err := resource.Mutate(ctx, s.store, resource.Mutation[domain.Order, domain.Orders]{
		Name: "Cancel",
		Remote: func(ctx context.Context) (domain.Order, transport.Result) {
			return transport.Call[domain.Order](ctx, s.Client, transport.Request{Method: http.MethodPut, Path: "/orders/" + url.PathEscape(id) + "/cancel", Anonymous: !signedIn})
		},
		Local: func(stored domain.Orders) (domain.Orders, domain.Order, error) {
			i := stored.Find(id)
			if i < 0 {
				return stored, domain.Order{}, ErrOrderNotFound
			}
			if !stored[i].Status.Cancellable() {
				return stored, domain.Order{}, ErrNotCancellable
			}
			cancelled := stored[i]
			cancelled.Status = domain.OrderCancelled
			return upsertOrders(stored, cancelled), cancelled, nil
		},
		Prefixes: []string{ordersPrefix},
	})
	if err != nil {
		return domain.Order{}, mapNotFound(err, ErrOrderNotFound)
	}
	return o, nil
}

// Place submits an order. Without explicit items the current cart is
// ordered. Signed-in visitors order on their account, others as guests of
// the current session.
func (s *OrderService) Place(ctx context.Context, req domain.PlaceOrder) (domain.Order, error) {
	ctx, span := observability.Tracer("services/OrderService").Start(ctx, "Place")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if len(req.Items) == 0 && s.Cart != nil {
		var cart domain.Cart
		cart, err = s.Cart.Get(ctx)
		if err != nil {
			return domain.Order{}, err
		}
		req.Items = itemsFromCart(cart)
	}
	if len(req.Items) == 0 {
		err = ErrEmptyOrder
		return domain.Order{}, err
	}

	v, err := s.visitor(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	spanUser(span, v.user, v.signedIn)
	path := "/orders"
	if !v.signedIn {
		path = "/orders/guest"
		req.SessionID = v.session.ID
	} else if req.Email == "" {
		req.Email = v.user.Email
	}

	var o domain.Order
	o, err = resource.Mutate(ctx, s.store, resource.Mutation[domain.Order, domain.Orders]{
		Name: "Place",
		Remote: func(ctx context.Context) (domain.Order, transport.Result) {
			return transport.Call[domain.Order](ctx, s.Client, transport.Request{Method: http.MethodPost, Path: path, Body: req, Anonymous: !v.signedIn})
		},
		Local: func(stored domain.Orders) (domain.Orders, domain.Order, error) {
			placed := s.localOrder(req, v)
			return upsertOrders(stored, placed), placed, nil
		},
		Prefixes: []string{ordersPrefix},
	})
	if err != nil {
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if s.Cart != nil {
		if cerr := s.Cart.Clear(ctx); cerr != nil {
			log.Warn().Err(cerr).Str("component", "orders").Str("order_id", o.ID).Msg("clearing cart after checkout failed")
		}
	}
	return o, nil
}

// Changed drops cached order answers and broadcasts orders-changed.
func (s *OrderService) Changed() {
	s.store.Invalidate(nil, []string{ordersPrefix})
	s.store.Publish()
}

// Invalidate drops every cached order answer.
func (s *OrderService) Invalidate() {
	s.lists.Reset()
	s.orders.Reset()
}

// Reset drops the caches and the local copy.
func (s *OrderService) Reset(ctx context.Context) error {
	return s.store.Reset(ctx)
}

func (s *OrderService) localOrder(req domain.PlaceOrder, v visitor) domain.Order {
	id := uuid.NewString()
	var total float64
	for _, it := range req.Items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	addr := req.ShippingAddress
	o := domain.Order{
		ID:              id,
		OrderNumber:     localOrderPrefix + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:localOrderIDLength]),
		Status:          domain.OrderPending,
		Items:           append([]domain.OrderItem(nil), req.Items...),
		Total:           domain.RoundCents(total),
		CreatedAt:       s.now().UTC(),
		Email:           req.Email,
		ShippingAddress: &addr,
	}
	if !v.signedIn {
		o.GuestSessionID = v.session.ID
	}
	return o
}

func itemsFromCart(c domain.Cart) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return out
}

// upsertOrders returns a copy of stored with each order inserted or
// replaced by id.
func upsertOrders(stored domain.Orders, orders ...domain.Order) domain.Orders {
	out := append(make(domain.Orders, 0, len(stored)+len(orders)), stored...)
	for _, o := range orders {
		if i := out.Find(o.ID); i >= 0 {
			out[i] = o
			continue
		}
		out = append(out, o)
	}
	return out
}
