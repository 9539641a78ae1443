// Package services – WishlistService
//
// WishlistService keeps the saved-products list. Add and Remove are
// idempotent: repeating them is a no-op that still reports the resulting
// membership and still broadcasts wishlist-changed. The local copy at
// wishlist/entries may hold entries of several owners (accounts and the
// guest session); every local read is scoped to the current owner.

package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/resource"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const (
	wishlistKey           = "wishlist"
	wishlistCountKey      = "wishlist:count"
	wishlistProductPrefix = "wishlist:product:"
)

// WishlistService is safe for concurrent use.
type WishlistService struct {
	Client        *transport.Client
	Identity      Identity
	ListTTL       time.Duration
	MembershipTTL time.Duration
	// Now is the clock for locally created entries; nil means time.Now.
	Now func() time.Time

	store   *resource.Store[domain.Wishlist]
	lists   *cache.Cache[domain.Wishlist]
	counts  *cache.Cache[int]
	members *cache.Cache[bool]
}

// NewWishlistService wires the wishlist store.
func NewWishlistService(d Deps, listTTL, membershipTTL time.Duration) *WishlistService {
	s := &WishlistService{
		Client:        d.Client,
		Identity:      d.Identity,
		ListTTL:       listTTL,
		MembershipTTL: membershipTTL,
		lists:         cache.New[domain.Wishlist]("wishlist", d.cacheOptions()...),
		counts:        cache.New[int]("wishlist_count", d.cacheOptions()...),
		members:       cache.New[bool]("wishlist_membership", d.cacheOptions()...),
	}
	s.store = resource.New(resource.Config[domain.Wishlist]{
		Name:          "wishlist",
		Fallback:      fallback.New[domain.Wishlist](d.KV, fallback.NamespaceWishlist),
		Key:           fallback.KeyEntries,
		Empty:         func() domain.Wishlist { return domain.Wishlist{} },
		Bus:           d.Bus,
		Topic:         bus.WishlistChanged,
		SnapshotReads: d.SnapshotReads,
		Caches:        []resource.Invalidator{s.lists, s.counts, s.members},
	})
	return s
}

func (s *WishlistService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// List returns the current owner's entries.
func (s *WishlistService) List(ctx context.Context) (domain.Wishlist, error) {
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return nil, err
	}
	return resource.Get(ctx, s.store, resource.Read[domain.Wishlist, domain.Wishlist]{
		Cache: s.lists,
		Key:   wishlistKey,
		TTL:   s.ListTTL,
		Remote: func(ctx context.Context) (domain.Wishlist, transport.Result) {
			return transport.Call[domain.Wishlist](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/wishlist"})
		},
		Local: func(stored domain.Wishlist) (domain.Wishlist, error) { return stored.Owned(owner), nil },
		Snapshot: func(stored, fetched domain.Wishlist) domain.Wishlist {
			return replaceOwned(stored, owner, fetched)
		},
	})
}

// Count returns the number of saved products.
func (s *WishlistService) Count(ctx context.Context) (int, error) {
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return 0, err
	}
	return resource.Get(ctx, s.store, resource.Read[int, domain.Wishlist]{
		Cache: s.counts,
		Key:   wishlistCountKey,
		TTL:   s.ListTTL,
		Remote: func(ctx context.Context) (int, transport.Result) {
			c, res := transport.Call[domain.Count](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/wishlist/count"})
			return c.Count, res
		},
		Local: func(stored domain.Wishlist) (int, error) { return len(stored.Owned(owner)), nil },
	})
}

// IsWishlisted reports whether productID is saved.
func (s *WishlistService) IsWishlisted(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrInvalidProduct
	}
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return false, err
	}
	return resource.Get(ctx, s.store, resource.Read[bool, domain.Wishlist]{
		Cache: s.members,
		Key:   wishlistProductPrefix + productID,
		TTL:   s.MembershipTTL,
		Remote: func(ctx context.Context) (bool, transport.Result) {
			m, res := transport.Call[domain.Membership](ctx, s.Client, transport.Request{
				Method: http.MethodGet,
				Path:   "/wishlist/product/" + url.PathEscape(productID),
			})
			return m.IsWishlisted, res
		},
		Local: func(stored domain.Wishlist) (bool, error) { return stored.Contains(owner, productID), nil },
	})
}

// Add saves productID. Adding a saved product succeeds without change.
func (s *WishlistService) Add(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrInvalidProduct
	}
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return false, err
	}
	return resource.Mutate(ctx, s.store, resource.Mutation[bool, domain.Wishlist]{
		Name: "Add",
		Remote: func(ctx context.Context) (bool, transport.Result) {
			res := s.Client.Do(ctx, transport.Request{
				Method: http.MethodPost,
				Path:   "/wishlist",
				Body:   map[string]string{"productId": productID},
			})
			if res.Kind == transport.Rejected && res.Status == http.StatusConflict {
				res.Kind = transport.OK
			}
			return true, res
		},
		Local: func(stored domain.Wishlist) (domain.Wishlist, bool, error) {
			if stored.Contains(owner, productID) {
				return stored, true, nil
			}
			next := append(make(domain.Wishlist, 0, len(stored)+1), stored...)
			next = append(next, domain.WishlistEntry{
				ID:        uuid.NewString(),
				ProductID: productID,
				UserID:    owner,
				CreatedAt: s.now().UTC(),
			})
			return next, true, nil
		},
		Keys: s.keys(productID),
	})
}

// Remove unsaves productID. Removing an absent product succeeds without
// change.
func (s *WishlistService) Remove(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrInvalidProduct
	}
	owner, err := s.Identity.Owner(ctx)
	if err != nil {
		return false, err
	}
	return resource.Mutate(ctx, s.store, resource.Mutation[bool, domain.Wishlist]{
		Name: "Remove",
		Remote: func(ctx context.Context) (bool, transport.Result) {
			res := s.Client.Do(ctx, transport.Request{
				Method: http.MethodDelete,
				Path:   "/wishlist/" + url.PathEscape(productID),
			})
			if res.Kind == transport.NotFound {
				res.Kind = transport.OK
			}
			return false, res
		},
		Local: func(stored domain.Wishlist) (domain.Wishlist, bool, error) {
			return stored.Without(owner, productID), false, nil
		},
		Keys: s.keys(productID),
	})
}

// Toggle flips the membership of productID and returns the new state.
func (s *WishlistService) Toggle(ctx context.Context, productID string) (bool, error) {
	saved, err := s.IsWishlisted(ctx, productID)
	if err != nil {
		return false, err
	}
	if saved {
		return s.Remove(ctx, productID)
	}
	return s.Add(ctx, productID)
}

// Invalidate drops every cached wishlist answer.
func (s *WishlistService) Invalidate() {
	s.lists.Reset()
	s.counts.Reset()
	s.members.Reset()
}

// Reset drops the caches and the local copy.
func (s *WishlistService) Reset(ctx context.Context) error {
	return s.store.Reset(ctx)
}

func (s *WishlistService) keys(productID string) []string {
	return []string{wishlistKey, wishlistCountKey, wishlistProductPrefix + productID}
}

// replaceOwned swaps owner's entries in stored for fetched.
func replaceOwned(stored domain.Wishlist, owner string, fetched domain.Wishlist) domain.Wishlist {
	out := make(domain.Wishlist, 0, len(stored)+len(fetched))
	for _, e := range stored {
		if e.UserID != owner {
			out = append(out, e)
		}
	}
	for _, e := range fetched {
		e.UserID = owner
		out = append(out, e)
	}
	return out
}
