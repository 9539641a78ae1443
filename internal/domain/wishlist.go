package domain

import (
	"fmt"
	"time"
)

// WishlistEntry records that a user saved a product. There is at most one
// entry per (UserID, ProductID).
type WishlistEntry struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Product   *Product  `json:"product,omitempty"`
}

// Wishlist is a collection of entries, possibly spanning several owners when
// it is the local fallback copy.
type Wishlist []WishlistEntry

// Normalize removes duplicate (owner, product) pairs keeping the first.
func (w *Wishlist) Normalize() {
	seen := make(map[[2]string]struct{}, len(*w))
	out := make(Wishlist, 0, len(*w))
	for _, e := range *w {
		k := [2]string{e.UserID, e.ProductID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	*w = out
}

// Validate rejects entries without a product id.
func (w Wishlist) Validate() error {
	for i, e := range w {
		if e.ProductID == "" {
			return fmt.Errorf("%w: wishlist entry %d has no product id", ErrInvalid, i)
		}
	}
	return nil
}

// Owned returns the entries belonging to owner.
func (w Wishlist) Owned(owner string) Wishlist {
	out := make(Wishlist, 0, len(w))
	for _, e := range w {
		if e.UserID == owner {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether owner has productID saved.
func (w Wishlist) Contains(owner, productID string) bool {
	for _, e := range w {
		if e.UserID == owner && e.ProductID == productID {
			return true
		}
	}
	return false
}

// Without returns a copy of w lacking owner's entry for productID.
func (w Wishlist) Without(owner, productID string) Wishlist {
	out := make(Wishlist, 0, len(w))
	for _, e := range w {
		if e.UserID == owner && e.ProductID == productID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Membership is the payload of the per-product wishlist lookup.
type Membership struct {
	IsWishlisted bool `json:"isWishlisted"`
}
