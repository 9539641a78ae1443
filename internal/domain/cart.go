package domain

import (
	"fmt"
	"math"
)

// Quantity bounds of a single cart line.
const (
	MinQuantity = 1
	MaxQuantity = 10
)

// CartItem is one line of the cart. UnitPrice is the price snapshot taken
// when the line was added.
type CartItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
	Image     string  `json:"image,omitempty"`
}

// SameLine reports whether it and other describe the same product variant.
func (it CartItem) SameLine(productID, size, color string) bool {
	return it.ProductID == productID && it.Size == size && it.Color == color
}

// Cart is the current visitor's cart. Total and Count are derived from Items.
// Owner is only set on the local copy: the user id, or the guest session id.
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
	Count int        `json:"count"`
	Owner string     `json:"owner,omitempty"`
}

// ClampQuantity caps q at MaxQuantity. Values below MinQuantity are returned
// unchanged so callers can treat them as removal.
func ClampQuantity(q int) int {
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// RoundCents rounds a money amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Normalize drops non-positive lines, clamps quantities and recomputes the
// derived totals. Remote and fallback carts both pass through here.
func (c *Cart) Normalize() {
	items := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity < MinQuantity {
			continue
		}
		it.Quantity = ClampQuantity(it.Quantity)
		items = append(items, it)
	}
	c.Items = items

	var total float64
	count := 0
	for _, it := range c.Items {
		total += it.UnitPrice * float64(it.Quantity)
		count += it.Quantity
	}
	c.Total = RoundCents(total)
	c.Count = count
}

// Validate rejects lines without a product or with a negative price.
func (c Cart) Validate() error {
	for i, it := range c.Items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: cart item %d has no product id", ErrInvalid, i)
		}
		if it.UnitPrice < 0 || math.IsNaN(it.UnitPrice) || math.IsInf(it.UnitPrice, 0) {
			return fmt.Errorf("%w: cart item %d has an invalid unit price", ErrInvalid, i)
		}
	}
	return nil
}

// Find returns the index of the line with the given id, or -1.
func (c Cart) Find(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// Count is the payload of the count endpoints.
type Count struct {
	Count int `json:"count"`
}
