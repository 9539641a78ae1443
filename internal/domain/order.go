package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// Cancellable reports whether an order in state s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// OrderItem is one purchased line.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// Order is a placed order, owned either by an account or by a guest session.
type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	Status          OrderStatus `json:"status"`
	Items           []OrderItem `json:"items"`
	Total           float64     `json:"total"`
	CreatedAt       time.Time   `json:"createdAt"`
	GuestSessionID  string      `json:"guestSessionId,omitempty"`
	Email           string      `json:"email,omitempty"`
	ShippingAddress *Address    `json:"shippingAddress,omitempty"`
}

// Normalize replaces a nil item slice with an empty one.
func (o *Order) Normalize() {
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
}

// Validate rejects orders without identity or with an unknown status.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: order has no id", ErrInvalid)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: order %s has unknown status %q", ErrInvalid, o.ID, o.Status)
	}
	return nil
}

// Orders is an order list.
type Orders []Order

// Normalize normalizes every order.
func (list Orders) Normalize() {
	for i := range list {
		list[i].Normalize()
	}
}

// Validate checks every order.
func (list Orders) Validate() error {
	for _, o := range list {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the index of the order with the given id, or -1.
func (list Orders) Find(id string) int {
	for i, o := range list {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// PlaceOrder is the request body of POST /orders and POST /orders/guest.
type PlaceOrder struct {
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
	Email           string      `json:"email,omitempty"`
	SessionID       string      `json:"sessionId,omitempty"`
}

// LinkResult reports how many guest orders were attached to an account.
type LinkResult struct {
	LinkedCount int `json:"linkedCount"`
}
