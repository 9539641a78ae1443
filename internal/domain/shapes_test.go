package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCart_Normalize_ClampsDropsAndTotals(t *testing.T) {
	c := Cart{Items: []CartItem{
		{ID: "a", ProductID: "p1", UnitPrice: 10.10, Quantity: 3},
		{ID: "b", ProductID: "p2", UnitPrice: 5, Quantity: 15},
		{ID: "c", ProductID: "p3", UnitPrice: 99, Quantity: 0},
		{ID: "d", ProductID: "p4", UnitPrice: 1, Quantity: -2},
	}}
	c.Normalize()

	if len(c.Items) != 2 {
		t.Fatalf("items = %d; want 2", len(c.Items))
	}
	if c.Items[1].Quantity != MaxQuantity {
		t.Fatalf("quantity = %d; want %d", c.Items[1].Quantity, MaxQuantity)
	}
	if c.Total != 80.30 || c.Count != 13 {
		t.Fatalf("total/count = %v/%d; want 80.30/13", c.Total, c.Count)
	}

	var empty Cart
	empty.Normalize()
	if empty.Items == nil || empty.Total != 0 || empty.Count != 0 {
		t.Fatalf("empty cart normalize unexpected: %+v", empty)
	}
}

func TestCart_Validate(t *testing.T) {
	if err := (Cart{Items: []CartItem{{ProductID: ""}}}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("missing product id should be invalid, got %v", err)
	}
	if err := (Cart{Items: []CartItem{{ProductID: "p", UnitPrice: -1}}}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("negative price should be invalid, got %v", err)
	}
	if err := (Cart{Items: []CartItem{{ProductID: "p", UnitPrice: 1}}}).Validate(); err != nil {
		t.Fatalf("valid cart rejected: %v", err)
	}
}

func TestCartItem_SameLine_And_Find(t *testing.T) {
	it := CartItem{ID: "x", ProductID: "p", Size: "M", Color: "red"}
	if !it.SameLine("p", "M", "red") || it.SameLine("p", "L", "red") {
		t.Fatalf("SameLine mismatch")
	}
	c := Cart{Items: []CartItem{it}}
	if c.Find("x") != 0 || c.Find("y") != -1 {
		t.Fatalf("Find mismatch")
	}
}

func TestWishlist_NormalizeOwnedContainsWithout(t *testing.T) {
	w := Wishlist{
		{ID: "1", ProductID: "p1", UserID: "u1"},
		{ID: "2", ProductID: "p1", UserID: "u1"},
		{ID: "3", ProductID: "p1", UserID: "u2"},
		{ID: "4", ProductID: "p2", UserID: "u1"},
	}
	w.Normalize()
	if len(w) != 3 {
		t.Fatalf("len after dedupe = %d; want 3", len(w))
	}
	if got := w.Owned("u1"); len(got) != 2 {
		t.Fatalf("Owned(u1) = %d; want 2", len(got))
	}
	if !w.Contains("u2", "p1") || w.Contains("u2", "p2") {
		t.Fatalf("Contains mismatch")
	}
	if rest := w.Without("u1", "p1"); len(rest) != 2 || rest.Contains("u1", "p1") {
		t.Fatalf("Without mismatch: %+v", rest)
	}
	if err := (Wishlist{{ID: "x"}}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("entry without product should be invalid")
	}
}

func TestProductFilter_NormalizedAndKey(t *testing.T) {
	f := ProductFilter{Limit: 500, Sort: "weird"}.Normalized()
	if f.Page != 1 || f.Limit != MaxPageLimit || f.Sort != SortNewest {
		t.Fatalf("Normalized unexpected: %+v", f)
	}

	a := ProductFilter{Category: "shoes", Search: "run", InStock: true}
	b := ProductFilter{InStock: true, Search: "run", Category: "shoes", Page: 1, Limit: DefaultPageLimit}
	if a.Key() != b.Key() {
		t.Fatalf("equal filters should share a key: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == (ProductFilter{Category: "bags"}).Key() {
		t.Fatalf("different filters should not share a key")
	}
	q := ProductFilter{MinPrice: 9.5}.Query()
	if q.Get("minPrice") != "9.5" || q.Get("page") != "1" {
		t.Fatalf("Query unexpected: %v", q)
	}
}

func TestOrderStatus(t *testing.T) {
	for _, s := range []OrderStatus{OrderPending, OrderConfirmed} {
		if !s.Valid() || !s.Cancellable() {
			t.Fatalf("%s should be valid and cancellable", s)
		}
	}
	for _, s := range []OrderStatus{OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded} {
		if !s.Valid() || s.Cancellable() {
			t.Fatalf("%s should be valid and not cancellable", s)
		}
	}
	if OrderStatus("lost").Valid() {
		t.Fatalf("unknown status should be invalid")
	}
	if err := (Orders{{ID: "o1", Status: "lost"}}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown status should fail validation")
	}
	os := Orders{{ID: "o1", Status: OrderPending}}
	os.Normalize()
	if os[0].Items == nil || os.Find("o1") != 0 || os.Find("nope") != -1 {
		t.Fatalf("orders normalize/find unexpected: %+v", os)
	}
}

func TestGuestSession_And_Credentials(t *testing.T) {
	if err := (GuestSession{ID: uuid.NewString(), CreatedAt: time.Now()}).Validate(); err != nil {
		t.Fatalf("valid session rejected: %v", err)
	}
	if err := (GuestSession{ID: "not-a-uuid"}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("bad session id should be invalid")
	}
	if PersistenceFor(true) != PersistenceDurable || PersistenceFor(false) != PersistenceEphemeral {
		t.Fatalf("PersistenceFor mismatch")
	}
	if err := (CredentialPair{}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty pair should be invalid")
	}
}

func TestMockUsers_FindAndValidate(t *testing.T) {
	us := MockUsers{{User: User{ID: "1", Email: "Ann@Example.com"}, PasswordHash: "h"}}
	if us.Find("ann@example.com") != 0 || us.Find("bob@example.com") != -1 {
		t.Fatalf("Find should be case-insensitive")
	}
	if err := (MockUsers{{User: User{Email: "x@y"}}}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("user without hash should be invalid")
	}
	if err := (AuthResult{}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("auth result without token should be invalid")
	}
	if err := (Addresses{{Name: "x"}}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("address without id should be invalid")
	}
}
