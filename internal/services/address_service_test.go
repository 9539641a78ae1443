package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

func TestAddressService_CRUD(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "home@example.com")
	ctx := context.Background()

	first, err := h.addresses.Add(ctx, shipTo)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	work := shipTo
	work.Line1 = "2 Office Park"
	second, err := h.addresses.Add(ctx, work)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !first.IsDefault || second.IsDefault {
		t.Fatalf("only the first address starts as default: %+v %+v", first, second)
	}

	if _, err := h.addresses.SetDefault(ctx, second.ID); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	list, err := h.addresses.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %+v, %v", list, err)
	}
	for _, a := range list {
		if a.IsDefault != (a.ID == second.ID) {
			t.Fatalf("default not moved: %+v", list)
		}
	}

	work.City = "Shelbyville"
	updated, err := h.addresses.Update(ctx, second.ID, work)
	if err != nil || updated.City != "Shelbyville" {
		t.Fatalf("Update = %+v, %v", updated, err)
	}
	if err := h.addresses.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.addresses.Delete(ctx, first.ID); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestAddressService_ValidatesLocally(t *testing.T) {
	h := newHarness(t)
	if _, err := h.addresses.Add(context.Background(), domain.Address{City: "X"}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	if n := h.remote.Hits("POST /user/addresses"); n != 0 {
		t.Fatalf("remote called %d times", n)
	}
}

func TestAddressService_HasNoOfflineCopy(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "nowhere@example.com")
	h.remote.SetDown(true)
	ctx := context.Background()

	if _, err := h.addresses.List(ctx); !errors.Is(err, transport.ErrTransport) {
		t.Fatalf("List: want ErrTransport, got %v", err)
	}
	if _, err := h.addresses.Add(ctx, shipTo); !errors.Is(err, transport.ErrTransport) {
		t.Fatalf("Add: want ErrTransport, got %v", err)
	}
}

func TestAddressService_CheckPincode(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "pin@example.com")
	ctx := context.Background()

	got, err := h.addresses.CheckPincode(ctx, " 400001 ")
	if err != nil || !got.Serviceable || got.EstimatedDays != 4 {
		t.Fatalf("CheckPincode = %+v, %v", got, err)
	}
	got, err = h.addresses.CheckPincode(ctx, "900001")
	if err != nil || got.Serviceable {
		t.Fatalf("CheckPincode = %+v, %v", got, err)
	}
	if _, err := h.addresses.CheckPincode(ctx, ""); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("empty pincode: %v", err)
	}
}

func TestAddressService_RequiresSignIn(t *testing.T) {
	h := newHarness(t)
	_, err := h.addresses.List(context.Background())
	if !errors.Is(err, transport.ErrAuthExpired) {
		t.Fatalf("want ErrAuthExpired, got %v", err)
	}
}
