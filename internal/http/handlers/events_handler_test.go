package handlers

import (
	"testing"

	"github.com/tbourn/go-storefront-client/internal/bus"
)

func Test_requestedTopics(t *testing.T) {
	all, ok := requestedTopics(nil)
	if !ok || len(all) != len(bus.Topics()) {
		t.Fatalf("no filter = %v, %v", all, ok)
	}

	got, ok := requestedTopics([]string{"cart-changed", "auth-changed", "cart-changed"})
	if !ok || len(got) != 2 || got[0] != bus.CartChanged || got[1] != bus.AuthChanged {
		t.Fatalf("filtered = %v, %v", got, ok)
	}

	if _, ok := requestedTopics([]string{"cart-changed", "nope"}); ok {
		t.Fatal("unknown topic accepted")
	}
}
