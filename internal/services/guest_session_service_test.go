package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestGuestSessionService_GetOrCreateIsStable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, ok := h.guests.Current(ctx); ok {
		t.Fatal("session exists before first use")
	}

	const workers = 8
	got := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := h.guests.GetOrCreate(ctx)
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			got[i] = sess.ID
		}(i)
	}
	wg.Wait()
	for _, id := range got {
		if id != got[0] {
			t.Fatalf("concurrent first calls disagree: %v", got)
		}
	}
	if _, err := uuid.Parse(got[0]); err != nil {
		t.Fatalf("session id %q is not a UUID", got[0])
	}

	// Another service over the same store (a restart) sees the same session.
	restarted := NewGuestSessionService(h.client, h.durable)
	sess, err := restarted.GetOrCreate(ctx)
	if err != nil || sess.ID != got[0] {
		t.Fatalf("after restart = %+v, %v", sess, err)
	}
}

func TestIdentity_OwnerFollowsSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.deps.Identity

	guestOwner, err := id.Owner(ctx)
	if err != nil {
		t.Fatalf("Owner: %v", err)
	}
	sess, _ := h.guests.Current(ctx)
	if guestOwner != sess.ID {
		t.Fatalf("guest owner = %q, session %q", guestOwner, sess.ID)
	}

	u := h.signIn(t, "owner@example.com")
	if owner, _ := id.Owner(ctx); owner != u.ID {
		t.Fatalf("signed-in owner = %q, want %q", owner, u.ID)
	}
	if got, ok := id.User(ctx); !ok || got.Email != u.Email {
		t.Fatalf("User = %+v, %v", got, ok)
	}
}

func TestGuestSessionService_LinkNotifiesOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.guests.GetOrCreate(ctx); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	h.signIn(t, "notify@example.com")

	n := &countingNotifier{}
	h.guests.Orders = n
	out, err := h.guests.LinkToAccount(ctx, "notify@example.com")
	if err != nil {
		t.Fatalf("LinkToAccount: %v", err)
	}
	if out.LinkedCount != 0 || n.calls != 1 {
		t.Fatalf("linked = %d, notifications = %d", out.LinkedCount, n.calls)
	}
}

func TestGuestSessionService_LinkWithoutSessionIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.signIn(t, "first@example.com")
	if n := h.remote.Hits("POST /orders/link-guest-orders"); n != 0 {
		t.Fatalf("link hits = %d; want 0 without a guest session", n)
	}
	if _, ok := h.guests.Current(ctx); ok {
		t.Fatal("login created a guest session")
	}

	n := &countingNotifier{}
	h.guests.Orders = n
	out, err := h.guests.LinkToAccount(ctx, "first@example.com")
	if err != nil || out.LinkedCount != 0 || n.calls != 0 {
		t.Fatalf("LinkToAccount = %+v, %v; notifications = %d", out, err, n.calls)
	}
}

type countingNotifier struct{ calls int }

func (n *countingNotifier) Changed() { n.calls++ }
