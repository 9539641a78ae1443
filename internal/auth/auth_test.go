package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/repo"
)

func TestStore_SaveRespectsPersistence(t *testing.T) {
	ctx := context.Background()
	durable, ephemeral := repo.NewMemoryKV(), repo.NewMemoryKV()
	s := NewStore(durable, ephemeral)

	if _, ok := s.Load(ctx); ok {
		t.Fatalf("empty store should have no pair")
	}

	// remember me = false
	if err := s.Save(ctx, domain.CredentialPair{AccessToken: "a1", RefreshToken: "r1", Persistence: domain.PersistenceEphemeral}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := durable.Get(ctx, "auth", "credentials"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("ephemeral login must not touch the durable store")
	}
	p, ok := s.Load(ctx)
	if !ok || p.AccessToken != "a1" || p.Persistence != domain.PersistenceEphemeral {
		t.Fatalf("Load = %+v, %v", p, ok)
	}

	// Restart: the ephemeral store is gone and nothing falls back to durable.
	ephemeral.Clear()
	if _, ok := s.Load(ctx); ok {
		t.Fatalf("pair should not survive a restart without remember me")
	}

	// remember me = true, replacing an ephemeral pair.
	_ = s.Save(ctx, domain.CredentialPair{AccessToken: "x", RefreshToken: "y", Persistence: domain.PersistenceEphemeral})
	if err := s.Save(ctx, domain.CredentialPair{AccessToken: "a2", RefreshToken: "r2", Persistence: domain.PersistenceDurable}); err != nil {
		t.Fatalf("Save durable: %v", err)
	}
	if _, err := ephemeral.Get(ctx, "auth", "credentials"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("durable login should remove the ephemeral pair")
	}
	ephemeral.Clear()
	if p, ok := s.Load(ctx); !ok || p.AccessToken != "a2" || p.Persistence != domain.PersistenceDurable {
		t.Fatalf("durable pair should survive restart: %+v %v", p, ok)
	}
}

func TestStore_RotateKeepsStore(t *testing.T) {
	ctx := context.Background()
	durable, ephemeral := repo.NewMemoryKV(), repo.NewMemoryKV()
	s := NewStore(durable, ephemeral)

	if _, err := s.Rotate(ctx, "a", "r"); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Rotate without pair = %v", err)
	}

	_ = s.Save(ctx, domain.CredentialPair{AccessToken: "a1", RefreshToken: "r1", Persistence: domain.PersistenceDurable})
	p, err := s.Rotate(ctx, "a2", "")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if p.AccessToken != "a2" || p.RefreshToken != "r1" || p.Persistence != domain.PersistenceDurable {
		t.Fatalf("Rotate = %+v", p)
	}
	if _, err := ephemeral.Get(ctx, "auth", "credentials"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("rotation must not move the pair to the ephemeral store")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Load(ctx); ok {
		t.Fatalf("Clear should remove the pair")
	}
}

func TestClaims_ParseUnverified(t *testing.T) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: "ann@example.com",
		Role:  "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte("server-secret-we-do-not-know"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	c, err := ParseUnverified(signed)
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	u := c.User()
	if u.ID != "u-1" || u.Email != "ann@example.com" || u.Role != "customer" {
		t.Fatalf("User() = %+v", u)
	}
	if c.Expired(now) || !c.Expired(now.Add(2*time.Hour)) {
		t.Fatalf("Expired mismatch")
	}
	if c.Offline() {
		t.Fatalf("remote token reported as offline")
	}

	if _, err := ParseUnverified("not.a.jwt"); err == nil {
		t.Fatalf("garbage should not parse")
	}
}

func TestOfflineTokens(t *testing.T) {
	secret := []byte("local-secret")
	now := time.Now()
	user := domain.User{ID: "u-9", Email: "bob@example.com"}

	tok, err := IssueOffline(secret, user, time.Hour, now)
	if err != nil {
		t.Fatalf("IssueOffline: %v", err)
	}
	c, err := VerifyOffline(secret, tok)
	if err != nil || c.Subject != "u-9" || !c.Offline() {
		t.Fatalf("VerifyOffline = %+v, %v", c, err)
	}
	if _, err := VerifyOffline([]byte("other"), tok); err == nil {
		t.Fatalf("wrong secret should fail verification")
	}
	expired, _ := IssueOffline(secret, user, time.Minute, now.Add(-time.Hour))
	if _, err := VerifyOffline(secret, expired); err == nil {
		t.Fatalf("expired token should fail verification")
	}
}
