// Package services – GuestSessionService
//
// GuestSessionService owns the anonymous device identity used for guest
// checkout and for wishlist ownership while signed out. The session is
// created lazily, stored durably and never rotated; linking it to an
// account is additive and may be repeated.

package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-storefront-client/internal/auth"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/observability"
	"github.com/tbourn/go-storefront-client/internal/repo"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

// OrdersNotifier is told when the set of orders visible to the visitor
// changed outside the order store.
type OrdersNotifier interface {
	Changed()
}

// GuestSessionService manages the device-local guest session.
type GuestSessionService struct {
	Client *transport.Client
	// Orders is notified after guest orders were linked; optional.
	Orders OrdersNotifier
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	fb *fallback.Adapter[domain.GuestSession]
	mu sync.Mutex
}

// NewGuestSessionService stores the session in kv under session/guest.
func NewGuestSessionService(client *transport.Client, kv repo.KV) *GuestSessionService {
	return &GuestSessionService{
		Client: client,
		fb:     fallback.New[domain.GuestSession](kv, fallback.NamespaceSession),
	}
}

func (s *GuestSessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GetOrCreate returns the stored session or creates one. Concurrent first
// calls observe the same session.
func (s *GuestSessionService) GetOrCreate(ctx context.Context) (domain.GuestSession, error) {
	if sess, ok := s.fb.Read(ctx, fallback.KeyGuestSession); ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.fb.Read(ctx, fallback.KeyGuestSession); ok {
		return sess, nil
	}
	sess := domain.GuestSession{ID: uuid.NewString(), CreatedAt: s.now().UTC()}
	if err := s.fb.Write(ctx, fallback.KeyGuestSession, sess); err != nil {
		return domain.GuestSession{}, err
	}
	log.Info().Str("component", "guest-session").Str("session_id", sess.ID).Msg("guest session created")
	return sess, nil
}

// Current returns the stored session without creating one.
func (s *GuestSessionService) Current(ctx context.Context) (domain.GuestSession, bool) {
	return s.fb.Read(ctx, fallback.KeyGuestSession)
}

// Reset forgets the session; the next GetOrCreate starts a new one.
func (s *GuestSessionService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fb.Delete(ctx, fallback.KeyGuestSession)
}

// LinkToAccount attaches the guest session's orders to the account with the
// given email. The server treats repeated links as no-ops.
func (s *GuestSessionService) LinkToAccount(ctx context.Context, email string) (domain.LinkResult, error) {
	tr := observability.Tracer("services/GuestSessionService")
	ctx, span := tr.Start(ctx, "LinkToAccount")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	sess, ok := s.Current(ctx)
	if !ok {
		// A device that never browsed as a guest has nothing to link.
		span.SetAttributes(attribute.Bool("session.present", false))
		return domain.LinkResult{}, nil
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	out, res := transport.Call[domain.LinkResult](ctx, s.Client, transport.Request{
		Method: http.MethodPost,
		Path:   "/orders/link-guest-orders",
		Body:   map[string]string{"sessionId": sess.ID, "email": email},
	})
	if err = res.Err(); err != nil {
		return domain.LinkResult{}, err
	}
	span.SetAttributes(attribute.Int("orders.linked", out.LinkedCount))
	if s.Orders != nil {
		s.Orders.Changed()
	}
	return out, nil
}

// Identity resolves who the current visitor is: the signed-in user decoded
// from the access token, else the guest session.
type Identity struct {
	Creds  *auth.Store
	Guests *GuestSessionService
}

// User decodes the current access token. Claims are not verified; the
// remote is the authority.
func (id Identity) User(ctx context.Context) (domain.User, bool) {
	if id.Creds == nil {
		return domain.User{}, false
	}
	pair, ok := id.Creds.Load(ctx)
	if !ok {
		return domain.User{}, false
	}
	claims, err := auth.ParseUnverified(pair.AccessToken)
	if err != nil {
		return domain.User{}, false
	}
	return claims.User(), true
}

// Owner returns the user id, or the guest session id when signed out.
func (id Identity) Owner(ctx context.Context) (string, error) {
	if user, ok := id.User(ctx); ok && user.ID != "" {
		return user.ID, nil
	}
	sess, err := id.Guests.GetOrCreate(ctx)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// spanUser annotates span with the visitor kind.
func spanUser(span trace.Span, user domain.User, signedIn bool) {
	if signedIn {
		span.SetAttributes(attribute.String("user.id", user.ID))
		return
	}
	span.SetAttributes(attribute.Bool("user.guest", true))
}
