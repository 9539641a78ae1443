// Package services – AuthService
//
// AuthService signs visitors in and out and exposes who is signed in. The
// token pair is stored according to "remember me": durably when set,
// ephemerally otherwise. While the remote is unreachable, login and
// registration fall back to accounts registered on this device
// (mock-users/all, bcrypt hashes) and receive locally signed tokens. The
// remote rejects those tokens once it is back, which ends the session.
//
// After every successful remote login the guest session is linked to the
// account in the background; linking never blocks or fails the login.
//
// Observability: public methods are OpenTelemetry-instrumented; emails are
// never put on spans.

package services

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-storefront-client/internal/auth"
	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/observability"
	"github.com/tbourn/go-storefront-client/internal/sysutil"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const (
	minPasswordLen     = 8
	offlineSecretBytes = 32
	defaultOfflineTTL  = 24 * time.Hour
	roleCustomer       = "customer"
)

// Credentials is a login request.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Registration is a sign-up request.
type Registration struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// AuthService is safe for concurrent use.
type AuthService struct {
	Client *transport.Client
	Creds  *auth.Store
	// Guests is linked to the account after a remote login; optional.
	Guests *GuestSessionService
	Bus    *bus.Bus
	// OfflineTokenTTL bounds locally signed tokens.
	OfflineTokenTTL time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	users  *fallback.Adapter[domain.MockUsers]
	secret *fallback.Adapter[[]byte]
	mu     sync.Mutex
	links  sync.WaitGroup
	log    zerolog.Logger
}

// NewAuthService wires authentication over the client's credential store.
// Offline accounts and the signing secret live in kv.
func NewAuthService(d Deps, guests *GuestSessionService) *AuthService {
	return &AuthService{
		Client:          d.Client,
		Creds:           d.Client.Credentials(),
		Guests:          guests,
		Bus:             d.Bus,
		OfflineTokenTTL: defaultOfflineTTL,
		users:           fallback.New[domain.MockUsers](d.KV, fallback.NamespaceMockUsers),
		secret:          fallback.New[[]byte](d.KV, fallback.NamespaceAuth),
		log:             log.With().Str("component", "auth").Logger(),
	}
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login signs in with email and password.
func (s *AuthService) Login(ctx context.Context, c Credentials) (domain.User, error) {
	ctx, span := observability.Tracer("services/AuthService").Start(ctx, "Login")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	c.Email = strings.TrimSpace(c.Email)
	if c.Email == "" || c.Password == "" {
		err = ErrInvalidCredentials
		return domain.User{}, err
	}
	persistence := domain.PersistenceFor(c.RememberMe)
	span.SetAttributes(attribute.String("auth.persistence", string(persistence)))

	ar, res := transport.Call[domain.AuthResult](ctx, s.Client, transport.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      map[string]string{"email": c.Email, "password": c.Password},
		Anonymous: true,
	})
	var user domain.User
	switch res.Kind {
	case transport.OK:
		user, err = s.establish(ctx, ar, persistence)
		if err != nil {
			return domain.User{}, err
		}
		s.linkGuestOrders(ctx, user.Email)
	case transport.Transport:
		span.SetAttributes(attribute.Bool("fallback", true))
		user, err = s.offlineLogin(ctx, c, persistence)
		if err != nil {
			return domain.User{}, err
		}
	default:
		err = res.Err()
		return domain.User{}, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.publish()
	return user, nil
}

// Register creates an account and signs in.
func (s *AuthService) Register(ctx context.Context, r Registration) (domain.User, error) {
	ctx, span := observability.Tracer("services/AuthService").Start(ctx, "Register")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if !strings.Contains(r.Email, "@") || len(r.Password) < minPasswordLen {
		err = domain.ErrInvalid
		return domain.User{}, err
	}
	persistence := domain.PersistenceFor(r.RememberMe)

	ar, res := transport.Call[domain.AuthResult](ctx, s.Client, transport.Request{
		Method:    http.MethodPost,
		Path:      "/auth/register",
		Body:      map[string]string{"name": r.Name, "email": r.Email, "password": r.Password},
		Anonymous: true,
	})
	var user domain.User
	switch res.Kind {
	case transport.OK:
		user, err = s.establish(ctx, ar, persistence)
		if err != nil {
			return domain.User{}, err
		}
		s.linkGuestOrders(ctx, user.Email)
	case transport.Transport:
		span.SetAttributes(attribute.Bool("fallback", true))
		user, err = s.offlineRegister(ctx, r, persistence)
		if err != nil {
			return domain.User{}, err
		}
	default:
		err = res.Err()
		return domain.User{}, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.publish()
	return user, nil
}

// Logout forgets the credentials.
func (s *AuthService) Logout(ctx context.Context) error {
	_, span := observability.Tracer("services/AuthService").Start(ctx, "Logout")
	defer span.End()

	err := s.Creds.Clear(ctx)
	s.publish()
	return err
}

// ChangePassword changes the signed-in user's password. Accounts registered
// on this device while offline are changed locally when the remote is
// unreachable.
func (s *AuthService) ChangePassword(ctx context.Context, current, next string) error {
	ctx, span := observability.Tracer("services/AuthService").Start(ctx, "ChangePassword")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	claims, ok := s.claims(ctx)
	if !ok {
		err = ErrNotAuthenticated
		return err
	}
	if len(next) < minPasswordLen {
		err = domain.ErrInvalid
		return err
	}

	res := s.Client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/change-password",
		Body:   map[string]string{"currentPassword": current, "newPassword": next},
	})
	if res.Kind == transport.Transport && claims.Offline() {
		err = s.changeLocalPassword(ctx, claims.Email, current, next)
		return err
	}
	err = res.Err()
	return err
}

// CurrentUser returns the user the stored access token was issued to. The
// token is decoded without verification.
func (s *AuthService) CurrentUser(ctx context.Context) (domain.User, bool) {
	claims, ok := s.claims(ctx)
	if !ok {
		return domain.User{}, false
	}
	return claims.User(), true
}

// Authenticated reports whether credentials are stored.
func (s *AuthService) Authenticated(ctx context.Context) bool {
	_, ok := s.Creds.Load(ctx)
	return ok
}

// HandleExpired is the transport's auth-expired hook; the credentials are
// already cleared when it runs.
func (s *AuthService) HandleExpired(context.Context) {
	s.publish()
}

// WaitLinks blocks until background guest-order links have finished.
func (s *AuthService) WaitLinks() {
	s.links.Wait()
}

// Reset removes offline accounts, the signing secret and the credentials.
func (s *AuthService) Reset(ctx context.Context) error {
	return errors.Join(
		s.users.Reset(ctx),
		s.secret.Delete(ctx, fallback.KeyOfflineSecret),
		s.Creds.Clear(ctx),
	)
}

func (s *AuthService) claims(ctx context.Context) (*auth.Claims, bool) {
	pair, ok := s.Creds.Load(ctx)
	if !ok {
		return nil, false
	}
	claims, err := auth.ParseUnverified(pair.AccessToken)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// establish stores the pair of a remote auth result and returns its user.
func (s *AuthService) establish(ctx context.Context, ar domain.AuthResult, p domain.Persistence) (domain.User, error) {
	err := s.Creds.Save(ctx, domain.CredentialPair{AccessToken: ar.AccessToken, RefreshToken: ar.RefreshToken, Persistence: p})
	if err != nil {
		return domain.User{}, err
	}
	if ar.User != nil {
		return *ar.User, nil
	}
	claims, err := auth.ParseUnverified(ar.AccessToken)
	if err != nil {
		return domain.User{}, nil
	}
	return claims.User(), nil
}

// linkGuestOrders links the guest session in the background.
func (s *AuthService) linkGuestOrders(ctx context.Context, email string) {
	if s.Guests == nil || email == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.links.Add(1)
	go func() {
		defer s.links.Done()
		out, err := s.Guests.LinkToAccount(ctx, email)
		if err != nil {
			s.log.Warn().Err(err).Msg("linking guest orders failed")
			return
		}
		s.log.Info().Int("linked", out.LinkedCount).Msg("guest orders linked")
	}()
}

func (s *AuthService) offlineLogin(ctx context.Context, c Credentials, p domain.Persistence) (domain.User, error) {
	users, _ := s.users.Read(ctx, fallback.KeyAll)
	i := users.Find(c.Email)
	if i < 0 {
		return domain.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(c.Password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := s.issueOffline(ctx, users[i].User, p); err != nil {
		return domain.User{}, err
	}
	s.log.Info().Str("user_id", users[i].ID).Msg("signed in offline")
	return users[i].User, nil
}

func (s *AuthService) offlineRegister(ctx context.Context, r Registration, p domain.Persistence) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	users, _ := s.users.Read(ctx, fallback.KeyAll)
	if users.Find(r.Email) >= 0 {
		s.mu.Unlock()
		return domain.User{}, ErrEmailTaken
	}
	user := domain.User{
		ID:    uuid.NewString(),
		Email: r.Email,
		Name:  sysutil.FirstNonEmpty(r.Name, r.Email),
		Role:  roleCustomer,
	}
	users = append(users, domain.MockUser{User: user, PasswordHash: string(hash)})
	err = s.users.Write(ctx, fallback.KeyAll, users)
	s.mu.Unlock()
	if err != nil {
		return domain.User{}, err
	}

	if err := s.issueOffline(ctx, user, p); err != nil {
		return domain.User{}, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("registered offline")
	return user, nil
}

func (s *AuthService) changeLocalPassword(ctx context.Context, email, current, next string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, _ := s.users.Read(ctx, fallback.KeyAll)
	i := users.Find(email)
	if i < 0 {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	users[i].PasswordHash = string(hash)
	return s.users.Write(ctx, fallback.KeyAll, users)
}

// issueOffline stores a locally signed access token without refresh token.
func (s *AuthService) issueOffline(ctx context.Context, user domain.User, p domain.Persistence) error {
	secret, err := s.offlineSecret(ctx)
	if err != nil {
		return err
	}
	ttl := s.OfflineTokenTTL
	if ttl <= 0 {
		ttl = defaultOfflineTTL
	}
	token, err := auth.IssueOffline(secret, user, ttl, s.now())
	if err != nil {
		return err
	}
	return s.Creds.Save(ctx, domain.CredentialPair{AccessToken: token, Persistence: p})
}

// offlineSecret returns the device signing key, creating it on first use.
func (s *AuthService) offlineSecret(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.secret.Read(ctx, fallback.KeyOfflineSecret); ok && len(key) == offlineSecretBytes {
		return key, nil
	}
	key := make([]byte, offlineSecretBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := s.secret.Write(ctx, fallback.KeyOfflineSecret, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *AuthService) publish() {
	if s.Bus != nil {
		s.Bus.Publish(bus.AuthChanged)
	}
}
