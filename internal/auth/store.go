// Package auth holds the credential lifecycle of the client: where the token
// pair lives and what its access token claims.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/repo"
)

// ErrNoCredentials is returned when no store holds a pair.
var ErrNoCredentials = errors.New("no credentials")

// Store keeps the credential pair in exactly one of two physical stores: the
// durable one ("remember me") or the ephemeral one (process lifetime). A pair
// is never copied from one to the other.
type Store struct {
	mu        sync.Mutex
	durable   *fallback.Adapter[domain.CredentialPair]
	ephemeral *fallback.Adapter[domain.CredentialPair]
}

// NewStore builds a store over the two key-value backends.
func NewStore(durable, ephemeral repo.KV) *Store {
	return &Store{
		durable:   fallback.New[domain.CredentialPair](durable, fallback.NamespaceAuth),
		ephemeral: fallback.New[domain.CredentialPair](ephemeral, fallback.NamespaceAuth),
	}
}

func (s *Store) adapter(p domain.Persistence) *fallback.Adapter[domain.CredentialPair] {
	if p == domain.PersistenceDurable {
		return s.durable
	}
	return s.ephemeral
}

// Load returns the pair of whichever store holds one. The returned
// Persistence always names the store it was read from.
func (s *Store) Load(ctx context.Context) (domain.CredentialPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (domain.CredentialPair, bool) {
	if p, ok := s.ephemeral.Read(ctx, fallback.KeyCredentials); ok {
		p.Persistence = domain.PersistenceEphemeral
		return p, true
	}
	if p, ok := s.durable.Read(ctx, fallback.KeyCredentials); ok {
		p.Persistence = domain.PersistenceDurable
		return p, true
	}
	return domain.CredentialPair{}, false
}

// Save writes pair to the store named by pair.Persistence and removes any
// pair held by the other store.
func (s *Store) Save(ctx context.Context, pair domain.CredentialPair) error {
	if pair.Persistence != domain.PersistenceDurable {
		pair.Persistence = domain.PersistenceEphemeral
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.adapter(pair.Persistence).Write(ctx, fallback.KeyCredentials, pair); err != nil {
		return err
	}
	other := domain.PersistenceDurable
	if pair.Persistence == domain.PersistenceDurable {
		other = domain.PersistenceEphemeral
	}
	return s.adapter(other).Delete(ctx, fallback.KeyCredentials)
}

// Rotate replaces the tokens of the currently stored pair, keeping the store
// it came from.
func (s *Store) Rotate(ctx context.Context, access, refresh string) (domain.CredentialPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.load(ctx)
	if !ok {
		return domain.CredentialPair{}, ErrNoCredentials
	}
	cur.AccessToken = access
	if refresh != "" {
		cur.RefreshToken = refresh
	}
	if err := s.adapter(cur.Persistence).Write(ctx, fallback.KeyCredentials, cur); err != nil {
		return domain.CredentialPair{}, err
	}
	return cur, nil
}

// Clear removes the pair from both stores.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(
		s.durable.Delete(ctx, fallback.KeyCredentials),
		s.ephemeral.Delete(ctx, fallback.KeyCredentials),
	)
}
