// Package services – AddressService
//
// AddressService manages the signed-in user's saved addresses. Answers are
// cached, but there is no local copy: a transport failure is reported to the
// caller.

package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/resource"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const (
	addressesKey  = "addresses"
	pincodePrefix = "pincode:"
)

// AddressService is safe for concurrent use.
type AddressService struct {
	Client *transport.Client
	TTL    time.Duration
	// PincodeTTL bounds cached serviceability answers.
	PincodeTTL time.Duration

	store     *resource.Store[domain.Addresses]
	addresses *cache.Cache[domain.Addresses]
	pincodes  *cache.Cache[domain.PincodeCheck]
}

// NewAddressService wires the address store.
func NewAddressService(d Deps, ttl, pincodeTTL time.Duration) *AddressService {
	s := &AddressService{
		Client:     d.Client,
		TTL:        ttl,
		PincodeTTL: pincodeTTL,
		addresses:  cache.New[domain.Addresses]("addresses", d.cacheOptions()...),
		pincodes:   cache.New[domain.PincodeCheck]("pincodes", d.cacheOptions()...),
	}
	s.store = resource.New(resource.Config[domain.Addresses]{
		Name:   "addresses",
		Caches: []resource.Invalidator{s.addresses},
	})
	return s
}

// List returns the saved addresses.
func (s *AddressService) List(ctx context.Context) (domain.Addresses, error) {
	return resource.Get(ctx, s.store, resource.Read[domain.Addresses, domain.Addresses]{
		Cache: s.addresses,
		Key:   addressesKey,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.Addresses, transport.Result) {
			return transport.Call[domain.Addresses](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/user/addresses"})
		},
	})
}

// Add saves a new address.
func (s *AddressService) Add(ctx context.Context, a domain.Address) (domain.Address, error) {
	if err := validateAddress(a); err != nil {
		return domain.Address{}, err
	}
	return s.mutate(ctx, "Add", transport.Request{Method: http.MethodPost, Path: "/user/addresses", Body: a})
}

// Update replaces the address with the given id.
func (s *AddressService) Update(ctx context.Context, id string, a domain.Address) (domain.Address, error) {
	if err := validateAddress(a); err != nil {
		return domain.Address{}, err
	}
	a.ID = id
	return s.mutate(ctx, "Update", transport.Request{Method: http.MethodPut, Path: "/user/addresses/" + url.PathEscape(id), Body: a})
}

// Delete removes the address with the given id.
func (s *AddressService) Delete(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, "Delete", transport.Request{Method: http.MethodDelete, Path: "/user/addresses/" + url.PathEscape(id)})
	return err
}

// SetDefault marks the address with the given id as the default one.
func (s *AddressService) SetDefault(ctx context.Context, id string) (domain.Address, error) {
	return s.mutate(ctx, "SetDefault", transport.Request{Method: http.MethodPut, Path: "/user/addresses/" + url.PathEscape(id) + "/default"})
}

// CheckPincode reports whether deliveries reach code.
func (s *AddressService) CheckPincode(ctx context.Context, code string) (domain.PincodeCheck, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.PincodeCheck{}, domain.ErrInvalid
	}
	return resource.Get(ctx, s.store, resource.Read[domain.PincodeCheck, domain.Addresses]{
		Cache: s.pincodes,
		Key:   pincodePrefix + code,
		TTL:   s.PincodeTTL,
		Remote: func(ctx context.Context) (domain.PincodeCheck, transport.Result) {
			return transport.Call[domain.PincodeCheck](ctx, s.Client, transport.Request{
				Method: http.MethodGet,
				Path:   "/user/pincode/" + url.PathEscape(code) + "/check",
			})
		},
	})
}

// Invalidate drops every cached address answer.
func (s *AddressService) Invalidate() {
	s.addresses.Reset()
	s.pincodes.Reset()
}

func (s *AddressService) mutate(ctx context.Context, name string, req transport.Request) (domain.Address, error) {
	a, err := resource.Mutate(ctx, s.store, resource.Mutation[domain.Address, domain.Addresses]{
		Name: name,
		Remote: func(ctx context.Context) (domain.Address, transport.Result) {
			return transport.Call[domain.Address](ctx, s.Client, req)
		},
		Keys: []string{addressesKey},
	})
	if err != nil {
		return domain.Address{}, mapNotFound(err, ErrAddressNotFound)
	}
	return a, nil
}

func validateAddress(a domain.Address) error {
	if strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.Pincode) == "" {
		return domain.ErrInvalid
	}
	return nil
}
