package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GuestSession is the anonymous device-local identity. It is created once per
// device and survives linking to an account.
type GuestSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate rejects sessions whose id is not a UUID.
func (s GuestSession) Validate() error {
	if _, err := uuid.Parse(s.ID); err != nil {
		return fmt.Errorf("%w: guest session id: %v", ErrInvalid, err)
	}
	return nil
}

// Persistence selects the physical store backing a credential pair.
type Persistence string

const (
	PersistenceDurable   Persistence = "durable"
	PersistenceEphemeral Persistence = "ephemeral"
)

// PersistenceFor maps the "remember me" choice to a store.
func PersistenceFor(rememberMe bool) Persistence {
	if rememberMe {
		return PersistenceDurable
	}
	return PersistenceEphemeral
}

// CredentialPair holds both tokens; they always live in the same store.
type CredentialPair struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	Persistence  Persistence `json:"persistence"`
}

// Validate rejects pairs missing the access token.
func (c CredentialPair) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("%w: credential pair has no access token", ErrInvalid)
	}
	return nil
}
