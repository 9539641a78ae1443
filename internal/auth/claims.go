package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-storefront-client/internal/domain"
)

// OfflineIssuer marks tokens minted locally while the remote was unreachable.
const OfflineIssuer = "storefront-offline"

// Claims are the access-token claims the client reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// User projects the claims onto a domain user.
func (c *Claims) User() domain.User {
	return domain.User{ID: c.Subject, Email: c.Email, Name: c.Name, Role: c.Role}
}

// Expired reports whether the token carries an expiry at or before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time)
}

// Offline reports whether the token was issued locally.
func (c *Claims) Offline() bool { return c.Issuer == OfflineIssuer }

// ParseUnverified decodes the claims of token without checking its
// signature; the remote API is the only verifier.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IssueOffline signs an HS256 access token for user with the local secret.
func IssueOffline(secret []byte, user domain.User, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    OfflineIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyOffline checks the signature and expiry of a locally issued token.
func VerifyOffline(secret []byte, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(OfflineIssuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
