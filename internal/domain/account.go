package domain

import (
	"fmt"
	"strings"
)

// Address is a saved shipping address of the signed-in user.
type Address struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

// Addresses is the payload of GET /user/addresses.
type Addresses []Address

// Validate rejects addresses missing an id.
func (as Addresses) Validate() error {
	for i, a := range as {
		if a.ID == "" {
			return fmt.Errorf("%w: address %d has no id", ErrInvalid, i)
		}
	}
	return nil
}

// PincodeCheck reports whether deliveries reach a postal code.
type PincodeCheck struct {
	Pincode       string `json:"pincode"`
	Serviceable   bool   `json:"serviceable"`
	EstimatedDays int    `json:"estimatedDays,omitempty"`
}

// User is the authenticated account as reported by the remote.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// AuthResult is the payload of login, register and refresh.
type AuthResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// Validate rejects results without an access token.
func (r AuthResult) Validate() error {
	if r.AccessToken == "" {
		return fmt.Errorf("%w: auth result has no access token", ErrInvalid)
	}
	return nil
}

// MockUser is an account registered locally while the remote was down.
type MockUser struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// MockUsers is the local registry of offline accounts.
type MockUsers []MockUser

// Validate rejects entries without email or password hash.
func (us MockUsers) Validate() error {
	for i, u := range us {
		if u.Email == "" || u.PasswordHash == "" {
			return fmt.Errorf("%w: mock user %d is incomplete", ErrInvalid, i)
		}
	}
	return nil
}

// Find returns the index of the user with the given email, or -1.
// Emails compare case-insensitively.
func (us MockUsers) Find(email string) int {
	for i, u := range us {
		if strings.EqualFold(u.Email, email) {
			return i
		}
	}
	return -1
}
