// Account HTTP handlers: session, sign-in and saved addresses.
//
//   - GET    /session
//   - POST   /auth/login
//   - POST   /auth/register
//   - POST   /auth/logout
//   - POST   /auth/change-password
//   - GET    /addresses
//   - POST   /addresses
//   - PUT    /addresses/{id}
//   - DELETE /addresses/{id}
//   - PUT    /addresses/{id}/default
//   - GET    /pincode/{code}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/services"
)

// SessionResponse describes the current visitor.
type SessionResponse struct {
	Authenticated  bool         `json:"authenticated"`
	User           *domain.User `json:"user,omitempty"`
	GuestSessionID string       `json:"guestSessionId"`
}

// ChangePasswordRequest is the JSON payload for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// Session reports who the visitor is. The guest session exists for signed-in
// visitors too; it is created on first use.
func (h *Handlers) Session(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := h.svc.Guests.GetOrCreate(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	resp := SessionResponse{GuestSessionID: sess.ID}
	if u, signedIn := h.svc.Auth.CurrentUser(ctx); signedIn {
		resp.Authenticated = true
		resp.User = &u
	}
	ok(c, http.StatusOK, resp)
}

// Login signs the visitor in.
func (h *Handlers) Login(c *gin.Context) {
	var req services.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.svc.Auth.Login(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// Register creates an account and signs it in.
func (h *Handlers) Register(c *gin.Context) {
	var req services.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.svc.Auth.Register(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// Logout forgets the credentials.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.svc.Auth.Logout(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ChangePassword changes the signed-in user's password.
func (h *Handlers) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "currentPassword and newPassword are required")
		return
	}
	if err := h.svc.Auth.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ListAddresses returns the saved addresses.
func (h *Handlers) ListAddresses(c *gin.Context) {
	list, err := h.svc.Addresses.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// AddAddress saves a new address.
func (h *Handlers) AddAddress(c *gin.Context) {
	var req domain.Address
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.svc.Addresses.Add(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// UpdateAddress replaces a saved address.
func (h *Handlers) UpdateAddress(c *gin.Context) {
	var req domain.Address
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.svc.Addresses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// DeleteAddress removes a saved address.
func (h *Handlers) DeleteAddress(c *gin.Context) {
	if err := h.svc.Addresses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// SetDefaultAddress marks an address as the default.
func (h *Handlers) SetDefaultAddress(c *gin.Context) {
	a, err := h.svc.Addresses.SetDefault(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// CheckPincode reports whether deliveries reach a postal code.
func (h *Handlers) CheckPincode(c *gin.Context) {
	res, err := h.svc.Addresses.CheckPincode(c.Request.Context(), c.Param("code"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
