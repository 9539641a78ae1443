// Wishlist HTTP handlers.
//
//   - GET    /wishlist
//   - GET    /wishlist/count
//   - GET    /wishlist/product/{id}
//   - POST   /wishlist
//   - POST   /wishlist/toggle/{id}
//   - DELETE /wishlist/{id}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AddWishlistRequest is the JSON payload for adding a product.
type AddWishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// MembershipResponse reports whether a product is on the wishlist.
type MembershipResponse struct {
	ProductID    string `json:"productId"`
	IsWishlisted bool   `json:"isWishlisted"`
}

// ListWishlist returns the visitor's wishlist entries.
func (h *Handlers) ListWishlist(c *gin.Context) {
	list, err := h.svc.Wishlist.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// WishlistCount returns the number of wishlist entries.
func (h *Handlers) WishlistCount(c *gin.Context) {
	n, err := h.svc.Wishlist.Count(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// WishlistMembership reports whether the product is wishlisted.
func (h *Handlers) WishlistMembership(c *gin.Context) {
	id := c.Param("id")
	in, err := h.svc.Wishlist.IsWishlisted(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MembershipResponse{ProductID: id, IsWishlisted: in})
}

// AddToWishlist adds a product; adding twice is not an error.
func (h *Handlers) AddToWishlist(c *gin.Context) {
	var req AddWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProductID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "productId is required")
		return
	}
	in, err := h.svc.Wishlist.Add(c.Request.Context(), req.ProductID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MembershipResponse{ProductID: req.ProductID, IsWishlisted: in})
}

// ToggleWishlist flips the membership of a product.
func (h *Handlers) ToggleWishlist(c *gin.Context) {
	id := c.Param("id")
	in, err := h.svc.Wishlist.Toggle(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MembershipResponse{ProductID: id, IsWishlisted: in})
}

// RemoveFromWishlist removes a product; removing an absent one is not an
// error.
func (h *Handlers) RemoveFromWishlist(c *gin.Context) {
	id := c.Param("id")
	in, err := h.svc.Wishlist.Remove(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MembershipResponse{ProductID: id, IsWishlisted: in})
}
