// Cart HTTP handlers.
//
//   - GET    /cart
//   - GET    /cart/count
//   - POST   /cart/items
//   - PUT    /cart/items/{id}
//   - DELETE /cart/items/{id}
//   - DELETE /cart
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-client/internal/services"
)

// UpdateQuantityRequest is the JSON payload for changing a line quantity.
// A quantity of zero removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// CountResponse carries a badge count.
type CountResponse struct {
	Count int `json:"count"`
}

// GetCart returns the visitor's cart.
func (h *Handlers) GetCart(c *gin.Context) {
	cart, err := h.svc.Cart.Get(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cart)
}

// CartCount returns the number of units in the cart.
func (h *Handlers) CartCount(c *gin.Context) {
	n, err := h.svc.Cart.Count(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// AddCartItem adds a product variant to the cart.
func (h *Handlers) AddCartItem(c *gin.Context) {
	var req services.AddCartItem
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cart, err := h.svc.Cart.AddItem(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cart)
}

// UpdateCartItem sets the quantity of a cart line.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "quantity is required")
		return
	}
	cart, err := h.svc.Cart.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cart)
}

// RemoveCartItem deletes a cart line.
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	cart, err := h.svc.Cart.RemoveItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cart)
}

// ClearCart empties the cart.
func (h *Handlers) ClearCart(c *gin.Context) {
	if err := h.svc.Cart.Clear(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
