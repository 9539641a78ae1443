// Order HTTP handlers.
//
//   - GET  /orders
//   - POST /orders            (checkout; guest or signed in)
//   - GET  /orders/{id}
//   - PUT  /orders/{id}/cancel
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-client/internal/domain"
)

// ListOrders returns the visitor's orders, newest first.
func (h *Handlers) ListOrders(c *gin.Context) {
	list, err := h.svc.Orders.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// PlaceOrder checks out. Without items in the body the cart is ordered.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	var req domain.PlaceOrder
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	order, err := h.svc.Orders.Place(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, order)
}

// GetOrder returns one order visible to the visitor.
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.svc.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

// CancelOrder cancels a pending or confirmed order.
func (h *Handlers) CancelOrder(c *gin.Context) {
	order, err := h.svc.Orders.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}
