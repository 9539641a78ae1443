// Catalog HTTP handlers.
//
//   - GET /products            (filtered, paginated)
//   - GET /products/{id}
//   - GET /products/slug/{slug}
//   - GET /categories
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/utils"
)

// productFilter reads the listing query parameters. Paging bounds and the
// default sort are applied by the store.
func productFilter(c *gin.Context) domain.ProductFilter {
	return domain.ProductFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
		MinPrice: utils.FloatDefault(c.Query("minPrice"), 0),
		MaxPrice: utils.FloatDefault(c.Query("maxPrice"), 0),
		InStock:  utils.BoolDefault(c.Query("inStock"), false),
		Sort:     strings.TrimSpace(c.Query("sort")),
		Page:     utils.AtoiDefault(c.Query("page"), 1),
		Limit:    utils.AtoiDefault(c.Query("limit"), domain.DefaultPageLimit),
	}
}

// ListProducts returns one page of active products.
func (h *Handlers) ListProducts(c *gin.Context) {
	page, err := h.svc.Catalog.List(c.Request.Context(), productFilter(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetProduct returns a product by id.
func (h *Handlers) GetProduct(c *gin.Context) {
	p, err := h.svc.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// GetProductBySlug returns a product by its URL slug.
func (h *Handlers) GetProductBySlug(c *gin.Context) {
	p, err := h.svc.Catalog.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListCategories returns the product categories.
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.svc.Catalog.Categories(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cats)
}
