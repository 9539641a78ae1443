// Package httpapi wires the local JSON API (Gin) onto the storefront stores.
// It centralizes the cross-cutting concerns: tracing, correlation ids,
// redacted access logs, panic recovery, metrics, compression, CORS and
// security headers.
//
// The API is an adapter for UI surfaces running next to the client. It never
// talks to the remote storefront itself; every route calls a store.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-storefront-client/internal/app"
	"github.com/tbourn/go-storefront-client/internal/config"
	"github.com/tbourn/go-storefront-client/internal/http/handlers"
	"github.com/tbourn/go-storefront-client/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. AccessLog (request-scoped logger, redaction)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. gzip (event streams excluded)
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, a *app.App, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	base := cfg.APIBasePath
	if base == "/" {
		base = ""
	}
	eventsPath := base + "/events"

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName,
		otelgin.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/metrics" }),
	))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{eventsPath})))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		NoStore:      true,
		EnablePolicy: true,
		NoStoreExempt: []string{
			base + "/products",
			base + "/products/:id",
			base + "/products/slug/:slug",
			base + "/categories",
		},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(handlers.Services{
		Cart:      a.Cart,
		Wishlist:  a.Wishlist,
		Catalog:   a.Catalog,
		Orders:    a.Orders,
		Addresses: a.Addresses,
		Auth:      a.Auth,
		Guests:    a.Guests,
		Events:    a.Bus,
	})

	api := r.Group(base)
	{
		api.GET("/session", h.Session)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/register", h.Register)
		api.POST("/auth/logout", h.Logout)
		api.POST("/auth/change-password", h.ChangePassword)

		api.GET("/cart", h.GetCart)
		api.DELETE("/cart", h.ClearCart)
		api.GET("/cart/count", h.CartCount)
		api.POST("/cart/items", h.AddCartItem)
		api.PUT("/cart/items/:id", h.UpdateCartItem)
		api.DELETE("/cart/items/:id", h.RemoveCartItem)

		api.GET("/wishlist", h.ListWishlist)
		api.POST("/wishlist", h.AddToWishlist)
		api.GET("/wishlist/count", h.WishlistCount)
		api.GET("/wishlist/product/:id", h.WishlistMembership)
		api.POST("/wishlist/toggle/:id", h.ToggleWishlist)
		api.DELETE("/wishlist/:id", h.RemoveFromWishlist)

		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/slug/:slug", h.GetProductBySlug)
		api.GET("/categories", h.ListCategories)

		api.GET("/orders", h.ListOrders)
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id/cancel", h.CancelOrder)

		api.GET("/addresses", h.ListAddresses)
		api.POST("/addresses", h.AddAddress)
		api.PUT("/addresses/:id", h.UpdateAddress)
		api.DELETE("/addresses/:id", h.DeleteAddress)
		api.PUT("/addresses/:id/default", h.SetDefaultAddress)
		api.GET("/pincode/:code", h.CheckPincode)

		api.GET("/events", h.Events)
	}
}

// corsMiddleware allows every origin when none are configured, else echoes
// allowed origins only. Credentials are never allowed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		// Also for requests without an Origin header (health probes, curl).
		return []gin.HandlerFunc{
			func(ctx *gin.Context) {
				ctx.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				ctx.Next()
			},
			cors.New(c),
		}
	}
	c.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(c)}
}

// limitBody caps request bodies at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
