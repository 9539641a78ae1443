package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// NoStore forbids caching of responses. Cart, wishlist and account
	// answers are per visitor and must not be replayed by a shared cache.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// NoStoreExempt lists route paths that stay cacheable (catalog reads).
	NoStoreExempt []string
}

// SecurityHeaders sets baseline hardening headers for a JSON API and exposes
// X-Request-ID to browser clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(opt.NoStoreExempt))
	for _, p := range opt.NoStoreExempt {
		exempt[p] = struct{}{}
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			if _, ok := exempt[c.FullPath()]; !ok {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			}
		}

		if h.Get(HeaderRequestID) != "" {
			const expose = "Access-Control-Expose-Headers"
			switch cur := h.Get(expose); {
			case cur == "":
				h.Set(expose, HeaderRequestID)
			case !strings.Contains(cur, HeaderRequestID):
				h.Set(expose, cur+", "+HeaderRequestID)
			}
		}

		c.Next()
	}
}
