package middleware

import (
	"net/http"
	"strings"

	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
)

// AdminAuthConfig holds the credentials admin routes accept.
type AdminAuthConfig struct {
	AdminSecret  string
	AdminKeyHash string
	JWTSecret    string
}

func (c AdminAuthConfig) enabled() bool {
	return c.AdminSecret != "" || c.AdminKeyHash != ""
}

// AdminAuth guards admin routes. A request passes with a valid admin bearer
// token or with the admin key in X-Admin-Secret. With no admin credentials
// configured every request passes.
func AdminAuth(cfg AdminAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.enabled() {
			c.Next()
			return
		}

		if key := c.GetHeader("X-Admin-Secret"); key != "" {
			if utils.CheckAdminKey(key, cfg.AdminKeyHash, cfg.AdminSecret) {
				c.Set("admin", true)
				c.Next()
				return
			}
			utils.LogAdminAction("rejected admin key", c.ClientIP(), false)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin secret"})
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Admin authorization required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		if _, err := utils.ValidateAdminToken(cfg.JWTSecret, strings.TrimSpace(parts[1])); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("admin", true)
		c.Next()
	}
}
