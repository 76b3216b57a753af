package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OriginAllowed reports whether a browser origin may call the API. "*" in
// allowed admits every origin; requests without an Origin header are not
// cross-origin and always pass.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and sets the allow headers for the origins
// in allowed
func CORS(allowed []string) gin.HandlerFunc {
	wildcard := false
	for _, a := range allowed {
		if a == "*" {
			wildcard = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && OriginAllowed(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
