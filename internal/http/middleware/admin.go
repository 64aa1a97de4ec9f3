// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file guards the administrative routes (reseed, purge) with a shared
// token carried in the X-Admin-Token header and records the caller as the
// request principal, which the access log and rate limiter key on.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAdminToken carries the administrative token.
	HeaderAdminToken = "X-Admin-Token"

	// principalKey is the Gin context key holding the authenticated caller.
	principalKey = "principal"

	// PrincipalAdmin is the principal recorded for authenticated admin calls.
	PrincipalAdmin = "admin"
)

// Principal returns the caller identity set by AdminAuth, or "".
func Principal(c *gin.Context) string {
	if v, ok := c.Get(principalKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AdminAuth rejects requests whose X-Admin-Token does not match token.
// An empty token disables the check (local development), but the principal
// is still recorded.
func AdminAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token != "" {
			got := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				countRejection(rejectUnauthorized)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "unauthorized",
					"message":    "admin token required",
				})
				return
			}
		}
		c.Set(principalKey, PrincipalAdmin)
		c.Next()
	}
}
