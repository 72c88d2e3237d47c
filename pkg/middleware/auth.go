package middleware

import (
	"net/http"
	"strings"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/auth"
	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding *auth.Claims.
const ClaimsKey = "auth_claims"

// Auth validates the bearer token from the Authorization header, or from the
// token query parameter for websocket and event-stream clients.
func Auth(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "missing bearer token"})
			return
		}
		claims, err := issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers whose token carries another role.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if ok {
			for _, r := range roles {
				if claims.Role == r {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "msg": "insufficient permissions"})
	}
}

// ClaimsFrom returns the claims set by Auth.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t := strings.TrimPrefix(h, "Bearer "); t != h {
			return strings.TrimSpace(t)
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}
