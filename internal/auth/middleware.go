package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key the middlewares store claims under.
const ContextKey = "claims"

// RequireRole enforces bearer JWT tokens signed with HS256 carrying the
// given role.
func RequireRole(role, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "wrong role for this resource"})
			return
		}
		c.Set(ContextKey, claims)
		c.Next()
	}
}

// SubjectID extracts the authenticated principal's id from the context.
func SubjectID(c *gin.Context) (uuid.UUID, bool) {
	claimsAny, ok := c.Get(ContextKey)
	if !ok {
		return uuid.Nil, false
	}
	claims, ok := claimsAny.(Claims)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
