package middleware

import (
	"net/http"
	"strings"

	"sales-ledger/internal/auth"
	"sales-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// AuthMiddleware checks if the user has a valid JWT token. Browsers'
// EventSource cannot set headers, so a "token" query parameter is accepted
// when the header is absent.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get the token: "Authorization: Bearer <token>"
		tokenString := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must start with Bearer"})
				return
			}
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		// 2. Validate it
		claims, err := auth.ValidateToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 3. Store the identity for the handlers
		c.Set(claimsKey, claims)
		c.Set("userID", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// Claims returns the authenticated identity, or nil outside AuthMiddleware.
func Claims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// Actor is the identity recorded on ledger mutations.
func Actor(c *gin.Context) ledger.Actor {
	claims := Claims(c)
	if claims == nil {
		return ledger.Actor{}
	}
	return ledger.Actor{ID: claims.UserID, Name: claims.Name}
}

// RequireCapability lets the request through when the token carries every
// bit of want. Admins pass always.
func RequireCapability(want auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if claims.Role != auth.RoleAdmin && !claims.Capabilities.Has(want) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You don't have permission to perform this action"})
			return
		}
		c.Next()
	}
}

// RequireRole is a secondary guard for role-only areas such as user admin.
func RequireRole(allowed ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		for _, r := range allowed {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}
