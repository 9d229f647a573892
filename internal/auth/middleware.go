package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type contextKey string

const staffContextKey contextKey = "stopsurveyStaff"

// tokenValidator is satisfied by *Service.
type tokenValidator interface {
	ValidateAccessToken(token string) (StaffClaims, error)
}

// AuthMiddleware validates bearer tokens and injects the authenticated staff member.
func AuthMiddleware(service tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := service.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(string(staffContextKey), Staff{ID: claims.StaffID, Name: claims.Name})
		c.Next()
	}
}

// CurrentStaff extracts the authenticated staff member from the context.
func CurrentStaff(c *gin.Context) (Staff, bool) {
	value, exists := c.Get(string(staffContextKey))
	if !exists {
		return Staff{}, false
	}
	staff, ok := value.(Staff)
	return staff, ok && staff.ID != ""
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
