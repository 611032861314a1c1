package httpserver

import (
	"net/http"
	"strings"

	"interview-lab/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationID tags every request with an id so a failing round-trip can be
// traced across logs. An inbound id is kept, otherwise one is minted.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("correlation_id", id)
		c.Header(correlationHeader, id)
		c.Next()
	}
}

// JwtAuth protects the operator surface. Participant endpoints never go
// through here; their invite token is the only credential they hold.
func JwtAuth(tokens auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			c.Abort()
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "malformed Authorization header"})
			c.Abort()
			return
		}
		claims, err := tokens.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}
