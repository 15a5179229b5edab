package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
)

const callerContextKey = "caller"

// RequireBearer validates the Authorization header and stores the resolved
// Caller in the gin context; handlers read it back with CallerFrom.
func (m *Manager) RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondUnauthorized(c)
			return
		}
		claims, err := m.ValidateToken(token)
		if err != nil {
			respondUnauthorized(c)
			return
		}
		c.Set(callerContextKey, claims.Caller())
		c.Next()
	}
}

func respondUnauthorized(c *gin.Context) {
	err := apperrors.Unauthorized("Request", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, err.ToResponse())
}

// CallerFrom reads the Caller a prior RequireBearer call resolved.
func CallerFrom(c *gin.Context) models.Caller {
	v, _ := c.Get(callerContextKey)
	caller, _ := v.(models.Caller)
	return caller
}
