package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/beacon/internal/observability/obscontext"
)

const userIDKey = "user_id"

// AuthRequired trusts the X-User-ID header set by the edge proxy. Requests
// without an authenticated caller never reach a handler.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(userIDKey, userID)
		ctx := obscontext.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
