package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
)

// Recovery turns a panic into a 500 with the generic error body.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered",
					"path", c.Request.URL.Path,
					"request_id", c.GetString(RequestIDKey),
					"panic", rec,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			}
		}()
		c.Next()
	}
}
