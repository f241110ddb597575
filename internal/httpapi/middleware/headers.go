package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// CORS lets the widget call the API from any page. Every response names
// allowOrigin ("*" or a single origin); no request is refused on its Origin.
func CORS(allowOrigin string) gin.HandlerFunc {
	allowOrigin = strings.TrimRight(strings.TrimSpace(allowOrigin), "/")
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,

		OptionsResponseStatusCode: http.StatusOK,
	}
	if allowOrigin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	preflight := cors.New(cfg)

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		// cors echoes the request Origin; pin it to the configured one
		if allowOrigin != "*" && c.GetHeader("Origin") != "" {
			c.Request.Header.Set("Origin", allowOrigin)
		}
		preflight(c)
	}
}
