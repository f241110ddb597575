package httpapi

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/config"
	"github.com/suPer8Hu/poppy-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/poppy-relay/internal/httpapi/middleware"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
)

func NewRouter(cfg config.Config, log *logger.Logger, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.NoStore())
	r.Use(middleware.CORS(cfg.AllowOrigin))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.POST("/poppy", h.Chat)
	api.POST("/handoff-open", h.HandoffOpen)
	api.POST("/replies-poll", h.RepliesPoll)
	api.GET("/slack-test", h.SlackTest)
	api.POST("/slack-test", h.SlackTest)
	for _, p := range []string{"/poppy", "/handoff-open", "/replies-poll", "/slack-test"} {
		api.OPTIONS(p, h.Preflight)
	}

	// the deployment's own reference documents, fetched back by the chat flow
	if cfg.PublicDir != "" {
		r.StaticFile("/kit.json", filepath.Join(cfg.PublicDir, "kit.json"))
		r.StaticFile("/book.json", filepath.Join(cfg.PublicDir, "book.json"))
	}
	return r
}
