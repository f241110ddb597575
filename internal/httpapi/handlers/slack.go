package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/notify"
)

// SlackTest posts a connectivity message and returns Slack's answer as is.
func (h *Handler) SlackTest(c *gin.Context) {
	res, err := h.Slack.PostTest(c.Request.Context())
	if errors.Is(err, notify.ErrNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Missing env vars"})
		return
	}
	if err != nil {
		h.logger(c).Error("slack test failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	ok(c, res)
}
