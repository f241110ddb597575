package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/chat"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
	"github.com/suPer8Hu/poppy-relay/internal/httpapi/middleware"
	"github.com/suPer8Hu/poppy-relay/internal/notify"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Log        *logger.Logger
	ChatSvc    *chat.Service
	HandoffSvc *handoff.Service
	Slack      *notify.Slack
}

func NewHandler(log *logger.Logger, chatSvc *chat.Service, handoffSvc *handoff.Service, slack *notify.Slack) *Handler {
	return &Handler{
		Log:        log.With("component", "http"),
		ChatSvc:    chatSvc,
		HandoffSvc: handoffSvc,
		Slack:      slack,
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func fail(c *gin.Context, httpStatus int, msg string, detail any) {
	body := gin.H{"error": msg}
	if detail != nil {
		body["detail"] = detail
	}
	c.AbortWithStatusJSON(httpStatus, body)
}

// bindLoose decodes the JSON body. A missing or malformed body yields the zero
// value, so the request fails validation instead of parsing.
func bindLoose[T any](c *gin.Context) T {
	var req T
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return req
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		var zero T
		return zero
	}
	return req
}

func (h *Handler) logger(c *gin.Context) *logger.Logger {
	return h.Log.With("request_id", c.GetString(middleware.RequestIDKey), "path", c.Request.URL.Path)
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, gin.H{"ok": true})
}

// Preflight answers CORS OPTIONS requests that reach the router.
func (h *Handler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}
