package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/ai"
	"github.com/suPer8Hu/poppy-relay/internal/chat"
	"github.com/suPer8Hu/poppy-relay/internal/refdata"
)

func (h *Handler) Chat(c *gin.Context) {
	req := bindLoose[chat.Request](c)

	reply, err := h.ChatSvc.Reply(c.Request.Context(), req, refdata.Origin(c.Request))
	if err != nil {
		log := h.logger(c)
		var upErr *ai.UpstreamError
		switch {
		case errors.Is(err, chat.ErrMissingQuery):
			fail(c, http.StatusBadRequest, "Missing q", nil)
		case errors.Is(err, chat.ErrNotConfigured):
			log.Error("chat provider not configured")
			fail(c, http.StatusInternalServerError, "AI provider not configured", nil)
		case errors.As(err, &upErr):
			log.Error("completion upstream error", "service", upErr.Service, "status", upErr.Status, "body", upErr.Body)
			fail(c, http.StatusInternalServerError, "Upstream error", upErr.Body)
		default:
			log.Error("chat failed", "err", err)
			fail(c, http.StatusInternalServerError, "Server error", nil)
		}
		return
	}

	ok(c, gin.H{"reply": reply})
}
