package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
	"github.com/suPer8Hu/poppy-relay/internal/notify"
)

type handoffReq struct {
	ConversationID string `json:"conversationId"`
	Summary        string `json:"summary"`
}

type pollReq struct {
	ConversationID string `json:"conversationId"`
}

func (h *Handler) HandoffOpen(c *gin.Context) {
	req := bindLoose[handoffReq](c)

	res, err := h.HandoffSvc.Open(c.Request.Context(), req.ConversationID, req.Summary)
	if err != nil {
		h.handoffError(c, err)
		return
	}

	ok(c, gin.H{
		"ok":             true,
		"conversationId": res.ConversationID,
		"slack": gin.H{
			"channel":   res.Channel,
			"thread_ts": res.ThreadTS,
		},
	})
}

func (h *Handler) RepliesPoll(c *gin.Context) {
	req := bindLoose[pollReq](c)

	replies, err := h.HandoffSvc.Poll(c.Request.Context(), req.ConversationID)
	if err != nil {
		h.handoffError(c, err)
		return
	}

	ok(c, gin.H{"ok": true, "replies": replies})
}

func (h *Handler) handoffError(c *gin.Context, err error) {
	log := h.logger(c)
	switch {
	case errors.Is(err, handoff.ErrMissingConversationID):
		fail(c, http.StatusBadRequest, "Missing conversationId", nil)
	case errors.Is(err, handoff.ErrStoreNotConfigured):
		log.Error("handoff store not configured")
		fail(c, http.StatusInternalServerError, "Store not configured", nil)
	case errors.Is(err, handoff.ErrSlackNotConfigured):
		log.Error("slack not configured")
		fail(c, http.StatusInternalServerError, "Slack not configured", nil)
	case errors.Is(err, handoff.ErrNotify):
		log.Error("slack post failed", "err", err)
		var pe *notify.PostError
		if errors.As(err, &pe) {
			fail(c, http.StatusBadGateway, "Failed to post to Slack", pe.Detail())
			return
		}
		fail(c, http.StatusBadGateway, "Failed to post to Slack", nil)
	default:
		log.Error("handoff failed", "err", err)
		fail(c, http.StatusInternalServerError, "Server error", nil)
	}
}
