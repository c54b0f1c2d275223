package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// Messenger sends WhatsApp text messages.
type Messenger interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// DigestSender sends the overdue digest on demand.
type DigestSender interface {
	SendDigest(ctx context.Context, to string) error
}

// MessageHandler lets admins push WhatsApp messages.
type MessageHandler struct {
	messenger Messenger
	digest    DigestSender
	logger    *zap.Logger
}

// NewMessageHandler constructs the HTTP handler adapter.
func NewMessageHandler(messenger Messenger, digest DigestSender, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{messenger: messenger, digest: digest, logger: logger}
}

type digestRequest struct {
	To string `json:"to" binding:"required"`
}

// SendMessage sends a manual message.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.messenger.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}

// SendDigest sends the overdue digest now.
func (h *MessageHandler) SendDigest(c *gin.Context) {
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if err := h.digest.SendDigest(c.Request.Context(), req.To); err != nil {
		h.logger.Error("failed sending digest", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send digest"})
		return
	}

	c.Status(http.StatusAccepted)
}
