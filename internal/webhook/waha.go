package webhook

import (
	"errors"

	"whatsapp-hub/internal/normalizer"
	"whatsapp-hub/internal/store"
	wire "whatsapp-hub/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WahaHandler serves the WAHA bridge callback. Events are routed to a
// phone number by the session name carried in the event body.
type WahaHandler struct {
	store      *store.Store
	normalizer *normalizer.Waha
	log        *zap.Logger
}

func NewWahaHandler(st *store.Store, n *normalizer.Waha, log *zap.Logger) *WahaHandler {
	return &WahaHandler{store: st, normalizer: n, log: log}
}

// Receive ingests one WAHA event and returns the stored message's
// identifiers so the bridge's retry log stays readable.
func (h *WahaHandler) Receive(c *gin.Context) {
	var event wire.WahaEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(400, gin.H{"status": "error", "message": "invalid JSON body"})
		return
	}
	if event.Session == "" {
		c.JSON(400, gin.H{"status": "error", "message": "missing session"})
		return
	}

	pn, err := h.store.PhoneNumberByWahaSession(event.Session)
	if err != nil {
		c.JSON(404, gin.H{"status": "error", "message": "unknown session: " + event.Session})
		return
	}

	msg, err := h.normalizer.ProcessEvent(c.Request.Context(), pn, &event)
	if err != nil {
		if errors.Is(err, normalizer.ErrUnsupportedEvent) {
			c.JSON(200, gin.H{"status": "ignored", "message": "event type not processed: " + event.Event})
			return
		}
		h.log.Error("failed to process waha event",
			zap.String("session", event.Session),
			zap.String("event", event.Event),
			zap.Error(err))
		c.JSON(500, gin.H{"status": "error", "message": "failed to process event"})
		return
	}

	c.JSON(200, gin.H{
		"status":       "success",
		"message":      "event processed",
		"message_id":   msg.MessageID,
		"message_type": msg.MessageType,
		"db_id":        msg.ID,
	})
}
