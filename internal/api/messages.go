package api

import (
	"strconv"

	"whatsapp-hub/internal/dispatch"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler composes, dispatches, retries, and lists outbound
// messages. Persistence and dispatch are explicit sequential steps: the
// message row exists in the pending state before any network call.
type MessageHandler struct {
	store  *store.Store
	router *dispatch.Router
	log    *zap.Logger
}

func NewMessageHandler(st *store.Store, router *dispatch.Router, log *zap.Logger) *MessageHandler {
	return &MessageHandler{store: st, router: router, log: log}
}

type sendMessageRequest struct {
	PhoneNumberID uint              `json:"phone_number_id" binding:"required"`
	To            string            `json:"to" binding:"required"`
	ContactName   string            `json:"contact_name"`
	Text          string            `json:"text"`
	TemplateID    uint              `json:"template_id"`
	Variables     map[string]string `json:"variables"`
	MediaURL      string            `json:"media_url"`
	MediaType     string            `json:"media_type"`
}

// Send handles POST /api/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	pn, err := h.store.PhoneNumberByID(req.PhoneNumberID)
	if err != nil {
		c.JSON(404, gin.H{"error": "phone number not found"})
		return
	}

	contact, _, err := h.store.GetOrCreateContact(req.To, req.ContactName)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	params := models.OutgoingParams{
		PhoneNumber:       pn,
		Contact:           contact,
		Text:              req.Text,
		TemplateVariables: req.Variables,
		MediaURL:          req.MediaURL,
		MediaType:         req.MediaType,
	}
	if req.TemplateID != 0 {
		tpl, err := h.store.TemplateByID(req.TemplateID)
		if err != nil {
			c.JSON(404, gin.H{"error": "template not found"})
			return
		}
		if tpl.PhoneNumberID != pn.ID {
			c.JSON(400, gin.H{"error": "template belongs to a different phone number"})
			return
		}
		params.Template = tpl
		params.Text = ""
	}

	msg, err := models.NewOutgoingMessage(params)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.CreateMessage(msg); err != nil {
		h.log.Error("failed to persist outgoing message", zap.Error(err))
		c.JSON(500, gin.H{"error": "failed to store message"})
		return
	}

	dispatched := h.router.Dispatch(c.Request.Context(), msg)
	c.JSON(201, gin.H{"message": msg, "dispatched": dispatched})
}

// Retry handles POST /api/messages/:id/retry. Failures report the send
// error but still answer 200 with the updated row; the client decides
// whether to try again.
func (h *MessageHandler) Retry(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.store.MessageByID(uint(id))
	if err != nil {
		c.JSON(404, gin.H{"error": "message not found"})
		return
	}
	if msg.Direction != models.DirectionOutgoing {
		c.JSON(400, gin.H{"error": "only outgoing messages can be retried"})
		return
	}

	ok, retryErr := h.router.Retry(c.Request.Context(), msg)
	resp := gin.H{"message": msg, "dispatched": ok}
	if retryErr != nil {
		resp["error"] = retryErr.Error()
	}
	c.JSON(200, resp)
}

// List handles GET /api/messages.
func (h *MessageHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	messages, err := h.store.RecentMessages(limit)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(200, gin.H{"messages": messages, "count": len(messages)})
}
