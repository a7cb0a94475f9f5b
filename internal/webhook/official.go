package webhook

import (
	"strings"

	"whatsapp-hub/internal/normalizer"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/templates"
	wire "whatsapp-hub/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OfficialHandler serves the WhatsApp Business Cloud API callback. The
// webhook token in the URL path routes the shared callback URL to one
// phone number record.
type OfficialHandler struct {
	store      *store.Store
	normalizer *normalizer.Official
	syncer     *templates.Syncer
	log        *zap.Logger
}

func NewOfficialHandler(st *store.Store, n *normalizer.Official, syncer *templates.Syncer, log *zap.Logger) *OfficialHandler {
	return &OfficialHandler{store: st, normalizer: n, syncer: syncer, log: log}
}

// Verify answers the subscription handshake: echo hub.challenge when the
// mode is subscribe and the verify token matches, 403 otherwise.
func (h *OfficialHandler) Verify(c *gin.Context) {
	pn, err := h.store.PhoneNumberByWebhookToken(c.Param("token"))
	if err != nil {
		c.String(403, "Forbidden")
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == pn.VerifyToken {
		h.log.Info("webhook verified", zap.String("phone_number", pn.PhoneNumber))
		c.String(200, challenge)
		return
	}
	c.String(403, "Forbidden")
}

// Receive ingests an event payload. The body always gets a 200 "OK" once
// parsed; per-item failures are logged, never surfaced, so the provider
// does not redeliver a payload we cannot use.
func (h *OfficialHandler) Receive(c *gin.Context) {
	pn, err := h.store.PhoneNumberByWebhookToken(c.Param("token"))
	if err != nil {
		c.String(403, "Forbidden")
		return
	}

	var payload wire.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("malformed webhook payload", zap.Error(err))
		c.String(400, "Bad Request")
		return
	}

	h.normalizer.ProcessPayload(c.Request.Context(), pn, &payload)

	if hasTemplateUpdate(&payload) {
		if _, err := h.syncer.SyncPhoneNumber(c.Request.Context(), pn); err != nil {
			h.log.Warn("template re-sync failed",
				zap.String("phone_number", pn.PhoneNumber),
				zap.Error(err))
		}
	}

	c.String(200, "OK")
}

// hasTemplateUpdate reports whether the payload carries a template
// status, quality, or components change, which triggers a re-import.
func hasTemplateUpdate(payload *wire.WebhookPayload) bool {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if strings.HasPrefix(change.Field, "message_template_") {
				return true
			}
		}
	}
	return false
}
