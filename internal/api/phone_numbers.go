package api

import (
	"strconv"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/templates"
	"whatsapp-hub/internal/waha"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PhoneNumberHandler manages messaging identities. Saving a record with
// complete official credentials triggers a best-effort template import;
// WAHA records get a separate endpoint to push the webhook config to the
// bridge.
type PhoneNumberHandler struct {
	store  *store.Store
	syncer *templates.Syncer
	cfg    *config.Config
	log    *zap.Logger
}

func NewPhoneNumberHandler(st *store.Store, syncer *templates.Syncer, cfg *config.Config, log *zap.Logger) *PhoneNumberHandler {
	return &PhoneNumberHandler{store: st, syncer: syncer, cfg: cfg, log: log}
}

type createPhoneNumberRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	APIType     string `json:"api_type"`

	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
	AccessToken       string `json:"access_token"`
	BusinessID        string `json:"business_id"`
	WabaID            string `json:"waba_id"`

	WahaEndpoint string `json:"waha_endpoint"`
	WahaUsername string `json:"waha_username"`
	WahaPassword string `json:"waha_password"`
	WahaSession  string `json:"waha_session"`
}

// Create handles POST /api/phone-numbers. Verify and webhook tokens are
// generated on insert; they are returned once here so the caller can
// register the callback URL with the provider.
func (h *PhoneNumberHandler) Create(c *gin.Context) {
	var req createPhoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	apiType := req.APIType
	if apiType == "" {
		apiType = models.APITypeOfficial
	}
	if apiType != models.APITypeOfficial && apiType != models.APITypeWaha {
		c.JSON(400, gin.H{"error": "api_type must be official or waha"})
		return
	}

	pn := &models.PhoneNumber{
		DisplayName:       req.DisplayName,
		PhoneNumber:       models.NormalizePhone(req.PhoneNumber),
		APIType:           apiType,
		PhoneNumberID:     req.PhoneNumberID,
		BusinessAccountID: req.BusinessAccountID,
		AccessToken:       req.AccessToken,
		BusinessID:        req.BusinessID,
		WabaID:            req.WabaID,
		WahaEndpoint:      req.WahaEndpoint,
		WahaUsername:      req.WahaUsername,
		WahaPassword:      req.WahaPassword,
		WahaSession:       req.WahaSession,
		IsActive:          true,
	}
	if err := h.store.CreatePhoneNumber(pn); err != nil {
		h.log.Error("failed to create phone number", zap.String("phone", pn.PhoneNumber), zap.Error(err))
		c.JSON(500, gin.H{"error": "failed to create phone number"})
		return
	}

	imported := 0
	if pn.IsOfficialAPI() && pn.HasTemplateCredentials() {
		count, err := h.syncer.SyncPhoneNumber(c.Request.Context(), pn)
		if err != nil {
			h.log.Warn("post-save template sync failed",
				zap.String("phone_number", pn.PhoneNumber),
				zap.Error(err))
		} else {
			imported = count
		}
	}

	c.JSON(201, gin.H{
		"phone_number":       pn,
		"verify_token":       pn.VerifyToken,
		"webhook_token":      pn.WebhookToken,
		"webhook_url":        h.cfg.PublicBaseURL + "/webhook/" + pn.WebhookToken,
		"templates_imported": imported,
	})
}

// List handles GET /api/phone-numbers.
func (h *PhoneNumberHandler) List(c *gin.Context) {
	numbers, err := h.store.ListPhoneNumbers()
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to load phone numbers"})
		return
	}
	c.JSON(200, gin.H{"phone_numbers": numbers, "count": len(numbers)})
}

// ConfigureWahaWebhook handles POST /api/phone-numbers/:id/waha/webhook,
// pushing this service's callback URL into the bridge's session config.
func (h *PhoneNumberHandler) ConfigureWahaWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid phone number id"})
		return
	}

	pn, err := h.store.PhoneNumberByID(uint(id))
	if err != nil {
		c.JSON(404, gin.H{"error": "phone number not found"})
		return
	}
	if !pn.IsWahaAPI() || !pn.HasWahaCredentials() {
		c.JSON(400, gin.H{"error": "phone number is not a configured waha record"})
		return
	}

	client := waha.NewClient(pn.WahaEndpoint, pn.WahaUsername, pn.WahaPassword, pn.WahaSession, h.cfg.HTTPTimeout, h.log)
	webhookURL := h.cfg.PublicBaseURL + "/webhook/waha"
	if err := client.ConfigureWebhooks(c.Request.Context(), webhookURL, []string{"message"}); err != nil {
		h.log.Error("failed to configure waha webhooks",
			zap.String("session", pn.WahaSession),
			zap.Error(err))
		c.JSON(502, gin.H{"error": "bridge rejected webhook configuration"})
		return
	}

	pn.IsConfigured = true
	if err := h.store.SavePhoneNumber(pn); err != nil {
		c.JSON(500, gin.H{"error": "failed to persist configuration state"})
		return
	}
	c.JSON(200, gin.H{"configured": true, "webhook_url": webhookURL})
}
