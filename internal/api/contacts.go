package api

import (
	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContactHandler struct {
	store *store.Store
	log   *zap.Logger
}

func NewContactHandler(st *store.Store, log *zap.Logger) *ContactHandler {
	return &ContactHandler{store: st, log: log}
}

type createContactRequest struct {
	PhoneNumber    string `json:"phone_number" binding:"required"`
	Name           string `json:"name"`
	WhatsappChatID string `json:"whatsapp_chat_id"`
}

// Create handles POST /api/contacts. The phone number is normalized to
// digits before validation and storage.
func (h *ContactHandler) Create(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	normalized := models.NormalizePhone(req.PhoneNumber)
	if err := models.ValidatePhone(normalized); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if existing, err := h.store.ContactByPhone(normalized); err == nil {
		c.JSON(409, gin.H{"error": "contact already exists", "contact": existing})
		return
	}

	contact := &models.Contact{
		PhoneNumber:    normalized,
		Name:           req.Name,
		WhatsappChatID: req.WhatsappChatID,
	}
	if err := h.store.SaveContact(contact); err != nil {
		h.log.Error("failed to create contact", zap.String("phone", normalized), zap.Error(err))
		c.JSON(500, gin.H{"error": "failed to create contact"})
		return
	}
	c.JSON(201, gin.H{"contact": contact})
}

// List handles GET /api/contacts.
func (h *ContactHandler) List(c *gin.Context) {
	contacts, err := h.store.ListContacts()
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to load contacts"})
		return
	}
	c.JSON(200, gin.H{"contacts": contacts, "count": len(contacts)})
}
