package api

import (
	"errors"
	"strconv"

	"whatsapp-hub/internal/models"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/templates"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TemplateHandler lists stored templates and triggers imports from the
// official API.
type TemplateHandler struct {
	store  *store.Store
	syncer *templates.Syncer
	log    *zap.Logger
}

func NewTemplateHandler(st *store.Store, syncer *templates.Syncer, log *zap.Logger) *TemplateHandler {
	return &TemplateHandler{store: st, syncer: syncer, log: log}
}

// Sync handles POST /api/phone-numbers/:id/templates/sync.
func (h *TemplateHandler) Sync(c *gin.Context) {
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

	count, err := h.syncer.SyncPhoneNumber(c.Request.Context(), pn)
	if err != nil {
		if errors.Is(err, templates.ErrMissingCredentials) {
			c.JSON(400, gin.H{"error": "phone number has no template credentials"})
			return
		}
		c.JSON(500, gin.H{"error": "template sync failed"})
		return
	}
	c.JSON(200, gin.H{"imported": count})
}

type templateView struct {
	models.Template
	RequiredVariables models.RequiredVariables `json:"required_variables"`
}

// List handles GET /api/templates, optionally filtered by
// phone_number_id, annotating each template with the variables a sender
// must supply.
func (h *TemplateHandler) List(c *gin.Context) {
	var (
		list []models.Template
		err  error
	)
	if raw := c.Query("phone_number_id"); raw != "" {
		id, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			c.JSON(400, gin.H{"error": "invalid phone_number_id"})
			return
		}
		list, err = h.store.TemplatesForPhoneNumber(uint(id))
	} else {
		list, err = h.store.ListTemplates()
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to load templates"})
		return
	}

	views := make([]templateView, 0, len(list))
	for _, tpl := range list {
		views = append(views, templateView{
			Template:          tpl,
			RequiredVariables: tpl.GetRequiredVariables(),
		})
	}
	c.JSON(200, gin.H{"templates": views, "count": len(views)})
}
